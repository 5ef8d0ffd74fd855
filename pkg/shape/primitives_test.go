package shape

import (
	"image"
	"testing"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/geom"
)

func TestLineExtent(t *testing.T) {
	ctx := newTestContext(t, Options{})
	s := build(t, ctx, map[string]any{
		"type":    "line",
		"x":       10,
		"y":       10,
		"padding": 2,
		"points":  []any{[]any{0, 0}, []any{"=10 * 5", 20}, map[string]any{"x": 30, "y": 8}},
	})[0].Base()

	if got := mustFloat(t, s.Width); got != 54 {
		t.Errorf("Width() = %v, want 54", got)
	}
	if got := mustFloat(t, s.Height); got != 24 {
		t.Errorf("Height() = %v, want 24", got)
	}

	pts, err := absolutePoints(s)
	if err != nil {
		t.Fatalf("absolutePoints: %v", err)
	}
	want := []geom.Point{{X: 12, Y: 12}, {X: 62, Y: 32}, {X: 42, Y: 20}}
	for i := range want {
		if pts[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, pts[i], want[i])
		}
	}
}

func TestLineDraw(t *testing.T) {
	ctx := newTestContext(t, Options{})
	shapes := build(t, ctx,
		map[string]any{"type": "line", "points": []any{[]any{0, 0}, []any{10, 10}}},
		map[string]any{"type": "line", "points": []any{[]any{0, 0}}},
	)

	layer := &fakeLayer{img: image.NewRGBA(image.Rect(0, 0, 10, 10))}
	if err := shapes[0].Draw(layer); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if len(layer.ops) != 1 || layer.ops[0] != "polyline" {
		t.Errorf("ops = %v, want [polyline]", layer.ops)
	}

	layer = &fakeLayer{img: image.NewRGBA(image.Rect(0, 0, 10, 10))}
	if err := shapes[1].Draw(layer); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if len(layer.ops) != 0 {
		t.Errorf("single point drew %v, want nothing", layer.ops)
	}
}

func TestLineInvalidPoint(t *testing.T) {
	ctx := newTestContext(t, Options{})
	s := build(t, ctx, map[string]any{"type": "line", "points": []any{[]any{0, 0, 1}}})[0]
	if _, err := s.Base().Width(); !errs.Is(err, errs.ErrCodeInvalidParameterType) {
		t.Errorf("Width() error = %v, want %s", err, errs.ErrCodeInvalidParameterType)
	}
}

func TestPolygonDraw(t *testing.T) {
	tests := []struct {
		name string
		desc map[string]any
		want []string
	}{
		{"outline only", map[string]any{"border": 2}, []string{"polyline"}},
		{"filled", map[string]any{"color": "red"}, []string{"fill_polygon"}},
		{"filled with border", map[string]any{"color": "red", "border_width": 1}, []string{"fill_polygon", "polyline"}},
		{"nothing", map[string]any{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := map[string]any{"type": "polygon", "points": []any{[]any{0, 0}, []any{10, 0}, []any{5, 5}}}
			for k, v := range tt.desc {
				desc[k] = v
			}
			ctx := newTestContext(t, Options{})
			s := build(t, ctx, desc)[0]
			layer := &fakeLayer{img: image.NewRGBA(image.Rect(0, 0, 10, 10))}
			if err := s.Draw(layer); err != nil {
				t.Fatalf("Draw: %v", err)
			}
			if len(layer.ops) != len(tt.want) {
				t.Fatalf("ops = %v, want %v", layer.ops, tt.want)
			}
			for i := range tt.want {
				if layer.ops[i] != tt.want[i] {
					t.Errorf("ops = %v, want %v", layer.ops, tt.want)
				}
			}
		})
	}
}

func TestImageSize(t *testing.T) {
	tests := []struct {
		name  string
		desc  map[string]any
		wantW float64
		wantH float64
	}{
		{"natural", map[string]any{}, 100, 50},
		{"width keeps aspect", map[string]any{"width": 200}, 200, 100},
		{"height keeps aspect", map[string]any{"height": 10}, 20, 10},
		{"both fit inside", map[string]any{"width": 200, "height": 200}, 200, 100},
		{"stretched", map[string]any{"width": 200, "height": 200, "keep_aspect": false}, 200, 200},
		{"width only stretched", map[string]any{"width": 30, "keep_aspect": false}, 30, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t, Options{Images: fakeImages{"logo.png": {X: 100, Y: 50}}})
			desc := map[string]any{"type": "image", "source": "logo.png"}
			for k, v := range tt.desc {
				desc[k] = v
			}
			s := build(t, ctx, desc)[0].Base()
			if got := mustFloat(t, s.Width); got != tt.wantW {
				t.Errorf("Width() = %v, want %v", got, tt.wantW)
			}
			if got := mustFloat(t, s.Height); got != tt.wantH {
				t.Errorf("Height() = %v, want %v", got, tt.wantH)
			}
		})
	}
}

func TestImageSourceFrame(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 40, 30))
	ctx := newTestContext(t, Options{Source: frame})
	s := build(t, ctx, map[string]any{"type": "image", "source": "$source"})[0].(*Image)

	src, err := s.Source()
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if src != frame {
		t.Error("Source() did not return the frame")
	}
}

func TestImageErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		desc map[string]any
		want errs.Code
	}{
		{"missing source param", Options{}, map[string]any{}, errs.ErrCodeParameterNotFound},
		{"no frame", Options{}, map[string]any{"source": "$source"}, errs.ErrCodeUnresolvedReference},
		{"unknown file", Options{Images: fakeImages{}}, map[string]any{"source": "nope.png"}, errs.ErrCodeFileNotFound},
		{"no loader", Options{}, map[string]any{"source": "a.png"}, errs.ErrCodeInternal},
		{"bad type", Options{}, map[string]any{"source": 3}, errs.ErrCodeInvalidParameterType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t, tt.opts)
			desc := map[string]any{"type": "image"}
			for k, v := range tt.desc {
				desc[k] = v
			}
			s := build(t, ctx, desc)[0].(*Image)
			if _, err := s.Source(); !errs.Is(err, tt.want) {
				t.Errorf("Source() error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestImagePixels(t *testing.T) {
	ctx := newTestContext(t, Options{Images: fakeImages{"logo.png": {X: 100, Y: 50}, "mask.png": {X: 10, Y: 10}}})
	shapes := build(t, ctx,
		map[string]any{"type": "image", "source": "logo.png", "width": 40, "transparency": 0.5},
		map[string]any{"type": "image", "source": "logo.png", "mask": "mask.png", "multiply_color": "red"},
	)

	img, err := shapes[0].(*Image).Pixels()
	if err != nil {
		t.Fatalf("Pixels: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("Pixels() size = %v, want 40x20", b.Size())
	}

	layer := &fakeLayer{img: image.NewRGBA(image.Rect(0, 0, 10, 10))}
	if err := shapes[0].Draw(layer); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if len(layer.ops) != 1 || layer.ops[0] != "image" {
		t.Errorf("ops = %v, want [image]", layer.ops)
	}

	masked, err := shapes[1].(*Image).Pixels()
	if err != nil {
		t.Fatalf("Pixels with mask: %v", err)
	}
	if a := masked.NRGBAAt(5, 5).A; a != 0 {
		t.Errorf("masked alpha = %d, want 0", a)
	}
}
