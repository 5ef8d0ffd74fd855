package shape

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/geom"
)

// fakeRaster fills rectangles for real and records everything else, so
// geometry tests do not depend on fonts.
type fakeRaster struct {
	layers int
}

func (f *fakeRaster) NewLayer(w, h int) Layer {
	f.layers++
	return &fakeLayer{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// MeasureText reports half the font size per rune.
func (f *fakeRaster) MeasureText(_ string, size float64, s string) (TextExtent, error) {
	return TextExtent{
		Width:      float64(len([]rune(s))) * size / 2,
		Ascent:     size * 0.8,
		Descent:    size * 0.2,
		LineHeight: size,
	}, nil
}

type fakeLayer struct {
	img   *image.RGBA
	texts []TextRun
	ops   []string
}

func (l *fakeLayer) FillRect(r geom.Rect, _ float64, c color.Color) error {
	l.ops = append(l.ops, "fill_rect")
	rect := image.Rect(int(r.X), int(r.Y), int(r.Right()), int(r.Bottom()))
	draw.Draw(l.img, rect, image.NewUniform(c), image.Point{}, draw.Over)
	return nil
}

func (l *fakeLayer) StrokeRect(geom.Rect, float64, color.Color, float64) error {
	l.ops = append(l.ops, "stroke_rect")
	return nil
}

func (l *fakeLayer) FillEllipse(geom.Rect, color.Color) error {
	l.ops = append(l.ops, "fill_ellipse")
	return nil
}

func (l *fakeLayer) StrokeEllipse(geom.Rect, color.Color, float64) error {
	l.ops = append(l.ops, "stroke_ellipse")
	return nil
}

func (l *fakeLayer) FillPolygon([]geom.Point, color.Color) error {
	l.ops = append(l.ops, "fill_polygon")
	return nil
}

func (l *fakeLayer) StrokePolyline([]geom.Point, color.Color, float64, bool, bool) error {
	l.ops = append(l.ops, "polyline")
	return nil
}

func (l *fakeLayer) DrawText(run TextRun) error {
	l.texts = append(l.texts, run)
	return nil
}

func (l *fakeLayer) DrawImage(image.Image, geom.Rect, float64) error {
	l.ops = append(l.ops, "image")
	return nil
}

func (l *fakeLayer) Image() *image.RGBA { return l.img }

// fakeImages serves solid images of fixed sizes by name.
type fakeImages map[string]image.Point

func (f fakeImages) Load(ref string) (image.Image, error) {
	size, ok := f[ref]
	if !ok {
		return nil, errs.New(errs.ErrCodeFileNotFound, "no image %q", ref)
	}
	return image.NewRGBA(image.Rect(0, 0, size.X, size.Y)), nil
}

func newTestContext(t *testing.T, opts Options) *Context {
	t.Helper()
	if opts.Width == 0 && opts.Height == 0 {
		opts.Width, opts.Height = 400, 300
	}
	if opts.Raster == nil {
		opts.Raster = &fakeRaster{}
	}
	return NewContext(opts)
}

func build(t *testing.T, ctx *Context, descs ...map[string]any) []Shape {
	t.Helper()
	shapes, err := ctx.BuildAll(descs)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	return shapes
}

func mustFloat(t *testing.T, f func() (float64, error)) float64 {
	t.Helper()
	v, err := f()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return v
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestPercentOfDefault(t *testing.T) {
	ctx := newTestContext(t, Options{Defaults: map[string]any{"width": 200, "font_size": 20}})
	s := build(t, ctx, map[string]any{"type": "rect", "width": "50%", "height": 10})[0]

	if got := mustFloat(t, s.Base().Width); got != 100 {
		t.Errorf("Width() = %v, want 100", got)
	}

	n := s.Base()
	v, err := n.Number("size", Default("25%"), DefaultKey("font_size"))
	if err != nil {
		t.Fatalf("Number(size): %v", err)
	}
	if v != 5 {
		t.Errorf("size = %v, want 5", v)
	}
}

func TestPercentWithoutDefault(t *testing.T) {
	ctx := newTestContext(t, Options{})
	s := build(t, ctx, map[string]any{"type": "rect", "width": "50%"})[0]

	_, err := s.Base().Width()
	if !errs.Is(err, errs.ErrCodeParameterNotFound) {
		t.Errorf("Width() error = %v, want %s", err, errs.ErrCodeParameterNotFound)
	}
}

func TestAlignment(t *testing.T) {
	tests := []struct {
		name  string
		desc  map[string]any
		wantX float64
		wantY float64
	}{
		{
			name:  "top left",
			desc:  map[string]any{"x": 10, "y": 20},
			wantX: 10, wantY: 20,
		},
		{
			name:  "center",
			desc:  map[string]any{"align_h": "center", "align_v": "center"},
			wantX: 150, wantY: 125,
		},
		{
			name:  "center with offset",
			desc:  map[string]any{"x": 5, "align_h": "center"},
			wantX: 155, wantY: 0,
		},
		{
			name:  "right bottom",
			desc:  map[string]any{"x": 10, "y": 10, "align_h": "right", "align_v": "bottom"},
			wantX: 290, wantY: 240,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t, Options{})
			desc := map[string]any{"type": "rect", "width": 100, "height": 50}
			for k, v := range tt.desc {
				desc[k] = v
			}
			n := build(t, ctx, desc)[0].Base()
			if got := mustFloat(t, n.X); got != tt.wantX {
				t.Errorf("X() = %v, want %v", got, tt.wantX)
			}
			if got := mustFloat(t, n.Y); got != tt.wantY {
				t.Errorf("Y() = %v, want %v", got, tt.wantY)
			}
		})
	}
}

func TestInvalidAlignment(t *testing.T) {
	ctx := newTestContext(t, Options{})
	n := build(t, ctx, map[string]any{"type": "rect", "align_h": "middle-ish"})[0].Base()
	if _, err := n.X(); !errs.Is(err, errs.ErrCodeInvalidParameterType) {
		t.Errorf("X() error = %v, want %s", err, errs.ErrCodeInvalidParameterType)
	}
}

func TestPadding(t *testing.T) {
	ctx := newTestContext(t, Options{})
	shapes := build(t, ctx,
		map[string]any{"type": "rect", "id": "frame", "x": 10, "y": 10, "width": 200, "height": 100, "padding": []any{1, 2, 3, 4}},
		map[string]any{"type": "rect", "parent": "frame", "width": 20, "height": 20, "padding": 5, "padding_left": 0},
	)

	got, err := shapes[0].Base().DrawRect()
	if err != nil {
		t.Fatalf("DrawRect: %v", err)
	}
	if want := geom.R(14, 11, 194, 96); got != want {
		t.Errorf("DrawRect() = %v, want %v", got, want)
	}

	child := shapes[1].Base()
	if got := mustFloat(t, child.X); got != 14 {
		t.Errorf("child X() = %v, want 14", got)
	}
	if got := mustFloat(t, child.WidthDraw); got != 15 {
		t.Errorf("child WidthDraw() = %v, want 15", got)
	}
}

func TestExpressions(t *testing.T) {
	ctx := newTestContext(t, Options{Variables: map[string]any{"margin": 4}})
	n := build(t, ctx, map[string]any{
		"type":   "rect",
		"x":      "=20+30",
		"y":      "=self.x/2",
		"width":  "=source_width.x",
		"height": "=$margin * 2 + unit_missing.y",
	})[0].Base()

	if got := mustFloat(t, n.X); got != 50 {
		t.Errorf("X() = %v, want 50", got)
	}
	if got := mustFloat(t, n.Y); got != 25 {
		t.Errorf("Y() = %v, want 25", got)
	}
	if _, err := n.Width(); !errs.Is(err, errs.ErrCodeUnresolvedReference) {
		t.Errorf("Width() error = %v, want %s", err, errs.ErrCodeUnresolvedReference)
	}
	if _, err := n.Height(); !errs.Is(err, errs.ErrCodeUnresolvedReference) {
		t.Errorf("Height() error = %v, want %s", err, errs.ErrCodeUnresolvedReference)
	}
}

func TestVariables(t *testing.T) {
	ctx := newTestContext(t, Options{
		Variables:         map[string]any{"size": 40},
		TemplateVariables: map[string]any{"size": 10, "gap": 3},
	})
	n := build(t, ctx, map[string]any{
		"type":   "rect",
		"width":  "$size",
		"height": "${gap}",
		"x":      "=$unit * 10",
		"y":      "$nothing",
	})[0].Base()

	if got := mustFloat(t, n.Width); got != 40 {
		t.Errorf("Width() = %v, want 40 (runtime variables win)", got)
	}
	if got := mustFloat(t, n.Height); got != 3 {
		t.Errorf("Height() = %v, want 3", got)
	}
	if got := mustFloat(t, n.X); got != 30 {
		t.Errorf("X() = %v, want 30", got)
	}
	if _, err := n.Y(); !errs.Is(err, errs.ErrCodeUnresolvedReference) {
		t.Errorf("Y() error = %v, want %s", err, errs.ErrCodeUnresolvedReference)
	}
}

func TestScopeReferences(t *testing.T) {
	ctx := newTestContext(t, Options{})
	shapes := build(t, ctx,
		map[string]any{"type": "rect", "id": "other", "width": 80, "height": 30},
		map[string]any{"type": "rect", "width": "other.width", "height": "=other.height + 5", "x": "other.right"},
		map[string]any{"type": "rect", "id": "me", "width": "me.height"},
		map[string]any{"type": "rect", "x": "=self.x + 1"},
		map[string]any{"type": "rect", "width": "=parent.width / 4", "height": "file.png"},
	)

	n := shapes[1].Base()
	if got := mustFloat(t, n.Width); got != 80 {
		t.Errorf("Width() = %v, want 80", got)
	}
	if got := mustFloat(t, n.Height); got != 35 {
		t.Errorf("Height() = %v, want 35", got)
	}
	if got := mustFloat(t, n.X); got != 80 {
		t.Errorf("X() = %v, want 80", got)
	}

	if _, err := shapes[2].Base().Width(); !errs.Is(err, errs.ErrCodeRecursion) {
		t.Errorf("self reference by id: error = %v, want %s", err, errs.ErrCodeRecursion)
	}
	if _, err := shapes[3].Base().X(); !errs.Is(err, errs.ErrCodeRecursion) {
		t.Errorf("self.x in x: error = %v, want %s", err, errs.ErrCodeRecursion)
	}

	last := shapes[4].Base()
	if got := mustFloat(t, last.Width); got != 100 {
		t.Errorf("parent reference: Width() = %v, want 100", got)
	}
	if v, err := last.Param("height"); err != nil || v != "file.png" {
		t.Errorf("unknown scope name: Param(height) = %v, %v, want literal file.png", v, err)
	}
}

func TestCache(t *testing.T) {
	ctx := newTestContext(t, Options{})
	n := build(t, ctx, map[string]any{"type": "rect", "width": "=10 * 3"})[0].Base()

	first := mustFloat(t, n.Width)
	second := mustFloat(t, n.Width)
	if first != 30 || second != first {
		t.Errorf("Width() = %v then %v, want 30 twice", first, second)
	}
	if n.Cache().Len() == 0 {
		t.Error("cache is empty after resolving")
	}

	n.SetData("width", 12)
	if got := mustFloat(t, n.Width); got != 12 {
		t.Errorf("Width() after SetData = %v, want 12", got)
	}

	n.data["width"] = 99
	if got := mustFloat(t, n.Width); got != 12 {
		t.Errorf("Width() before Invalidate = %v, want cached 12", got)
	}
	n.Invalidate()
	if got := mustFloat(t, n.Width); got != 99 {
		t.Errorf("Width() after Invalidate = %v, want 99", got)
	}
}

func TestNoCache(t *testing.T) {
	ctx := newTestContext(t, Options{NoCache: true})
	n := build(t, ctx, map[string]any{"type": "rect", "width": 10})[0].Base()
	mustFloat(t, n.Width)
	if n.Cache().Len() != 0 {
		t.Errorf("cache holds %d values with NoCache", n.Cache().Len())
	}
}

func TestDescriptorParent(t *testing.T) {
	ctx := newTestContext(t, Options{})
	shapes := build(t, ctx,
		map[string]any{"type": "rect", "id": "panel", "x": 100, "y": 50, "width": 200, "height": 100},
		map[string]any{"type": "rect", "parent": "panel", "x": 10, "width": 20, "align_v": "bottom"},
	)
	child := shapes[1].Base()
	if got := mustFloat(t, child.X); got != 110 {
		t.Errorf("X() = %v, want 110", got)
	}
	// Default rect height is 100, so bottom alignment lands on the panel's top.
	if got := mustFloat(t, child.Y); got != 50 {
		t.Errorf("Y() = %v, want 50", got)
	}

	_, err := ctx.Build(map[string]any{"type": "rect", "parent": "nope"}, nil)
	if !errs.Is(err, errs.ErrCodeUnresolvedReference) {
		t.Errorf("unknown parent error = %v, want %s", err, errs.ErrCodeUnresolvedReference)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		desc map[string]any
		code errs.Code
	}{
		{"missing type", map[string]any{"width": 10}, errs.ErrCodePreset},
		{"non-string type", map[string]any{"type": 3}, errs.ErrCodePreset},
		{"unknown type", map[string]any{"type": "hexagon"}, errs.ErrCodeShapeTypeNotFound},
		{"reserved id", map[string]any{"type": "rect", "id": "self"}, errs.ErrCodePreset},
		{"bad id", map[string]any{"type": "rect", "id": "1abc"}, errs.ErrCodePreset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t, Options{})
			_, err := ctx.Build(tt.desc, nil)
			if !errs.Is(err, tt.code) {
				t.Errorf("Build() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestDuplicateTopLevelID(t *testing.T) {
	ctx := newTestContext(t, Options{})
	_, err := ctx.BuildAll([]map[string]any{
		{"type": "rect", "id": "a"},
		{"type": "rect", "id": "a"},
	})
	if !errs.Is(err, errs.ErrCodePreset) {
		t.Errorf("BuildAll() error = %v, want %s", err, errs.ErrCodePreset)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("rect", NewRect); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("rect", NewRect); err == nil {
		t.Error("registering rect twice succeeded")
	}
	if !r.Has("rect") || r.Has("grid") {
		t.Errorf("Has() inconsistent with registrations: %v", r.Types())
	}
	if _, err := r.Lookup("grid"); !errs.Is(err, errs.ErrCodeShapeTypeNotFound) {
		t.Errorf("Lookup(grid) error = %v, want %s", err, errs.ErrCodeShapeTypeNotFound)
	}

	want := []string{"column", "ellipse", "grid", "image", "label", "line", "polygon", "rect", "row", "tile"}
	got := DefaultRegistry().Types()
	if len(got) != len(want) {
		t.Fatalf("DefaultRegistry().Types() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRenderRect(t *testing.T) {
	ctx := newTestContext(t, Options{})
	n := build(t, ctx, map[string]any{
		"type": "rect", "x": 10, "y": 20, "width": 100, "height": 50, "color": "red",
	})[0].Base()

	r, err := n.Rect()
	if err != nil {
		t.Fatalf("Rect: %v", err)
	}
	if want := geom.R(10, 20, 100, 50); r != want {
		t.Errorf("Rect() = %v, want %v", r, want)
	}

	img, err := n.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 400, 300) {
		t.Errorf("layer bounds = %v, want canvas size", got)
	}
	if got := img.RGBAAt(50, 40); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("pixel inside = %v, want red", got)
	}
	if got := img.RGBAAt(5, 5); got.A != 0 {
		t.Errorf("pixel outside = %v, want transparent", got)
	}
}

func TestRenderDisabled(t *testing.T) {
	raster := &fakeRaster{}
	ctx := newTestContext(t, Options{Raster: raster})
	n := build(t, ctx, map[string]any{"type": "rect", "enabled": false})[0].Base()

	img, err := n.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if raster.layers != 0 {
		t.Errorf("disabled shape allocated %d layers, want 0", raster.layers)
	}
	for _, p := range img.Pix {
		if p != 0 {
			t.Fatal("disabled shape produced visible pixels")
		}
	}
}

func TestRotation(t *testing.T) {
	ctx := newTestContext(t, Options{})
	shapes := build(t, ctx,
		map[string]any{"type": "rect", "id": "outer", "width": 100, "height": 50, "rotate": 90},
		map[string]any{"type": "rect", "parent": "outer", "width": 10, "height": 10, "rotation": 45},
	)

	outer := shapes[0].Base()
	b, err := outer.Bounds()
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	want := geom.R(25, -25, 50, 100)
	if !near(b.X, want.X) || !near(b.Y, want.Y) || !near(b.Width, want.Width) || !near(b.Height, want.Height) {
		t.Errorf("Bounds() = %v, want %v", b, want)
	}

	inner := shapes[1].Base()
	if got := mustFloat(t, inner.GlobalRotate); got != 135 {
		t.Errorf("GlobalRotate() = %v, want 135", got)
	}

	// Counter-clockwise on screen: the right edge midpoint moves to the top.
	m, err := outer.Transform()
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	p := m.Apply(geom.Pt(100, 25))
	if !near(p.X, 50) || !near(p.Y, -25) {
		t.Errorf("Transform().Apply(100, 25) = %v, want (50, -25)", p)
	}
}

func TestRotationPivot(t *testing.T) {
	ctx := newTestContext(t, Options{})
	n := build(t, ctx, map[string]any{
		"type": "rect", "x": 10, "y": 10, "width": 20, "height": 20,
		"rotate": 180, "rotation_pivot": []any{0, 0},
	})[0].Base()

	pivot, err := n.Pivot()
	if err != nil {
		t.Fatalf("Pivot: %v", err)
	}
	if pivot != geom.Pt(10, 10) {
		t.Errorf("Pivot() = %v, want (10, 10)", pivot)
	}
	b, err := n.Bounds()
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if !near(b.X, -10) || !near(b.Y, -10) {
		t.Errorf("Bounds() = %v, want origin (-10, -10)", b)
	}
}

func TestDebugOverlay(t *testing.T) {
	ctx := newTestContext(t, Options{Debug: true})
	n := build(t, ctx, map[string]any{"type": "rect", "x": 10, "y": 20, "width": 100, "height": 50})[0].Base()
	before, err := n.Rect()
	if err != nil {
		t.Fatalf("Rect: %v", err)
	}
	if _, err := n.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	after, err := n.Rect()
	if err != nil {
		t.Fatalf("Rect: %v", err)
	}
	if before != after {
		t.Errorf("debug overlay changed geometry: %v -> %v", before, after)
	}
}

func TestLocalVariables(t *testing.T) {
	ctx := newTestContext(t, Options{})
	parent := build(t, ctx, map[string]any{"type": "rect", "id": "holder"})[0]
	parent.Base().SetLocal(map[string]any{"index": 2})

	child, err := ctx.Build(map[string]any{"type": "rect", "width": "=10 + $index", "height": "=self.index"}, parent)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := mustFloat(t, child.Base().Width); got != 12 {
		t.Errorf("Width() = %v, want 12", got)
	}
	if got := mustFloat(t, child.Base().Height); got != 2 {
		t.Errorf("Height() = %v, want 2", got)
	}
}

func TestWarnings(t *testing.T) {
	ctx := newTestContext(t, Options{})
	ctx.Warn("first")
	w := ctx.Warnings()
	w[0] = "changed"
	if got := ctx.Warnings(); len(got) != 1 || got[0] != "first" {
		t.Errorf("Warnings() = %v, want [first]", got)
	}
}

func TestContextVariable(t *testing.T) {
	ctx := newTestContext(t, Options{Width: 200, Height: 50})
	tests := []struct {
		name string
		want any
	}{
		{"source_width", 200.0},
		{"source_height", 50.0},
		{"unit", 0.5},
	}
	for _, tt := range tests {
		v, ok := ctx.Variable(tt.name)
		if !ok || v != tt.want {
			t.Errorf("Variable(%q) = %v, %v, want %v", tt.name, v, ok, tt.want)
		}
	}
}
