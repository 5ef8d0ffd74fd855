package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/framestamp/pkg/cache"
	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/imageio"
	"github.com/matzehuels/framestamp/pkg/observability"
	"github.com/matzehuels/framestamp/pkg/raster"
	"github.com/matzehuels/framestamp/pkg/scene"
	"github.com/matzehuels/framestamp/pkg/template"
)

// barTemplate draws a red bar whose width grows with the frame number.
const barTemplate = `{"name": "bar", "shapes": [
	{"type": "rect", "x": 0, "y": 0, "width": "=$frame + 1", "height": 8, "color": "red"}
]}`

func mustTemplate(t *testing.T, src string) *template.Template {
	t.Helper()
	f, err := template.Parse([]byte(src), template.FormatJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tpl, err := f.Select("")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	return tpl
}

// writeFrames writes gray 8x8 PNGs and returns their paths in order.
func writeFrames(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := imageio.Save(p, imageio.Checker(8, 8, 8), 0); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func newRunner(t *testing.T, c cache.Cache) *Runner {
	t.Helper()
	sc := scene.New(scene.Options{Raster: raster.New(nil)})
	return NewRunner(sc, c, nil, nil)
}

func TestValidateAndSetDefaults(t *testing.T) {
	tpl := mustTemplate(t, barTemplate)
	tests := []struct {
		name string
		opts Options
		want errs.Code
	}{
		{"no template", Options{Output: "out"}, errs.ErrCodeInvalidInput},
		{"no output", Options{Template: tpl}, errs.ErrCodeInvalidInput},
		{"bad format", Options{Template: tpl, Output: "out", Format: "webp"}, errs.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); !errs.Is(err, tt.want) {
				t.Errorf("ValidateAndSetDefaults() error = %v, want %s", err, tt.want)
			}
		})
	}

	opts := Options{Template: tpl, Output: "out", Format: "JPG"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Format != imageio.JPEG || opts.Quality != imageio.DefaultQuality || opts.Workers < 1 || opts.Logger == nil {
		t.Errorf("defaults not applied: %+v", opts)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		format imageio.Format
		input  string
		want   string
	}{
		{"", "plates/sh010.1001.png", filepath.Join("out", "sh010.1001.png")},
		{imageio.JPEG, "plates/sh010.1001.png", filepath.Join("out", "sh010.1001.jpeg")},
		{imageio.PNG, "a.tif", filepath.Join("out", "a.png")},
	}
	for _, tt := range tests {
		o := Options{Output: "out", Format: tt.format}
		if got := o.OutputPath(tt.input); got != tt.want {
			t.Errorf("OutputPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFrameVariables(t *testing.T) {
	o := Options{
		Inputs:     []string{"a.png", "b.png", "c.png"},
		Vars:       map[string]any{"shot": "sh010", "frame": "ignored"},
		FirstFrame: 1001,
		FrameVars: func(i int, file string, total int) map[string]any {
			return map[string]any{"label": file, "last": i == total-1}
		},
	}
	vars := o.FrameVariables(2, "c.png")

	want := map[string]any{
		"shot":         "sh010",
		"frame":        1003.0,
		"file":         "c.png",
		"total_frames": 3.0,
		"label":        "c.png",
		"last":         true,
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("vars[%s] = %v, want %v", k, vars[k], v)
		}
	}
	if o.Vars["frame"] != "ignored" {
		t.Error("FrameVariables mutated the shared runtime variables")
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "b.png", "a.png", "c.jpg")
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		pattern string
		limit   int
		want    []string
	}{
		{"all", "", 0, []string{"a.png", "b.png", "c.jpg"}},
		{"pattern", "*.png", 0, []string{"a.png", "b.png"}},
		{"limit", "", 2, []string{"a.png", "b.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Collect(dir, tt.pattern, tt.limit)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Collect() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if filepath.Base(got[i]) != tt.want[i] {
					t.Errorf("Collect()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := Collect(filepath.Join(dir, "missing"), "", 0); !errs.Is(err, errs.ErrCodeFileNotFound) {
		t.Errorf("Collect(missing) error = %v, want %s", err, errs.ErrCodeFileNotFound)
	}
	if _, err := Collect(filepath.Join(dir, "a.png"), "", 0); !errs.Is(err, errs.ErrCodeInvalidPath) {
		t.Errorf("Collect(file) error = %v, want %s", err, errs.ErrCodeInvalidPath)
	}
}

type batchHooks struct {
	observability.NoopRenderHooks
	starts, completes atomic.Int32
	failed            atomic.Int32
}

func (h *batchHooks) OnBatchStart(context.Context, string, int) { h.starts.Add(1) }
func (h *batchHooks) OnBatchComplete(_ context.Context, _ string, _, failed int, _ time.Duration) {
	h.completes.Add(1)
	h.failed.Store(int32(failed))
}

func TestRun(t *testing.T) {
	hooks := &batchHooks{}
	observability.SetRenderHooks(hooks)
	defer observability.Reset()

	src := t.TempDir()
	inputs := writeFrames(t, src, "a.png", "b.png", "c.png")
	bad := filepath.Join(src, "d.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	inputs = append(inputs, bad)

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := newRunner(t, fc)
	out := filepath.Join(t.TempDir(), "stamped")

	var progress atomic.Int32
	opts := Options{
		Template: mustTemplate(t, barTemplate),
		Inputs:   inputs,
		Output:   out,
		Workers:  2,
		Progress: func(done, total int) { progress.Add(1) },
	}
	res, err := r.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if res.Stats.Rendered != 3 || res.Stats.Failed != 1 || res.Stats.Cached != 0 {
		t.Errorf("Stats = %+v, want 3 rendered, 1 failed", res.Stats)
	}
	if failed := res.Failed(); len(failed) != 1 || failed[0].Input != bad {
		t.Errorf("Failed() = %v, want the corrupt frame", failed)
	}
	if got := progress.Load(); got != 4 {
		t.Errorf("progress calls = %d, want 4", got)
	}
	if hooks.starts.Load() != 1 || hooks.completes.Load() != 1 || hooks.failed.Load() != 1 {
		t.Errorf("batch hooks = %d starts, %d completes, %d failed", hooks.starts.Load(), hooks.completes.Load(), hooks.failed.Load())
	}

	// Frame 2 gets a bar 3 pixels wide.
	img, err := imageio.Open(filepath.Join(out, "c.png"))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	if cr, cg, _, _ := img.At(2, 4).RGBA(); cr>>8 < 200 || cg>>8 > 50 {
		t.Errorf("pixel (2, 4) = %v, want red", img.At(2, 4))
	}
	if cr, cg, _, _ := img.At(3, 4).RGBA(); cr != cg {
		t.Errorf("pixel (3, 4) = %v, want the gray plate", img.At(3, 4))
	}

	again, err := r.Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if again.Stats.Cached != 3 || again.Stats.Rendered != 0 {
		t.Errorf("second run Stats = %+v, want 3 cached", again.Stats)
	}

	opts.Refresh = true
	fresh, err := r.Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Stats.Rendered != 3 {
		t.Errorf("refresh run Stats = %+v, want 3 rendered", fresh.Stats)
	}
}

// writeSolid saves a 4x4 PNG of one color.
func writeSolid(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	if err := imageio.Save(path, img, 0); err != nil {
		t.Fatal(err)
	}
}

func TestRunInvalidatesOnAssetChange(t *testing.T) {
	assets := t.TempDir()
	logo := filepath.Join(assets, "logo.png")
	writeSolid(t, logo, color.RGBA{255, 0, 0, 255})

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sc := scene.New(scene.Options{Raster: raster.New(nil), Images: raster.NewImageLoader(assets, 0)})
	r := NewRunner(sc, fc, nil, nil)
	out := t.TempDir()
	opts := Options{
		Template: mustTemplate(t, `{"shapes": [
			{"type": "image", "source": "logo.png", "x": 0, "y": 0, "width": 4, "height": 4}
		]}`),
		Inputs: writeFrames(t, t.TempDir(), "a.png"),
		Output: out,
	}

	run := func(wantRendered, wantCached int) image.Image {
		t.Helper()
		res, err := r.Run(context.Background(), opts)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Stats.Rendered != wantRendered || res.Stats.Cached != wantCached || res.Stats.Failed != 0 {
			t.Fatalf("Stats = %+v, want %d rendered, %d cached", res.Stats, wantRendered, wantCached)
		}
		return mustOpen(t, filepath.Join(out, "a.png"))
	}

	if r8, _, b8, _ := run(1, 0).At(1, 1).RGBA(); r8>>8 < 200 || b8>>8 > 50 {
		t.Fatalf("first run pixel is not red")
	}
	run(0, 1)

	writeSolid(t, logo, color.RGBA{0, 0, 255, 255})
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(logo, later, later); err != nil {
		t.Fatal(err)
	}
	img := run(1, 0)
	if r8, _, b8, _ := img.At(1, 1).RGBA(); b8>>8 < 200 || r8>>8 > 50 {
		t.Errorf("pixel (1, 1) after editing logo = %v, want blue", img.At(1, 1))
	}
}

func TestRunFormatOverride(t *testing.T) {
	src := t.TempDir()
	inputs := writeFrames(t, src, "plate.png")
	out := t.TempDir()

	res, err := newRunner(t, nil).Run(context.Background(), Options{
		Template: mustTemplate(t, barTemplate),
		Inputs:   inputs,
		Output:   out,
		Format:   "jpeg",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Rendered != 1 {
		t.Fatalf("Stats = %+v", res.Stats)
	}
	if !strings.HasSuffix(res.Frames[0].Output, "plate.jpeg") {
		t.Errorf("Output = %s, want plate.jpeg", res.Frames[0].Output)
	}
	if _, err := os.Stat(res.Frames[0].Output); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestRunRefusesToOverwriteInputs(t *testing.T) {
	src := t.TempDir()
	inputs := writeFrames(t, src, "a.png")
	before := imageio.Hash(mustOpen(t, inputs[0]))

	res, err := newRunner(t, nil).Run(context.Background(), Options{
		Template: mustTemplate(t, barTemplate),
		Inputs:   inputs,
		Output:   src,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errs.Is(res.Frames[0].Err, errs.ErrCodeInvalidPath) {
		t.Errorf("frame error = %v, want %s", res.Frames[0].Err, errs.ErrCodeInvalidPath)
	}
	if imageio.Hash(mustOpen(t, inputs[0])) != before {
		t.Error("input frame was modified")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := t.TempDir()

	_, err := newRunner(t, nil).Run(ctx, Options{
		Template: mustTemplate(t, barTemplate),
		Inputs:   writeFrames(t, src, "a.png", "b.png"),
		Output:   t.TempDir(),
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func mustOpen(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imageio.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	return img
}
