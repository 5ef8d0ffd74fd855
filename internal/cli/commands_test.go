package cli

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/imageio"
)

const stampTemplate = `{
	// a red block whose height comes from a variable
	"name": "stamp",
	"shapes": [
		{"type": "rect", "id": "block", "x": 0, "y": 0, "width": 6, "height": "$h", "color": "red"}
	]
}`

const twoTemplates = `{"templates": [
	{"name": "ok", "shapes": [{"type": "rect", "width": 2, "height": 2}]},
	{"name": "broken", "shapes": [{"type": "star"}, {"type": "rect", "parent": "nowhere"}]}
]}`

// env is a scratch workspace with its own config and cache directory.
// Top-level config keys passed to newEnv are written before the [cache]
// table.
type env struct {
	dir    string
	config string
	cache  string
}

func newEnv(t *testing.T, configBody string) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{dir: dir, config: filepath.Join(dir, "config.toml"), cache: filepath.Join(dir, "cache")}
	body := configBody + "\n[cache]\ndir = " + quote(e.cache) + "\n"
	if err := os.WriteFile(e.config, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return e
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `\`, `\\`) + `"`
}

func (e *env) write(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(e.dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func (e *env) frames(t *testing.T, sub string, n int) string {
	t.Helper()
	dir := filepath.Join(e.dir, sub)
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, "plate."+string(rune('a'+i))+".png")
		if err := imageio.Save(p, imageio.Checker(16, 16, 8), 0); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func (e *env) run(t *testing.T, args ...string) error {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs(append([]string{"--config", e.config}, args...))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 200 && g>>8 < 50 && b>>8 < 50
}

func TestRenderCommand(t *testing.T) {
	e := newEnv(t, "")
	tpl := e.write(t, "stamp.jsonc", stampTemplate)
	frame := filepath.Join(e.frames(t, "plates", 1), "plate.a.png")
	out := filepath.Join(e.dir, "out", "stamped.png")

	if err := e.run(t, "render", tpl, frame, "-o", out, "--var", "h=4"); err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := imageio.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if !isRed(img.At(3, 2)) {
		t.Errorf("pixel (3, 2) = %v, want red", img.At(3, 2))
	}
	if isRed(img.At(3, 6)) {
		t.Errorf("pixel (3, 6) = %v, want the plate below a 4px block", img.At(3, 6))
	}
}

func TestRenderCommandTestCard(t *testing.T) {
	e := newEnv(t, "")
	tpl := e.write(t, "stamp.json", stampTemplate)
	vars := e.write(t, "vars.toml", "h = 10\n")
	out := filepath.Join(e.dir, "card.png")

	if err := e.run(t, "render", tpl, "--width", "40", "--height", "20", "--vars-file", vars, "-o", out, "--format", "jpeg"); err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := imageio.Open(filepath.Join(e.dir, "card.jpeg"))
	if err != nil {
		t.Fatalf("open jpeg output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("bounds = %v, want 40x20", b)
	}
}

func TestRenderCommandErrors(t *testing.T) {
	e := newEnv(t, "")
	tpl := e.write(t, "stamp.json", stampTemplate)
	multi := e.write(t, "multi.json", twoTemplates)
	frame := filepath.Join(e.frames(t, "plates", 1), "plate.a.png")

	tests := []struct {
		name string
		args []string
		want errs.Code
	}{
		{"overwrite input", []string{"render", tpl, frame, "-o", frame, "--var", "h=1"}, errs.ErrCodeInvalidPath},
		{"missing template", []string{"render", filepath.Join(e.dir, "nope.json")}, errs.ErrCodeFileNotFound},
		{"missing frame", []string{"render", tpl, filepath.Join(e.dir, "nope.png")}, errs.ErrCodeFileNotFound},
		{"ambiguous template", []string{"render", multi, "-o", filepath.Join(e.dir, "x.png")}, errs.ErrCodeInvalidTemplate},
		{"unknown name", []string{"render", multi, "--name", "other", "-o", filepath.Join(e.dir, "x.png")}, errs.ErrCodeTemplateNotFound},
		{"bad var", []string{"render", tpl, "--var", "h"}, errs.ErrCodeInvalidInput},
		{"unresolved variable", []string{"render", tpl, "--width", "8", "--height", "8", "-o", filepath.Join(e.dir, "x.png")}, errs.ErrCodeUnresolvedReference},
		{"bad format", []string{"render", tpl, "--var", "h=1", "-o", filepath.Join(e.dir, "x.png"), "--format", "gif"}, errs.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.run(t, tt.args...); !errs.Is(err, tt.want) {
				t.Errorf("error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestBatchCommand(t *testing.T) {
	e := newEnv(t, "workers = 2\n")
	tpl := e.write(t, "stamp.json", stampTemplate)
	plates := e.frames(t, "plates", 3)
	out := filepath.Join(e.dir, "stamped")

	if err := e.run(t, "batch", tpl, plates, "-o", out, "--var", "h=3"); err != nil {
		t.Fatalf("batch: %v", err)
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("output holds %d frames, want 3", len(entries))
	}
	img, err := imageio.Open(filepath.Join(out, "plate.b.png"))
	if err != nil {
		t.Fatal(err)
	}
	if !isRed(img.At(1, 1)) {
		t.Errorf("pixel (1, 1) = %v, want red", img.At(1, 1))
	}

	cached, err := os.ReadDir(e.cache)
	if err != nil || len(cached) == 0 {
		t.Errorf("frame cache at %s is empty (%v)", e.cache, err)
	}

	if err := e.run(t, "batch", tpl, plates, "-o", out, "--var", "h=3", "--limit", "1", "--no-cache"); err != nil {
		t.Errorf("batch --no-cache: %v", err)
	}
}

func TestBatchCommandFailures(t *testing.T) {
	e := newEnv(t, "")
	tpl := e.write(t, "stamp.json", stampTemplate)
	plates := e.frames(t, "plates", 2)
	e.write(t, "plates/plate.z.png", "not an image")
	out := filepath.Join(e.dir, "stamped")

	err := e.run(t, "batch", tpl, plates, "-o", out, "--var", "h=3")
	if !errs.Is(err, errs.ErrCodeRenderFailed) {
		t.Errorf("error = %v, want %s", err, errs.ErrCodeRenderFailed)
	}
	if _, err := os.Stat(filepath.Join(out, "plate.a.png")); err != nil {
		t.Errorf("good frame missing after a failed one: %v", err)
	}

	if err := e.run(t, "batch", tpl, plates, "--var", "h=3"); err == nil {
		t.Error("batch without --output succeeded")
	}
	if err := e.run(t, "batch", tpl, plates, "-o", out, "--workers", "0"); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("--workers 0 error = %v, want %s", err, errs.ErrCodeInvalidInput)
	}
}

func TestValidateCommand(t *testing.T) {
	e := newEnv(t, "")
	tpl := e.write(t, "stamp.json", stampTemplate)
	multi := e.write(t, "multi.json", twoTemplates)

	tests := []struct {
		name string
		args []string
		want errs.Code
	}{
		{"valid", []string{"validate", tpl}, ""},
		{"resolved with vars", []string{"validate", tpl, "--resolve", "--var", "h=2"}, ""},
		{"resolve without vars", []string{"validate", tpl, "--resolve"}, errs.ErrCodeInvalidTemplate},
		{"broken template in file", []string{"validate", multi}, errs.ErrCodeInvalidTemplate},
		{"only the good one", []string{"validate", multi, "--name", "ok"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.run(t, tt.args...)
			if tt.want == "" {
				if err != nil {
					t.Errorf("error = %v, want nil", err)
				}
				return
			}
			if !errs.Is(err, tt.want) {
				t.Errorf("error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestInspectAndTreeCommands(t *testing.T) {
	e := newEnv(t, "")
	tpl := e.write(t, "stamp.json", stampTemplate)

	if err := e.run(t, "inspect", tpl, "--var", "h=5", "--width", "64", "--height", "32"); err != nil {
		t.Errorf("inspect: %v", err)
	}
	if err := e.run(t, "inspect", tpl, "--json"); err != nil {
		t.Errorf("inspect --json with an unresolved variable: %v", err)
	}

	tests := []struct {
		name   string
		output string
		format string
		want   string
	}{
		{"dot by extension", "tree.dot", "", "digraph"},
		{"svg by extension", "tree.svg", "", "<svg"},
		{"dot by flag", "tree.txt", "dot", "rect#block"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(e.dir, tt.output)
			args := []string{"tree", tpl, "--var", "h=5", "-o", out}
			if tt.format != "" {
				args = append(args, "--format", tt.format)
			}
			if err := e.run(t, args...); err != nil {
				t.Fatalf("tree: %v", err)
			}
			data, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Contains(data, []byte(tt.want)) {
				t.Errorf("%s does not contain %q", tt.output, tt.want)
			}
		})
	}

	if err := e.run(t, "tree", tpl, "--format", "png"); !errs.Is(err, errs.ErrCodeInvalidFormat) {
		t.Errorf("tree --format png error = %v, want %s", err, errs.ErrCodeInvalidFormat)
	}
}

func TestCacheCommands(t *testing.T) {
	e := newEnv(t, "")
	tpl := e.write(t, "stamp.json", stampTemplate)
	plates := e.frames(t, "plates", 2)
	if err := e.run(t, "batch", tpl, plates, "-o", filepath.Join(e.dir, "out"), "--var", "h=1"); err != nil {
		t.Fatal(err)
	}

	if err := e.run(t, "cache", "path"); err != nil {
		t.Errorf("cache path: %v", err)
	}
	if err := e.run(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	entries, _ := os.ReadDir(e.cache)
	if len(entries) != 0 {
		t.Errorf("cache holds %d entries after clear", len(entries))
	}
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfg, []byte("[cache]\nbackend = \"s3\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"--config", cfg, "cache", "path"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Errorf("error = %v, want %s", err, errs.ErrCodeConfiguration)
	}
}

func TestConfigAppliesDebugLevel(t *testing.T) {
	e := newEnv(t, "debug = true\n")
	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"--config", e.config, "cache", "path"})
	root.SetOut(io.Discard)
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	c.Logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug = true in config did not enable debug logging")
	}
}
