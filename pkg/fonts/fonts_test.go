package fonts

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/font/gofont/gomono"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

func TestSourceBuiltin(t *testing.T) {
	lib := New(nil, 0)
	tests := []string{"", "regular", "Sans", "bold", "italic", "bold-italic", "mono", "monospace"}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			src, err := lib.Source(name)
			if err != nil {
				t.Fatalf("Source(%q) error = %v", name, err)
			}
			if src == nil {
				t.Fatalf("Source(%q) = nil", name)
			}
		})
	}
	if got := lib.Len(); got != 5 {
		t.Errorf("Len() = %d, want 5 distinct sources", got)
	}
}

func TestSourceCached(t *testing.T) {
	lib := New(nil, 0)
	a, err := lib.Source("sans")
	if err != nil {
		t.Fatal(err)
	}
	b, err := lib.Source("regular")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("aliases returned different sources")
	}
}

func TestSourceFromDirs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Typewriter.ttf"), gomono.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	lib := New([]string{t.TempDir(), dir}, 4)

	tests := []struct {
		name string
		font string
	}{
		{"by name", "Typewriter"},
		{"by file name", "Typewriter.ttf"},
		{"by path", filepath.Join(dir, "Typewriter.ttf")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := lib.Source(tt.font); err != nil {
				t.Errorf("Source(%q) error = %v", tt.font, err)
			}
		})
	}
}

func TestConfinedSource(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "fonts")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Typewriter.ttf"), gomono.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "Outside.ttf"), gomono.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(base, "Outside.ttf"), filepath.Join(dir, "Link.ttf")); err != nil {
		t.Fatal(err)
	}
	lib := NewConfined([]string{dir}, 0)

	tests := []struct {
		name string
		font string
		want errs.Code
	}{
		{"builtin", "mono", ""},
		{"by name", "Typewriter", ""},
		{"by file name", "Typewriter.ttf", ""},
		{"absolute path", filepath.Join(dir, "Typewriter.ttf"), errs.ErrCodeInvalidPath},
		{"parent segment", "../Outside.ttf", errs.ErrCodeInvalidPath},
		{"symlink out of dir", "Link", errs.ErrCodeConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lib.Source(tt.font)
			if tt.want == "" {
				if err != nil {
					t.Errorf("Source(%q) error = %v", tt.font, err)
				}
				return
			}
			if !errs.Is(err, tt.want) {
				t.Errorf("Source(%q) error = %v, want %s", tt.font, err, tt.want)
			}
		})
	}
}

func TestStamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Typewriter.ttf")
	if err := os.WriteFile(path, gomono.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	for _, lib := range []*Library{New([]string{dir}, 0), NewConfined([]string{dir}, 0)} {
		a, ok := lib.Stamp("Typewriter")
		if !ok {
			t.Fatalf("Stamp(Typewriter) found nothing (confined %v)", lib.confined)
		}
		if _, ok := lib.Stamp("mono"); ok {
			t.Error("Stamp(mono) = true, want false for an embedded font")
		}
		if _, ok := lib.Stamp("Missing"); ok {
			t.Error("Stamp(Missing) = true, want false")
		}
		later := time.Now().Add(time.Hour)
		if err := os.Chtimes(path, later, later); err != nil {
			t.Fatal(err)
		}
		if b, _ := lib.Stamp("Typewriter"); a == b {
			t.Errorf("Stamp() = %s after touching the file, want a new stamp", b)
		}
	}
}

func TestSourceNotFound(t *testing.T) {
	lib := New([]string{t.TempDir()}, 0)
	_, err := lib.Source("Nonexistent Serif")
	if !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Errorf("Source() error = %v, want %s", err, errs.ErrCodeConfiguration)
	}
}

func TestFace(t *testing.T) {
	lib := New(nil, 0)
	face, err := lib.Face("", 20)
	if err != nil {
		t.Fatalf("Face() error = %v", err)
	}
	if face.Size() != 20 {
		t.Errorf("Size() = %v, want 20", face.Size())
	}
	if w := face.Advance("frame"); w <= 0 {
		t.Errorf("Advance() = %v, want > 0", w)
	}

	if _, err := lib.Face("", 0); !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Errorf("Face(size 0) error = %v, want %s", err, errs.ErrCodeConfiguration)
	}
}

func TestLibraryConcurrent(t *testing.T) {
	lib := New(nil, 2)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := Builtin()[i%len(Builtin())]
			if _, err := lib.Face(name, 12); err != nil {
				t.Errorf("Face(%q) error = %v", name, err)
			}
		}(i)
	}
	wg.Wait()
	if got := lib.Len(); got > 2 {
		t.Errorf("Len() = %d, want at most 2", got)
	}
}
