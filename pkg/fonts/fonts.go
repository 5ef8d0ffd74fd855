// Package fonts resolves font names used by label shapes to gogpu/gg font
// sources.
//
// The Go font family is embedded in the binary through
// golang.org/x/image/font/gofont, so rendering works without any system
// fonts installed. Other fonts are found by file path or by name in a list
// of font directories. Parsed sources are kept in a bounded LRU shared by
// every render.
package fonts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// Default is the font used when a label does not name one.
const Default = "regular"

// DefaultCacheSize bounds the number of parsed font sources kept in memory.
const DefaultCacheSize = 32

var builtin = map[string][]byte{
	"regular":     goregular.TTF,
	"bold":        gobold.TTF,
	"italic":      goitalic.TTF,
	"bold-italic": gobolditalic.TTF,
	"mono":        gomono.TTF,
}

var aliases = map[string]string{
	"":           Default,
	"go":         "regular",
	"sans":       "regular",
	"sans-serif": "regular",
	"monospace":  "mono",
	"bolditalic": "bold-italic",
}

var extensions = []string{".ttf", ".otf", ".ttc"}

// Builtin returns the names of the embedded fonts, sorted.
func Builtin() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Library loads and caches font sources. It is safe for concurrent use.
type Library struct {
	dirs     []string
	sources  *lru.Cache
	confined bool

	// mu serializes loads so a font is parsed once even under contention.
	mu sync.Mutex
}

// New creates a library searching dirs for named fonts. A size of zero or
// less uses DefaultCacheSize.
func New(dirs []string, size int) *Library {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Library{dirs: dirs, sources: cache}
}

// NewConfined is New for untrusted templates: font names must be local
// paths (no absolute paths, no ".." segments) and are only looked up
// inside dirs, without following symlinks out of them.
func NewConfined(dirs []string, size int) *Library {
	l := New(dirs, size)
	l.confined = true
	return l
}

// Source returns the parsed font for name. Names are matched in order
// against the embedded fonts, existing file paths, and files named
// name.{ttf,otf,ttc} inside the font directories.
func (l *Library) Source(name string) (*text.FontSource, error) {
	key := canonical(name)
	if v, ok := l.sources.Get(key); ok {
		return v.(*text.FontSource), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.sources.Get(key); ok {
		return v.(*text.FontSource), nil
	}

	src, err := l.load(key)
	if err != nil {
		return nil, err
	}
	l.sources.Add(key, src)
	return src, nil
}

// Face returns a face of the named font at size pixels.
func (l *Library) Face(name string, size float64) (text.Face, error) {
	if size <= 0 {
		return nil, errs.New(errs.ErrCodeConfiguration, "font size must be positive, got %g", size)
	}
	src, err := l.Source(name)
	if err != nil {
		return nil, err
	}
	return src.Face(size), nil
}

// Len reports the number of cached sources.
func (l *Library) Len() int {
	return l.sources.Len()
}

func (l *Library) load(name string) (*text.FontSource, error) {
	if data, ok := builtin[name]; ok {
		src, err := text.NewFontSource(data)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInternal, err, "parse embedded font %s", name)
		}
		return src, nil
	}

	if l.confined {
		return l.loadConfined(name)
	}
	path, ok := l.find(name)
	if !ok {
		return nil, errs.New(errs.ErrCodeConfiguration, "font %q not found (embedded: %s)", name, strings.Join(Builtin(), ", "))
	}
	src, err := text.NewFontSourceFromFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeConfiguration, err, "load font %s", path)
	}
	return src, nil
}

func (l *Library) loadConfined(name string) (*text.FontSource, error) {
	if !filepath.IsLocal(name) {
		return nil, errs.New(errs.ErrCodeInvalidPath, "font %q must be a name or a relative path", name)
	}
	for _, dir := range l.dirs {
		for _, rel := range candidates(name) {
			data, err := readInRoot(dir, rel)
			if err != nil {
				continue
			}
			src, err := text.NewFontSource(data)
			if err != nil {
				return nil, errs.Wrap(errs.ErrCodeConfiguration, err, "load font %s", filepath.Join(dir, rel))
			}
			return src, nil
		}
	}
	return nil, errs.New(errs.ErrCodeConfiguration, "font %q not found (embedded: %s)", name, strings.Join(Builtin(), ", "))
}

// Stamp fingerprints the font file name resolves to by path, size and
// modification time. Embedded fonts and unknown names report false.
func (l *Library) Stamp(name string) (string, bool) {
	key := canonical(name)
	if _, ok := builtin[key]; ok || key == "" {
		return "", false
	}
	if !l.confined {
		path, ok := l.find(key)
		if !ok {
			return "", false
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", false
		}
		return stamp(path, info), true
	}
	if !filepath.IsLocal(key) {
		return "", false
	}
	for _, dir := range l.dirs {
		root, err := os.OpenRoot(dir)
		if err != nil {
			continue
		}
		for _, rel := range candidates(key) {
			if info, err := root.Stat(rel); err == nil && !info.IsDir() {
				root.Close()
				return stamp(filepath.Join(dir, rel), info), true
			}
		}
		root.Close()
	}
	return "", false
}

func stamp(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())
}

// candidates lists the file names tried for name inside a font directory.
func candidates(name string) []string {
	out := make([]string, 0, len(extensions)+1)
	for _, ext := range extensions {
		out = append(out, name+ext)
	}
	if filepath.Ext(name) != "" {
		out = append(out, name)
	}
	return out
}

// readInRoot reads the regular file rel inside dir through an os.Root, so
// neither ".." nor symlinks can leave dir.
func readInRoot(dir, rel string) ([]byte, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()
	f, err := root.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errs.New(errs.ErrCodeInvalidPath, "%s is a directory", rel)
	}
	return io.ReadAll(f)
}

func (l *Library) find(name string) (string, bool) {
	if isFile(name) {
		return name, true
	}
	for _, dir := range l.dirs {
		for _, ext := range extensions {
			path := filepath.Join(dir, name+ext)
			if isFile(path) {
				return path, true
			}
		}
		if filepath.Ext(name) != "" {
			if path := filepath.Join(dir, name); isFile(path) {
				return path, true
			}
		}
	}
	return "", false
}

func canonical(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		return a
	}
	if _, ok := builtin[n]; ok {
		return n
	}
	return strings.TrimSpace(name)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
