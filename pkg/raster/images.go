package raster

import (
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/imageio"
	"github.com/matzehuels/framestamp/pkg/shape"
)

// DefaultImageCacheSize bounds the number of decoded images kept in memory.
const DefaultImageCacheSize = 64

// inlineKeyLimit is the longest reference used verbatim as a cache key.
const inlineKeyLimit = 256

// ImageLoader decodes image references. A reference is a data URI, a
// file path (relative paths are resolved against the loader's directory),
// or a bare base64 payload. Decoded images are cached; file entries are
// invalidated when the file's modification time changes.
type ImageLoader struct {
	dir      string
	confined bool
	cache    *lru.Cache
	mu       sync.Mutex
}

type cachedImage struct {
	img   image.Image
	mtime int64
}

// NewImageLoader creates a loader resolving relative paths against dir.
func NewImageLoader(dir string, size int) *ImageLoader {
	if size <= 0 {
		size = DefaultImageCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &ImageLoader{dir: dir, cache: cache}
}

// NewConfinedImageLoader creates a loader for untrusted templates. File
// references must be local relative paths and are opened through an
// os.Root on dir, so absolute paths, ".." segments and symlinks leaving
// dir are rejected. With an empty dir no file reference is accepted.
func NewConfinedImageLoader(dir string, size int) *ImageLoader {
	l := NewImageLoader(dir, size)
	l.confined = true
	return l
}

// Load implements shape.ImageLoader.
func (l *ImageLoader) Load(ref string) (image.Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errs.New(errs.ErrCodeInvalidInput, "empty image reference")
	}
	if strings.HasPrefix(ref, "data:") {
		return l.inline(ref, decodeDataURI)
	}
	if path, info, ok := l.stat(ref); ok {
		return l.file(path, info.ModTime().UnixNano())
	}
	if !looksLikePath(ref) {
		if data, ok := decodeBase64(ref); ok {
			return l.inline(ref, func(string) ([]byte, error) { return data, nil })
		}
	}
	if l.confined && !filepath.IsLocal(ref) {
		return nil, errs.New(errs.ErrCodeInvalidPath, "image %q must be a path relative to the template directory", abbrev(ref))
	}
	return nil, errs.New(errs.ErrCodeFileNotFound, "image %q is neither a file nor base64 data", abbrev(ref))
}

// Stamp fingerprints the file ref resolves to by path, size and
// modification time. Inline payloads and missing files report false.
func (l *ImageLoader) Stamp(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return "", false
	}
	path, info, ok := l.stat(ref)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano()), true
}

// Len reports the number of cached images.
func (l *ImageLoader) Len() int {
	return l.cache.Len()
}

func (l *ImageLoader) file(path string, mtime int64) (image.Image, error) {
	if v, ok := l.cache.Get(path); ok {
		if c := v.(cachedImage); c.mtime == mtime {
			return c.img, nil
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.cache.Get(path); ok {
		if c := v.(cachedImage); c.mtime == mtime {
			return c.img, nil
		}
	}
	img, err := l.open(path)
	if err != nil {
		return nil, err
	}
	l.cache.Add(path, cachedImage{img: img, mtime: mtime})
	return img, nil
}

func (l *ImageLoader) inline(ref string, decode func(string) ([]byte, error)) (image.Image, error) {
	key := ref
	if len(key) > inlineKeyLimit {
		key = "sha256:" + imageio.HashBytes([]byte(ref))
	}
	if v, ok := l.cache.Get(key); ok {
		return v.(cachedImage).img, nil
	}
	data, err := decode(ref)
	if err != nil {
		return nil, err
	}
	img, err := imageio.DecodeBytes(data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode inline image %s", abbrev(ref))
	}
	l.cache.Add(key, cachedImage{img: img})
	return img, nil
}

func (l *ImageLoader) stat(ref string) (string, os.FileInfo, bool) {
	if l.confined {
		return l.statInRoot(ref)
	}
	path := ref
	if !filepath.IsAbs(path) && l.dir != "" {
		path = filepath.Join(l.dir, path)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", nil, false
	}
	return path, info, true
}

func (l *ImageLoader) statInRoot(ref string) (string, os.FileInfo, bool) {
	if l.dir == "" || !filepath.IsLocal(ref) {
		return "", nil, false
	}
	root, err := os.OpenRoot(l.dir)
	if err != nil {
		return "", nil, false
	}
	defer root.Close()
	info, err := root.Stat(ref)
	if err != nil || info.IsDir() {
		return "", nil, false
	}
	return filepath.Join(l.dir, ref), info, true
}

func (l *ImageLoader) open(path string) (image.Image, error) {
	if !l.confined {
		return imageio.Open(path)
	}
	rel, err := filepath.Rel(l.dir, path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "image %s", path)
	}
	root, err := os.OpenRoot(l.dir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "open %s", l.dir)
	}
	defer root.Close()
	f, err := root.Open(rel)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "open image %s", rel)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "read image %s", rel)
	}
	img, err := imageio.DecodeBytes(data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode image %s", rel)
	}
	return img, nil
}

// decodeDataURI handles data:[<mediatype>][;base64],<data>.
func decodeDataURI(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, errs.New(errs.ErrCodeInvalidInput, "malformed data URI %s", abbrev(ref))
	}
	if strings.HasSuffix(meta, ";base64") {
		data, ok := decodeBase64(payload)
		if !ok {
			return nil, errs.New(errs.ErrCodeInvalidInput, "data URI payload is not valid base64")
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "data URI payload")
	}
	return []byte(s), nil
}

func decodeBase64(s string) ([]byte, bool) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil && len(data) > 0 {
			return data, true
		}
	}
	return nil, false
}

// looksLikePath reports whether a missing reference should be reported as
// a missing file rather than decoded. No image encodes to fewer than 64
// base64 characters.
func looksLikePath(ref string) bool {
	if len(ref) < 64 {
		return true
	}
	ext := filepath.Ext(ref)
	return len(ext) > 1 && len(ext) <= 5
}

func abbrev(s string) string {
	if len(s) <= 48 {
		return s
	}
	return s[:45] + "..."
}

var _ shape.ImageLoader = (*ImageLoader)(nil)
var _ shape.AssetStamper = (*ImageLoader)(nil)
