// Package imageio reads and writes frames.
//
// Decoding goes through github.com/disintegration/imaging, which honours
// EXIF orientation and understands PNG, JPEG, GIF, TIFF and BMP. Output is
// limited to PNG and JPEG. The package also hashes frames for cache keys
// and draws the checkerboard test card used when no input frame is given.
package imageio

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// Format is an output encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 95

// ParseFormat normalizes a user supplied format name.
func ParseFormat(s string) (Format, error) {
	if err := errs.ValidateImageFormat(s); err != nil {
		return "", err
	}
	if f := Format(strings.ToLower(s)); f == PNG {
		return PNG, nil
	}
	return JPEG, nil
}

// FormatFromPath picks the output format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", errs.New(errs.ErrCodeInvalidFormat, "%s: missing file extension", path)
	}
	return ParseFormat(ext)
}

// Open decodes the image stored at path.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, errs.Wrap(errs.GetCode(err), err, "decode %s", path)
	}
	return img, nil
}

// Decode reads one image from r.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode image")
	}
	return img, nil
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(data []byte) (image.Image, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes img to w. quality only applies to JPEG; zero means
// DefaultQuality.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	if quality <= 0 {
		quality = DefaultQuality
	}
	var f imaging.Format
	switch format {
	case PNG:
		f = imaging.PNG
	case JPEG:
		f = imaging.JPEG
	default:
		return errs.New(errs.ErrCodeInvalidFormat, "unsupported output format %q", format)
	}
	if err := imaging.Encode(w, img, f, imaging.JPEGQuality(quality)); err != nil {
		return errs.Wrap(errs.ErrCodeRenderFailed, err, "encode %s", format)
	}
	return nil
}

// Save encodes img to path, creating parent directories. The format comes
// from the extension.
func Save(path string, img image.Image, quality int) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidPath, err, "create %s", dir)
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return err
	}
	// Write to a sibling temp file so readers never see a partial frame.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, err, "write %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}

// Hash returns a hex SHA-256 digest of img's size and pixels. Images with
// equal pixels hash equally regardless of their concrete type or origin.
func Hash(img image.Image) string {
	n := imaging.Clone(img)
	h := sha256.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[:4], uint32(n.Rect.Dx()))
	binary.BigEndian.PutUint32(dims[4:], uint32(n.Rect.Dy()))
	h.Write(dims[:])
	h.Write(n.Pix)
	return hex.EncodeToString(h.Sum(nil))
}

// HashBytes returns a hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Checker tiles alternating gray squares of side cell over a w×h image.
func Checker(w, h, cell int) *image.NRGBA {
	if cell <= 0 {
		cell = 32
	}
	light := color.NRGBA{R: 0x9a, G: 0x9a, B: 0x9a, A: 0xff}
	dark := color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}

	img := imaging.New(w, h, light)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 1 {
				img.SetNRGBA(x, y, dark)
			}
		}
	}
	return img
}
