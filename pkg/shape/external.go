package shape

import (
	"image"
	"image/color"

	"github.com/matzehuels/framestamp/pkg/geom"
)

// Rasterizer creates drawing layers and measures text. The render core
// asks for one canvas-sized layer per leaf shape and composites the
// results itself.
type Rasterizer interface {
	NewLayer(width, height int) Layer
	MeasureText(font string, size float64, text string) (TextExtent, error)
}

// TextExtent holds the measured size of one line of text.
type TextExtent struct {
	Width      float64
	Ascent     float64
	Descent    float64
	LineHeight float64
}

// TextRun is a single line of text positioned by its baseline origin.
type TextRun struct {
	Font   string
	Size   float64
	Text   string
	Origin geom.Point
	Color  color.Color
}

// Layer is a transparent RGBA drawing surface in canvas coordinates.
type Layer interface {
	FillRect(r geom.Rect, radius float64, c color.Color) error
	StrokeRect(r geom.Rect, radius float64, c color.Color, width float64) error
	FillEllipse(r geom.Rect, c color.Color) error
	StrokeEllipse(r geom.Rect, c color.Color, width float64) error
	FillPolygon(pts []geom.Point, c color.Color) error
	StrokePolyline(pts []geom.Point, c color.Color, width float64, closed, roundJoins bool) error
	DrawText(run TextRun) error
	DrawImage(img image.Image, dst geom.Rect, opacity float64) error
	Image() *image.RGBA
}

// AssetStamper is implemented by rasterizers and image loaders that read
// files. Stamp returns a fingerprint of the file ref names (path, size and
// modification time), or false when ref names no file.
type AssetStamper interface {
	Stamp(ref string) (string, bool)
}

// ImageLoader resolves an image reference (file path, base64 payload or
// data URI) to a decoded image.
type ImageLoader interface {
	Load(ref string) (image.Image, error)
}
