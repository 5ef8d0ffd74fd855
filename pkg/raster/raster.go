// Package raster draws shape layers with github.com/gogpu/gg.
//
// A [Renderer] implements [shape.Rasterizer]: each layer is a transparent
// gg context the size of the canvas, and text is measured with the faces
// of a shared [fonts.Library]. [ImageLoader] implements [shape.ImageLoader]
// for file paths, base64 payloads and data URIs.
package raster

import (
	"github.com/matzehuels/framestamp/pkg/fonts"
	"github.com/matzehuels/framestamp/pkg/shape"
)

// Renderer creates gg-backed layers. It is safe for concurrent use.
type Renderer struct {
	fonts *fonts.Library
}

// New creates a renderer resolving font names through lib. A nil lib uses
// a library with only the embedded fonts.
func New(lib *fonts.Library) *Renderer {
	if lib == nil {
		lib = fonts.New(nil, 0)
	}
	return &Renderer{fonts: lib}
}

// NewLayer returns a transparent layer of the given size.
func (r *Renderer) NewLayer(width, height int) shape.Layer {
	return newLayer(width, height, r.fonts)
}

// Stamp fingerprints the font file a font name resolves to.
func (r *Renderer) Stamp(font string) (string, bool) {
	return r.fonts.Stamp(font)
}

// MeasureText returns the advance and vertical metrics of one line of text.
func (r *Renderer) MeasureText(font string, size float64, s string) (shape.TextExtent, error) {
	face, err := r.fonts.Face(font, size)
	if err != nil {
		return shape.TextExtent{}, err
	}
	m := face.Metrics()
	return shape.TextExtent{
		Width:      face.Advance(s),
		Ascent:     m.Ascent,
		Descent:    m.Descent,
		LineHeight: m.LineHeight(),
	}, nil
}

var _ shape.Rasterizer = (*Renderer)(nil)
var _ shape.AssetStamper = (*Renderer)(nil)
