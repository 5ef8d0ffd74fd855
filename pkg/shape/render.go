package shape

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/geom"
)

var (
	debugShapeColor  = color.NRGBA{R: 255, G: 64, B: 64, A: 255}
	debugParentColor = color.NRGBA{R: 64, G: 128, B: 255, A: 200}
)

// Render produces the shape's canvas-sized layer. Disabled shapes yield a
// transparent layer. Leaves are drawn unrotated and then transformed by
// their accumulated rotation; composites delegate to RenderLayer.
func (n *Node) Render() (*image.RGBA, error) {
	w, h := n.ctx.Size()
	enabled, err := n.Enabled()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return Blank(w, h), nil
	}

	var img *image.RGBA
	if r, ok := n.self.(Renderer); ok {
		if img, err = r.RenderLayer(); err != nil {
			return nil, err
		}
	} else {
		if n.ctx.Raster == nil {
			return nil, errs.New(errs.ErrCodeInternal, "%s: no rasterizer configured", n)
		}
		layer := n.ctx.Raster.NewLayer(w, h)
		if err := n.self.Draw(layer); err != nil {
			return nil, wrap(err, "draw %s", n)
		}
		img = layer.Image()
		m, err := n.Transform()
		if err != nil {
			return nil, err
		}
		if !m.IsIdentity() {
			img = TransformLayer(img, m)
		}
	}

	if n.ctx.debug {
		if err := n.drawDebug(img); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// Blank returns a transparent layer.
func Blank(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// TransformLayer resamples src through m into a new layer of the same size.
func TransformLayer(src *image.RGBA, m geom.Affine) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.BiLinear.Transform(dst, f64.Aff3(m.Array()), src, src.Bounds(), draw.Over, nil)
	return dst
}

// Composite draws src over dst. Both layers share the canvas origin.
func Composite(dst, src *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Over)
}

// drawDebug outlines the rotated outer box in red and the parent's draw
// area in blue.
func (n *Node) drawDebug(img *image.RGBA) error {
	if n.ctx.Raster == nil {
		return nil
	}
	w, h := n.ctx.Size()
	layer := n.ctx.Raster.NewLayer(w, h)

	if p := n.Parent(); p != nil {
		pr, err := p.Base().DrawRect()
		if err != nil {
			return err
		}
		pm, err := p.Base().Transform()
		if err != nil {
			return err
		}
		if err := layer.StrokePolyline(transformed(pr, pm), debugParentColor, 1, true, false); err != nil {
			return err
		}
	}
	corners, err := n.Corners()
	if err != nil {
		return err
	}
	if err := layer.StrokePolyline(corners[:], debugShapeColor, 1, true, false); err != nil {
		return err
	}
	Composite(img, layer.Image())
	return nil
}

func transformed(r geom.Rect, m geom.Affine) []geom.Point {
	c := r.Corners()
	out := make([]geom.Point, len(c))
	for i, p := range c {
		out[i] = m.Apply(p)
	}
	return out
}
