package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/gogpu/gg"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/fonts"
	"github.com/matzehuels/framestamp/pkg/geom"
	"github.com/matzehuels/framestamp/pkg/shape"
)

type layer struct {
	dc    *gg.Context
	fonts *fonts.Library
}

func newLayer(w, h int, lib *fonts.Library) *layer {
	return &layer{dc: gg.NewContext(max(w, 1), max(h, 1)), fonts: lib}
}

func (l *layer) FillRect(r geom.Rect, radius float64, c color.Color) error {
	if r.Empty() {
		return nil
	}
	l.rect(r, radius)
	l.dc.SetColor(c)
	return l.fill()
}

// StrokeRect keeps the stroke inside r.
func (l *layer) StrokeRect(r geom.Rect, radius float64, c color.Color, width float64) error {
	if r.Empty() || width <= 0 {
		return nil
	}
	half := width / 2
	l.rect(r.Inset(half, half, half, half), math.Max(0, radius-half))
	return l.stroke(c, width, gg.LineJoinMiter, gg.LineCapButt)
}

func (l *layer) FillEllipse(r geom.Rect, c color.Color) error {
	if r.Empty() {
		return nil
	}
	center := r.Center()
	l.dc.DrawEllipse(center.X, center.Y, r.Width/2, r.Height/2)
	l.dc.SetColor(c)
	return l.fill()
}

func (l *layer) StrokeEllipse(r geom.Rect, c color.Color, width float64) error {
	if r.Empty() || width <= 0 {
		return nil
	}
	center := r.Center()
	rx, ry := math.Max(0, r.Width/2-width/2), math.Max(0, r.Height/2-width/2)
	l.dc.DrawEllipse(center.X, center.Y, rx, ry)
	return l.stroke(c, width, gg.LineJoinRound, gg.LineCapButt)
}

func (l *layer) FillPolygon(pts []geom.Point, c color.Color) error {
	if len(pts) < 3 {
		return nil
	}
	l.path(pts, true)
	l.dc.SetColor(c)
	return l.fill()
}

func (l *layer) StrokePolyline(pts []geom.Point, c color.Color, width float64, closed, roundJoins bool) error {
	if len(pts) < 2 || width <= 0 {
		return nil
	}
	l.path(pts, closed)
	join, lineCap := gg.LineJoinMiter, gg.LineCapButt
	if roundJoins {
		join, lineCap = gg.LineJoinRound, gg.LineCapRound
	}
	return l.stroke(c, width, join, lineCap)
}

func (l *layer) DrawText(run shape.TextRun) error {
	if run.Text == "" {
		return nil
	}
	face, err := l.fonts.Face(run.Font, run.Size)
	if err != nil {
		return err
	}
	l.dc.SetFont(face)
	l.dc.SetColor(run.Color)
	l.dc.DrawString(run.Text, run.Origin.X, run.Origin.Y)
	return nil
}

// DrawImage scales img into dst. gg treats a zero opacity as opaque, so
// fully transparent images are skipped here.
func (l *layer) DrawImage(img image.Image, dst geom.Rect, opacity float64) error {
	if img == nil || dst.Empty() || opacity <= 0 {
		return nil
	}
	l.dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:         dst.X,
		Y:         dst.Y,
		DstWidth:  dst.Width,
		DstHeight: dst.Height,
		Opacity:   math.Min(opacity, 1),
	})
	return nil
}

func (l *layer) Image() *image.RGBA {
	img := l.dc.Image()
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}

func (l *layer) rect(r geom.Rect, radius float64) {
	radius = math.Min(radius, math.Min(r.Width, r.Height)/2)
	if radius > 0 {
		l.dc.DrawRoundedRectangle(r.X, r.Y, r.Width, r.Height, radius)
		return
	}
	l.dc.DrawRectangle(r.X, r.Y, r.Width, r.Height)
}

func (l *layer) path(pts []geom.Point, closed bool) {
	l.dc.NewSubPath()
	l.dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		l.dc.LineTo(p.X, p.Y)
	}
	if closed {
		l.dc.ClosePath()
	}
}

func (l *layer) fill() error {
	if err := l.dc.Fill(); err != nil {
		return errs.Wrap(errs.ErrCodeRenderFailed, err, "fill")
	}
	return nil
}

func (l *layer) stroke(c color.Color, width float64, join gg.LineJoin, lineCap gg.LineCap) error {
	l.dc.SetColor(c)
	l.dc.SetLineWidth(width)
	l.dc.SetLineJoin(join)
	l.dc.SetLineCap(lineCap)
	if err := l.dc.Stroke(); err != nil {
		return errs.Wrap(errs.ErrCodeRenderFailed, err, "stroke")
	}
	return nil
}

var _ shape.Layer = (*layer)(nil)
