package shape

import (
	"github.com/matzehuels/framestamp/pkg/geom"
)

// Line is a polyline through "points", given relative to the shape's draw
// origin. The shape's size is the extent of its points plus padding.
//
// Parameters: points, color (white), thickness (2), joints (true rounds the
// joins and caps).
type Line struct {
	*Node
}

// NewLine constructs a line shape.
func NewLine(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	s := &Line{}
	n, err := NewNode(s, ctx, "line", data, parent)
	if err != nil {
		return nil, err
	}
	s.Node = n
	return s, nil
}

func (s *Line) ResolveWidth() (float64, error)  { return pointsExtent(s.Node, 0) }
func (s *Line) ResolveHeight() (float64, error) { return pointsExtent(s.Node, 1) }

func (s *Line) Draw(l Layer) error {
	pts, err := absolutePoints(s.Node)
	if err != nil || len(pts) < 2 {
		return err
	}
	c, err := s.Color("color", Default("white"))
	if err != nil {
		return err
	}
	thickness, err := s.Number("thickness", Default(2.0))
	if err != nil {
		return err
	}
	joints, err := s.Bool("joints", Default(true))
	if err != nil {
		return err
	}
	return l.StrokePolyline(pts, c, thickness, false, joints)
}

// Polygon is a closed, filled polygon through "points", relative to the
// draw origin. Without a color it is only outlined.
type Polygon struct {
	*Node
}

// NewPolygon constructs a polygon shape.
func NewPolygon(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	s := &Polygon{}
	n, err := NewNode(s, ctx, "polygon", data, parent)
	if err != nil {
		return nil, err
	}
	s.Node = n
	return s, nil
}

func (s *Polygon) ResolveWidth() (float64, error)  { return pointsExtent(s.Node, 0) }
func (s *Polygon) ResolveHeight() (float64, error) { return pointsExtent(s.Node, 1) }

func (s *Polygon) Draw(l Layer) error {
	pts, err := absolutePoints(s.Node)
	if err != nil || len(pts) < 3 {
		return err
	}
	fill, err := s.Color("color", Default(nil))
	if err != nil {
		return err
	}
	if fill != nil {
		if err := l.FillPolygon(pts, fill); err != nil {
			return err
		}
	}
	return drawBorder(s.Node, l, func(c colorStroke) error {
		return l.StrokePolyline(pts, c.color, c.width, true, false)
	})
}

// pointsExtent is the largest coordinate on axis plus padding, unless the
// size is given explicitly.
func pointsExtent(n *Node, axis int) (float64, error) {
	if v, ok, err := n.ExplicitSize(axis); ok || err != nil {
		return v, err
	}
	pts, err := n.Points("points", Default([]any{}))
	if err != nil {
		return 0, err
	}
	var extent float64
	for _, p := range pts {
		if axis == 0 {
			extent = max(extent, p.X)
		} else {
			extent = max(extent, p.Y)
		}
	}
	pad, err := n.Padding()
	if err != nil {
		return 0, err
	}
	if axis == 0 {
		return extent + pad.Left + pad.Right, nil
	}
	return extent + pad.Top + pad.Bottom, nil
}

func absolutePoints(n *Node) ([]geom.Point, error) {
	pts, err := n.Points("points", Default([]any{}))
	if err != nil {
		return nil, err
	}
	box, err := n.DrawRect()
	if err != nil {
		return nil, err
	}
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		out[i] = box.Min().Add(p)
	}
	return out, nil
}
