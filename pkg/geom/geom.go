// Package geom provides the value types used by the layout engine: points,
// axis-aligned rectangles, grid cells and 2D affine transforms.
//
// All coordinates are in pixels with the origin at the top-left corner of
// the canvas and y growing downwards. Angles are in degrees. [Rotate] uses
// the standard rotation formula, which on a y-down canvas turns a positive
// angle clockwise; shapes express their rotation counter-clockwise and pass
// the negated angle.
package geom

import (
	"fmt"
	"math"
)

// Point is a 2D coordinate.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Rotate returns p rotated by deg degrees around pivot.
func (p Point) Rotate(deg float64, pivot Point) Point {
	return Rotate(p, pivot, deg)
}

// String formats the point for debug output.
func (p Point) String() string { return fmt.Sprintf("(%g, %g)", p.X, p.Y) }

// Rotate rotates p around pivot by deg degrees.
func Rotate(p, pivot Point, deg float64) Point {
	if deg == 0 {
		return p
	}
	theta := deg * math.Pi / 180
	sin, cos := math.Sincos(theta)
	dx, dy := p.X-pivot.X, p.Y-pivot.Y
	return Point{
		X: pivot.X + dx*cos - dy*sin,
		Y: pivot.Y + dx*sin + dy*cos,
	}
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// R is shorthand for Rect{x, y, w, h}.
func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, Width: w, Height: h} }

// Left returns the x coordinate of the left edge.
func (r Rect) Left() float64 { return r.X }

// Top returns the y coordinate of the top edge.
func (r Rect) Top() float64 { return r.Y }

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the center point.
func (r Rect) Center() Point { return Point{r.X + r.Width/2, r.Y + r.Height/2} }

// Min returns the top-left corner.
func (r Rect) Min() Point { return Point{r.X, r.Y} }

// Max returns the bottom-right corner.
func (r Rect) Max() Point { return Point{r.Right(), r.Bottom()} }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Corners returns the four corners clockwise from the top-left.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{r.X, r.Y},
		{r.Right(), r.Y},
		{r.Right(), r.Bottom()},
		{r.X, r.Bottom()},
	}
}

// Rotate returns the four corners of r rotated by deg degrees around pivot.
func (r Rect) Rotate(deg float64, pivot Point) [4]Point {
	c := r.Corners()
	for i := range c {
		c[i] = Rotate(c[i], pivot, deg)
	}
	return c
}

// Inset shrinks r by the given edge amounts. Width and height never go
// below zero.
func (r Rect) Inset(top, right, bottom, left float64) Rect {
	out := Rect{
		X:      r.X + left,
		Y:      r.Y + top,
		Width:  r.Width - left - right,
		Height: r.Height - top - bottom,
	}
	out.Width = math.Max(out.Width, 0)
	out.Height = math.Max(out.Height, 0)
	return out
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{r.X + dx, r.Y + dy, r.Width, r.Height}
}

// Intersects reports whether r and o overlap. Touching edges count as an
// intersection.
func (r Rect) Intersects(o Rect) bool {
	return !(r.Right() < o.Left() || r.Left() > o.Right() ||
		r.Bottom() < o.Top() || r.Top() > o.Bottom())
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return r.Left() <= p.X && p.X <= r.Right() &&
		r.Top() <= p.Y && p.Y <= r.Bottom()
}

// MapPoint converts p from r's local frame to o's local frame.
func (r Rect) MapPoint(p Point, o Rect) Point {
	return Point{o.X + (p.X - r.X), o.Y + (p.Y - r.Y)}
}

// String formats the rectangle for debug output.
func (r Rect) String() string {
	return fmt.Sprintf("Rect(%g, %g, %g, %g)", r.X, r.Y, r.Width, r.Height)
}

// Bounds returns the smallest rectangle containing every point.
// It returns the zero Rect for an empty slice.
func Bounds(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{minX, minY, maxX - minX, maxY - minY}
}

// Cell is a rectangular region produced by grid partitioning.
type Cell struct {
	Rect
	Row, Column int
}
