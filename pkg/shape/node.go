package shape

import (
	"maps"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/geom"
)

// Node is the state shared by every shape kind: the descriptor, the
// structural parent, local variables and the memoization cache. Shape
// kinds embed *Node and add drawing on top of it.
type Node struct {
	self   Shape
	ctx    *Context
	kind   string
	id     string
	data   map[string]any
	parent Shape
	isRoot bool
	local  map[string]any

	cache     Cache
	resolving map[string]bool

	hasDefaultSize bool
	defaultSize    [2]float64
}

// NewNode creates the node of shape self from its descriptor. parent is the
// structural parent; when nil, the descriptor's "parent" key may name a
// shape already in scope, otherwise the shape is placed on the canvas.
func NewNode(self Shape, ctx *Context, kind string, data map[string]any, parent Shape) (*Node, error) {
	n := &Node{
		self:      self,
		ctx:       ctx,
		kind:      kind,
		data:      maps.Clone(data),
		parent:    parent,
		cache:     newCache(ctx.noCache),
		resolving: make(map[string]bool),
	}
	if n.data == nil {
		n.data = map[string]any{}
	}

	if raw, ok := n.data["id"]; ok {
		id, ok := raw.(string)
		if !ok {
			return nil, errs.New(errs.ErrCodePreset, "%s: id must be a string, got %T", kind, raw)
		}
		if err := errs.ValidateShapeID(id); err != nil {
			return nil, err
		}
		n.id = id
	}

	if parent == nil {
		p, err := n.descriptorParent()
		if err != nil {
			return nil, err
		}
		n.parent = p
	}
	return n, nil
}

func (n *Node) descriptorParent() (Shape, error) {
	raw, ok := n.data["parent"]
	if !ok || raw == nil {
		return nil, nil
	}
	name, ok := raw.(string)
	if !ok {
		return nil, errs.New(errs.ErrCodePreset, "%s: parent must be a shape id, got %T", n, raw)
	}
	switch name {
	case "", "parent", "self":
		return nil, nil
	case n.id:
		return nil, errs.New(errs.ErrCodeRecursion, "%s: shape cannot be its own parent", n)
	}
	p, ok := n.ctx.Lookup(name)
	if !ok {
		return nil, errs.New(errs.ErrCodeUnresolvedReference, "%s: unknown parent %q", n, name)
	}
	return p, nil
}

// Base returns n itself, so *Node satisfies the Base half of [Shape].
func (n *Node) Base() *Node { return n }

// Shape returns the shape n belongs to.
func (n *Node) Shape() Shape { return n.self }

// Context returns the render context.
func (n *Node) Context() *Context { return n.ctx }

// ID returns the shape id, or "" for anonymous shapes.
func (n *Node) ID() string { return n.id }

// Kind returns the descriptor type tag.
func (n *Node) Kind() string { return n.kind }

// String describes the shape for messages, e.g. "rect#box".
func (n *Node) String() string {
	if n.id != "" {
		return n.kind + "#" + n.id
	}
	return n.kind
}

// Data returns the shape's descriptor. Callers must not modify it; use
// SetData.
func (n *Node) Data() map[string]any { return n.data }

// SetData replaces one descriptor value and invalidates the cache.
func (n *Node) SetData(key string, v any) {
	n.data[key] = v
	n.Invalidate()
}

// SetDefaultSize sets the size used when the descriptor gives none.
// Without it a shape fills its parent's draw area.
func (n *Node) SetDefaultSize(w, h float64) {
	n.hasDefaultSize = true
	n.defaultSize = [2]float64{w, h}
}

// Parent returns the structural parent. Top-level shapes return the canvas
// root; the root itself returns nil.
func (n *Node) Parent() Shape {
	if n.parent != nil {
		return n.parent
	}
	if n.isRoot {
		return nil
	}
	return n.ctx.Root()
}

// SetParent rebinds the shape to a new parent and drops cached values.
func (n *Node) SetParent(p Shape) {
	n.parent = p
	n.Invalidate()
}

// SetLocal replaces the node-local variables, such as a grid cell's index,
// and drops cached values.
func (n *Node) SetLocal(vars map[string]any) {
	n.local = vars
	n.Invalidate()
}

// Local looks name up in the local variables of n and its ancestors.
func (n *Node) Local(name string) (any, bool) {
	for s := n.self; s != nil; s = s.Base().Parent() {
		if v, ok := s.Base().local[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Invalidate drops every memoized value of n and of the shapes it owns.
func (n *Node) Invalidate() {
	n.cache.Invalidate()
	if p, ok := n.self.(interface{ invalidateChildren() }); ok {
		p.invalidateChildren()
	}
}

// Cache exposes the memoization cache.
func (n *Node) Cache() *Cache { return &n.cache }

// memo returns the cached value for key or computes it, failing with a
// RecursionError when key is already being computed.
func (n *Node) memo(key string, fn func() (any, error)) (any, error) {
	if v, ok := n.cache.Get(key); ok {
		return v, nil
	}
	if n.resolving[key] {
		return nil, errs.New(errs.ErrCodeRecursion, "%s: circular reference while resolving %q", n, key)
	}
	n.resolving[key] = true
	defer delete(n.resolving, key)

	v, err := fn()
	if err != nil {
		return nil, err
	}
	n.cache.Set(key, v)
	return v, nil
}

func (n *Node) memoFloat(key string, fn func() (float64, error)) (float64, error) {
	v, err := n.memo(key, func() (any, error) { return fn() })
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func wrap(err error, format string, args ...any) error {
	code := errs.GetCode(err)
	if code == "" {
		code = errs.ErrCodeInternal
	}
	return errs.Wrap(code, err, format, args...)
}

// =============================================================================
// Geometry
// =============================================================================

// Padding holds the inner margins of a shape.
type Padding struct {
	Top, Right, Bottom, Left float64
}

// Padding resolves "padding" (a number, or a [top, right, bottom, left]
// list) and the padding_top/right/bottom/left overrides.
func (n *Node) Padding() (Padding, error) {
	if n.isRoot {
		return Padding{}, nil
	}
	v, err := n.memo("@padding", func() (any, error) {
		var p Padding
		if _, ok := n.Raw("padding"); ok {
			raw, err := n.Param("padding")
			if err != nil {
				return nil, err
			}
			if p, err = toPadding(raw); err != nil {
				return nil, wrap(err, "%s: padding", n)
			}
		}
		for _, side := range []struct {
			key string
			dst *float64
		}{
			{"padding_top", &p.Top},
			{"padding_right", &p.Right},
			{"padding_bottom", &p.Bottom},
			{"padding_left", &p.Left},
		} {
			if _, ok := n.Raw(side.key); !ok {
				continue
			}
			f, err := n.Number(side.key)
			if err != nil {
				return nil, err
			}
			*side.dst = f
		}
		return p, nil
	})
	if err != nil {
		return Padding{}, err
	}
	return v.(Padding), nil
}

func toPadding(v any) (Padding, error) {
	if f, ok := v.(float64); ok {
		return Padding{f, f, f, f}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return Padding{}, errs.New(errs.ErrCodeInvalidParameterType, "want a number or a list, got %v", v)
	}
	nums := make([]float64, len(list))
	for i, e := range list {
		f, ok := e.(float64)
		if !ok {
			return Padding{}, errs.New(errs.ErrCodeInvalidParameterType, "element %d is %v, want a number", i, e)
		}
		nums[i] = f
	}
	switch len(nums) {
	case 1:
		return Padding{nums[0], nums[0], nums[0], nums[0]}, nil
	case 2:
		return Padding{nums[0], nums[1], nums[0], nums[1]}, nil
	case 4:
		return Padding{nums[0], nums[1], nums[2], nums[3]}, nil
	}
	return Padding{}, errs.New(errs.ErrCodeInvalidParameterType, "want 1, 2 or 4 values, got %d", len(nums))
}

// Width resolves the shape width: a WidthResolver hook, the "width" (or
// "w") parameter, the kind's default size, or the parent's draw width.
func (n *Node) Width() (float64, error) {
	if n.isRoot {
		return float64(n.ctx.width), nil
	}
	return n.memoFloat("@width", func() (float64, error) {
		if c, ok := n.self.(cellLayout); ok {
			r, err := c.cellRect()
			return r.Width, err
		}
		if r, ok := n.self.(WidthResolver); ok {
			return r.ResolveWidth()
		}
		return n.size(0)
	})
}

// Height is the vertical counterpart of Width.
func (n *Node) Height() (float64, error) {
	if n.isRoot {
		return float64(n.ctx.height), nil
	}
	return n.memoFloat("@height", func() (float64, error) {
		if c, ok := n.self.(cellLayout); ok {
			r, err := c.cellRect()
			return r.Height, err
		}
		if r, ok := n.self.(HeightResolver); ok {
			return r.ResolveHeight()
		}
		return n.size(1)
	})
}

var sizeKeys = [2][2]string{{"width", "w"}, {"height", "h"}}

// ExplicitSize returns the width (axis 0) or height (axis 1) parameter if
// the descriptor or the template defaults provide one.
func (n *Node) ExplicitSize(axis int) (float64, bool, error) {
	key, alias := sizeKeys[axis][0], sizeKeys[axis][1]
	if _, ok := n.Raw(key, alias); !ok {
		return 0, false, nil
	}
	f, err := n.Number(key, Aliases(alias))
	return f, true, err
}

func (n *Node) size(axis int) (float64, error) {
	if f, ok, err := n.ExplicitSize(axis); ok || err != nil {
		return f, err
	}
	if n.hasDefaultSize {
		return n.defaultSize[axis], nil
	}
	p := n.Parent().Base()
	if axis == 0 {
		return p.WidthDraw()
	}
	return p.HeightDraw()
}

// X resolves the left edge in canvas coordinates. The "x" offset is
// applied relative to the parent's draw area according to "align_h"
// (left, center or right).
func (n *Node) X() (float64, error) {
	if n.isRoot {
		return 0, nil
	}
	return n.memoFloat("@x", func() (float64, error) {
		return n.align(0)
	})
}

// Y resolves the top edge; "align_v" takes top, center or bottom.
func (n *Node) Y() (float64, error) {
	if n.isRoot {
		return 0, nil
	}
	return n.memoFloat("@y", func() (float64, error) {
		return n.align(1)
	})
}

func (n *Node) align(axis int) (float64, error) {
	offKey, alignKey, start, end := "x", "align_h", "left", "right"
	if axis == 1 {
		offKey, alignKey, start, end = "y", "align_v", "top", "bottom"
	}
	p := n.Parent().Base()
	origin, extent, err := p.drawSpan(axis)
	if err != nil {
		return 0, err
	}
	if c, ok := n.self.(cellLayout); ok {
		r, err := c.cellRect()
		if axis == 0 {
			return origin + r.X, err
		}
		return origin + r.Y, err
	}
	off, err := n.Number(offKey, Default(0.0))
	if err != nil {
		return 0, err
	}
	mode, err := n.Str(alignKey, Default(start))
	if err != nil {
		return 0, err
	}
	if mode == start {
		return origin + off, nil
	}

	var size float64
	if axis == 0 {
		size, err = n.Width()
	} else {
		size, err = n.Height()
	}
	if err != nil {
		return 0, err
	}
	switch mode {
	case "center", "centre", "middle":
		return origin + off + extent/2 - size/2, nil
	case end:
		return origin + extent - size - off, nil
	}
	return 0, errs.New(errs.ErrCodeInvalidParameterType, "%s: %s must be %s, center or %s, got %q", n, alignKey, start, end, mode)
}

func (n *Node) drawSpan(axis int) (float64, float64, error) {
	if axis == 0 {
		x, err := n.XDraw()
		if err != nil {
			return 0, 0, err
		}
		w, err := n.WidthDraw()
		return x, w, err
	}
	y, err := n.YDraw()
	if err != nil {
		return 0, 0, err
	}
	h, err := n.HeightDraw()
	return y, h, err
}

// XDraw is X plus the left padding.
func (n *Node) XDraw() (float64, error) {
	x, err := n.X()
	if err != nil {
		return 0, err
	}
	p, err := n.Padding()
	return x + p.Left, err
}

// YDraw is Y plus the top padding.
func (n *Node) YDraw() (float64, error) {
	y, err := n.Y()
	if err != nil {
		return 0, err
	}
	p, err := n.Padding()
	return y + p.Top, err
}

// WidthDraw is Width minus horizontal padding, never negative.
func (n *Node) WidthDraw() (float64, error) {
	w, err := n.Width()
	if err != nil {
		return 0, err
	}
	p, err := n.Padding()
	return max(w-p.Left-p.Right, 0), err
}

// HeightDraw is Height minus vertical padding, never negative.
func (n *Node) HeightDraw() (float64, error) {
	h, err := n.Height()
	if err != nil {
		return 0, err
	}
	p, err := n.Padding()
	return max(h-p.Top-p.Bottom, 0), err
}

// Rect returns the outer box in canvas coordinates, before rotation.
func (n *Node) Rect() (geom.Rect, error) {
	var r geom.Rect
	var err error
	if r.X, err = n.X(); err != nil {
		return r, err
	}
	if r.Y, err = n.Y(); err != nil {
		return r, err
	}
	if r.Width, err = n.Width(); err != nil {
		return r, err
	}
	r.Height, err = n.Height()
	return r, err
}

// DrawRect returns the padded inner box.
func (n *Node) DrawRect() (geom.Rect, error) {
	r, err := n.Rect()
	if err != nil {
		return r, err
	}
	p, err := n.Padding()
	if err != nil {
		return r, err
	}
	return r.Inset(p.Top, p.Right, p.Bottom, p.Left), nil
}

// Rotate returns the shape's own rotation in degrees, counter-clockwise on
// screen, from "rotate" (alias "rotation").
func (n *Node) Rotate() (float64, error) {
	if n.isRoot {
		return 0, nil
	}
	return n.memoFloat("@rotate", func() (float64, error) {
		if r, ok := n.self.(RotateResolver); ok {
			return r.ResolveRotate()
		}
		return n.Number("rotate", Aliases("rotation"), Default(0.0))
	})
}

// Pivot returns the rotation pivot in canvas coordinates. The
// "rotation_pivot" parameter is relative to the shape's top-left corner;
// the default is the center of the box.
func (n *Node) Pivot() (geom.Point, error) {
	r, err := n.Rect()
	if err != nil {
		return geom.Point{}, err
	}
	if _, ok := n.Raw("rotation_pivot"); !ok {
		return r.Center(), nil
	}
	p, err := n.Point("rotation_pivot")
	if err != nil {
		return geom.Point{}, err
	}
	return r.Min().Add(p), nil
}

// GlobalRotate sums the rotations of the shape and all its ancestors.
func (n *Node) GlobalRotate() (float64, error) {
	if n.isRoot {
		return 0, nil
	}
	return n.memoFloat("@global_rotate", func() (float64, error) {
		r, err := n.Rotate()
		if err != nil {
			return 0, err
		}
		pr, err := n.Parent().Base().GlobalRotate()
		return r + pr, err
	})
}

// Transform returns the mapping from the shape's unrotated canvas
// coordinates to final canvas coordinates: its own rotation about its
// pivot, followed by the transforms of every ancestor.
func (n *Node) Transform() (geom.Affine, error) {
	if n.isRoot {
		return geom.Identity(), nil
	}
	v, err := n.memo("@transform", func() (any, error) {
		parent, err := n.Parent().Base().Transform()
		if err != nil {
			return nil, err
		}
		rot, err := n.Rotate()
		if err != nil {
			return nil, err
		}
		if rot == 0 {
			return parent, nil
		}
		pivot, err := n.Pivot()
		if err != nil {
			return nil, err
		}
		return geom.RotationAbout(-rot, pivot).Then(parent), nil
	})
	if err != nil {
		return geom.Affine{}, err
	}
	return v.(geom.Affine), nil
}

// Corners returns the four corners of the outer box after all rotations.
func (n *Node) Corners() ([4]geom.Point, error) {
	var out [4]geom.Point
	r, err := n.Rect()
	if err != nil {
		return out, err
	}
	m, err := n.Transform()
	if err != nil {
		return out, err
	}
	for i, c := range r.Corners() {
		out[i] = m.Apply(c)
	}
	return out, nil
}

// Bounds returns the axis-aligned bounding box of the rotated outer box.
func (n *Node) Bounds() (geom.Rect, error) {
	c, err := n.Corners()
	if err != nil {
		return geom.Rect{}, err
	}
	return geom.Bounds(c[:]), nil
}

// Enabled reports the "enabled" parameter, true by default.
func (n *Node) Enabled() (bool, error) {
	if n.isRoot {
		return true, nil
	}
	return n.Bool("enabled", Default(true))
}

// Attr resolves an attribute for scope references such as "box.width".
// Geometry names map to the resolved geometry, then local variables and
// finally descriptor parameters are consulted.
func (n *Node) Attr(name string) (any, error) {
	switch name {
	case "x":
		return n.X()
	case "y":
		return n.Y()
	case "width", "w":
		return n.Width()
	case "height", "h":
		return n.Height()
	case "x_draw":
		return n.XDraw()
	case "y_draw":
		return n.YDraw()
	case "width_draw":
		return n.WidthDraw()
	case "height_draw":
		return n.HeightDraw()
	case "x0", "left":
		return n.X()
	case "y0", "top":
		return n.Y()
	case "x1", "right":
		r, err := n.Rect()
		return r.Right(), err
	case "y1", "bottom":
		r, err := n.Rect()
		return r.Bottom(), err
	case "center":
		r, err := n.Rect()
		return r.Center(), err
	case "center_x":
		r, err := n.Rect()
		return r.Center().X, err
	case "center_y":
		r, err := n.Rect()
		return r.Center().Y, err
	case "rotate", "rotation":
		return n.Rotate()
	case "global_rotate":
		return n.GlobalRotate()
	case "pivot":
		return n.Pivot()
	case "unit":
		return n.ctx.Unit(), nil
	case "parent":
		if p := n.Parent(); p != nil {
			return p, nil
		}
		return nil, errs.New(errs.ErrCodeUnresolvedReference, "%s has no parent", n)
	case "id":
		return n.id, nil
	case "type":
		return n.kind, nil
	case "enabled":
		return n.Enabled()
	}
	if v, ok := n.Local(name); ok {
		return v, nil
	}
	return n.Param(name)
}
