package shape

import "github.com/matzehuels/framestamp/pkg/geom"

// root is the canvas pseudo-shape: origin at (0, 0), canvas-sized, no
// padding and no rotation.
type root struct {
	*Node
	noDraw
}

func newRoot(c *Context) *Node {
	r := &root{}
	r.Node = &Node{
		self:      r,
		ctx:       c,
		kind:      "canvas",
		data:      map[string]any{},
		isRoot:    true,
		cache:     newCache(c.noCache),
		resolving: make(map[string]bool),
	}
	return r.Node
}

// cellLayout is implemented by synthetic parents whose box is computed by
// the owning composite. The rect is relative to the owner's draw origin.
type cellLayout interface {
	cellRect() (geom.Rect, error)
}

// box is a synthetic parent placing a child in a layout cell of a grid or
// a tile.
type box struct {
	*Node
	noDraw
	layout func() (geom.Rect, error)
}

func newBox(ctx *Context, owner Shape, layout func() (geom.Rect, error), rotate float64, pivot *geom.Point) *box {
	b := &box{layout: layout}
	data := map[string]any{
		"padding":        0.0,
		"padding_top":    0.0,
		"padding_right":  0.0,
		"padding_bottom": 0.0,
		"padding_left":   0.0,
		"rotate":         rotate,
		"enabled":        true,
	}
	if pivot != nil {
		data["rotation_pivot"] = []any{pivot.X, pivot.Y}
	}
	b.Node = &Node{
		self:      b,
		ctx:       ctx,
		kind:      "cell",
		data:      data,
		parent:    owner,
		cache:     newCache(ctx.noCache),
		resolving: make(map[string]bool),
	}
	return b
}

// fixedBox returns a box with a constant rect.
func fixedBox(ctx *Context, owner Shape, r geom.Rect, rotate float64, pivot *geom.Point) *box {
	return newBox(ctx, owner, func() (geom.Rect, error) { return r, nil }, rotate, pivot)
}

func (b *box) cellRect() (geom.Rect, error) { return b.layout() }
