// Package shape implements the template shape tree: parameter resolution,
// layout and rendering of every shape kind.
//
// A template is a list of shape descriptors (maps with a "type" tag). Each
// descriptor becomes a [Shape] built by the constructor registered for its
// tag. All shapes share a [Node], which resolves parameters lazily through
// the value converter:
//
//   - numeric strings ("42", "-1.5") become numbers
//   - "N%" is N percent of the parameter's template default
//   - "name.attr" reads an attribute of another shape ("self" and "parent"
//     included)
//   - "$name" reads a variable
//   - "=expr" evaluates an expression whose operands use the rules above
//
// Geometry is resolved relative to the parent's draw rectangle (its box
// minus padding); top-level shapes are placed on the canvas. Composite
// shapes ([Grid], [Tile]) lay out their children inside synthetic cell
// parents and composite the children's layers.
//
// # Rendering
//
// Each leaf draws on its own canvas-sized transparent layer through the
// [Rasterizer]. The layer is then rotated by the shape's accumulated
// rotation and composited by the caller. Composites render their children
// and merge the layers in order.
package shape

import (
	"image"
)

// Shape is one node of the template shape tree.
type Shape interface {
	// Base returns the shared node state.
	Base() *Node
	// Draw paints the shape onto l in canvas coordinates, ignoring
	// rotation. Composites implement Renderer instead and draw nothing.
	Draw(l Layer) error
}

// WidthResolver lets a shape compute its width, for example from its
// content, instead of reading the "width" parameter.
type WidthResolver interface {
	ResolveWidth() (float64, error)
}

// HeightResolver is the height counterpart of WidthResolver.
type HeightResolver interface {
	ResolveHeight() (float64, error)
}

// RotateResolver overrides the "rotate" parameter.
type RotateResolver interface {
	ResolveRotate() (float64, error)
}

// Renderer is implemented by composite shapes that produce their layer by
// compositing children.
type Renderer interface {
	RenderLayer() (*image.RGBA, error)
}

// Parent is implemented by shapes that own children.
type Parent interface {
	Children() []Shape
}

// noDraw is embedded by shapes that never paint anything themselves.
type noDraw struct{}

func (noDraw) Draw(Layer) error { return nil }
