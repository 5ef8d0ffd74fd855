package shape

// Rect is a filled rectangle with an optional border and rounded corners.
//
// Parameters: color (default white), border_width (0), border_color
// (black), radius (0).
type Rect struct {
	*Node
}

// NewRect constructs a rect shape.
func NewRect(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	r := &Rect{}
	n, err := NewNode(r, ctx, "rect", data, parent)
	if err != nil {
		return nil, err
	}
	r.Node = n
	n.SetDefaultSize(100, 100)
	return r, nil
}

func (r *Rect) Draw(l Layer) error {
	box, err := r.DrawRect()
	if err != nil {
		return err
	}
	fill, err := r.Color("color", Default("white"))
	if err != nil {
		return err
	}
	radius, err := r.Number("radius", Default(0.0))
	if err != nil {
		return err
	}
	if err := l.FillRect(box, radius, fill); err != nil {
		return err
	}
	return drawBorder(r.Node, l, func(c colorStroke) error {
		return l.StrokeRect(box, radius, c.color, c.width)
	})
}

// Ellipse is a filled ellipse inscribed in the draw box. It takes the same
// parameters as Rect, without radius.
type Ellipse struct {
	*Node
}

// NewEllipse constructs an ellipse shape.
func NewEllipse(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	e := &Ellipse{}
	n, err := NewNode(e, ctx, "ellipse", data, parent)
	if err != nil {
		return nil, err
	}
	e.Node = n
	n.SetDefaultSize(100, 100)
	return e, nil
}

func (e *Ellipse) Draw(l Layer) error {
	box, err := e.DrawRect()
	if err != nil {
		return err
	}
	fill, err := e.Color("color", Default("white"))
	if err != nil {
		return err
	}
	if err := l.FillEllipse(box, fill); err != nil {
		return err
	}
	return drawBorder(e.Node, l, func(c colorStroke) error {
		return l.StrokeEllipse(box, c.color, c.width)
	})
}
