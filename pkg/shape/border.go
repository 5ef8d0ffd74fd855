package shape

import (
	"image/color"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/expr"
)

type colorStroke struct {
	color color.Color
	width float64
}

// border resolves a shape's outline from either a "border" map
// ({enabled, width, color}) or the flat border_width and border_color
// parameters, which take precedence. ok is false when no outline is drawn.
func border(n *Node, fallbackWidth float64) (s colorStroke, ok bool, err error) {
	s.width = fallbackWidth
	var raw any = "black"
	enabled := true

	if _, has := n.Raw("border"); has {
		v, err := n.Param("border")
		if err != nil {
			return s, false, err
		}
		switch b := v.(type) {
		case map[string]any:
			if w, ok := b["width"]; ok {
				f, isNum := expr.ToFloat(w)
				if !isNum {
					return s, false, errs.New(errs.ErrCodeInvalidParameterType, "%s: border width must be a number, got %v", n, w)
				}
				s.width = f
			}
			if c, ok := b["color"]; ok {
				raw = c
			}
			if e, ok := b["enabled"]; ok {
				enabled, err = toBool(e, func() error {
					return errs.New(errs.ErrCodeInvalidParameterType, "%s: border enabled must be a boolean, got %v", n, e)
				})
				if err != nil {
					return s, false, err
				}
			}
		case bool:
			enabled = b
		case float64:
			s.width = b
		default:
			return s, false, errs.New(errs.ErrCodeInvalidParameterType, "%s: border must be a map, got %s", n, expr.TypeName(v))
		}
	}

	if _, has := n.Raw("border_width"); has {
		if s.width, err = n.Number("border_width"); err != nil {
			return s, false, err
		}
	}
	if _, has := n.Raw("border_color"); has {
		if raw, err = n.Param("border_color"); err != nil {
			return s, false, err
		}
	}
	if !enabled || s.width <= 0 {
		return s, false, nil
	}
	if s.color, err = ParseColor(raw); err != nil {
		return s, false, wrap(err, "%s: border color", n)
	}
	return s, true, nil
}

func drawBorder(n *Node, l Layer, stroke func(colorStroke) error) error {
	s, ok, err := border(n, 0)
	if err != nil || !ok {
		return err
	}
	return stroke(s)
}
