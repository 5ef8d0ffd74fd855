package shape

import (
	"math"
	"strings"
	"unicode"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/expr"
	"github.com/matzehuels/framestamp/pkg/geom"
)

// Label draws text. Its size is the measured text block plus padding
// unless width or height are given.
//
// The text may embed variables ("$name", "${name}") and inline expressions
// ("`=expr`"); a text starting with "=" is a single expression. Optional
// transforms are applied in order: upper, lower, title, zfill, truncate,
// ltruncate.
type Label struct {
	*Node
}

type textLayout struct {
	font    string
	size    float64
	spacing float64
	lines   []string
	extents []TextExtent
	width   float64
	height  float64
}

// NewLabel constructs a label shape.
func NewLabel(ctx *Context, data map[string]any, parent Shape) (Shape, error) {
	l := &Label{}
	n, err := NewNode(l, ctx, "label", data, parent)
	if err != nil {
		return nil, err
	}
	l.Node = n
	return l, nil
}

// Text returns the fully substituted and transformed text.
func (l *Label) Text() (string, error) {
	v, err := l.memo("@text", func() (any, error) {
		s, err := l.rawText()
		if err != nil {
			return nil, err
		}
		return l.transform(s)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (l *Label) rawText() (string, error) {
	raw, ok := l.Raw("text")
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		v, err := l.Resolve("text", raw)
		return expr.Format(v), err
	}
	if src, ok := strings.CutPrefix(s, "="); ok {
		v, err := l.evalExpr("text", src, paramSpec{})
		return expr.Format(v), err
	}
	return l.Interpolate("text", s)
}

func (l *Label) transform(s string) (string, error) {
	flag := func(key string) (bool, error) { return l.Bool(key, Default(false)) }
	if ok, err := flag("upper"); err != nil {
		return "", err
	} else if ok {
		s = strings.ToUpper(s)
	}
	if ok, err := flag("lower"); err != nil {
		return "", err
	} else if ok {
		s = strings.ToLower(s)
	}
	if ok, err := flag("title"); err != nil {
		return "", err
	} else if ok {
		s = titleCase(s)
	}

	width, err := l.Number("zfill", Default(0.0))
	if err != nil {
		return "", err
	}
	if width > expr.MaxStringLen {
		return "", errs.New(errs.ErrCodeInvalidParameterType, "%s: zfill %v exceeds %d runes", l, width, expr.MaxStringLen)
	}
	s = zfill(s, int(width))

	if n, err := l.Int("truncate", Default(0.0)); err != nil {
		return "", err
	} else if r := []rune(s); n > 0 && len(r) > n {
		s = string(r[:n]) + "..."
	}
	if n, err := l.Int("ltruncate", Default(0.0)); err != nil {
		return "", err
	} else if r := []rune(s); n > 0 && len(r) > n {
		s = "..." + string(r[len(r)-n:])
	}
	return s, nil
}

func titleCase(s string) string {
	out := []rune(s)
	start := true
	for i, r := range out {
		if unicode.IsLetter(r) {
			if start {
				out[i] = unicode.ToUpper(r)
			} else {
				out[i] = unicode.ToLower(r)
			}
			start = false
			continue
		}
		start = !unicode.IsDigit(r) && r != '\''
	}
	return string(out)
}

// zfill left-pads s with zeros to width runes, keeping a leading sign.
func zfill(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return s
	}
	pad := strings.Repeat("0", width-len(r))
	if len(r) > 0 && (r[0] == '-' || r[0] == '+') {
		return string(r[0]) + pad + string(r[1:])
	}
	return pad + s
}

func (l *Label) fontSize() (float64, error) {
	size, err := l.Number("font_size", Default(24.0))
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, errs.New(errs.ErrCodeConfiguration, "%s: font_size must be positive, got %v", l, size)
	}
	return size, nil
}

func (l *Label) layout() (*textLayout, error) {
	v, err := l.memo("@layout", func() (any, error) {
		if l.ctx.Raster == nil {
			return nil, errs.New(errs.ErrCodeInternal, "%s: no rasterizer to measure text", l)
		}
		text, err := l.Text()
		if err != nil {
			return nil, err
		}
		font, err := l.Str("font_name", Aliases("font"), Default(""))
		if err != nil {
			return nil, err
		}
		size, err := l.fontSize()
		if err != nil {
			return nil, err
		}
		spacing, err := l.Number("text_spacing", Default(0.0))
		if err != nil {
			return nil, err
		}

		t, err := l.measure(text, font, size, spacing)
		if err != nil {
			return nil, err
		}
		fit, err := l.Bool("fit_to_parent", Default(false))
		if err != nil {
			return nil, err
		}
		if fit {
			avail, err := l.Parent().Base().WidthDraw()
			if err != nil {
				return nil, err
			}
			if avail > 0 && t.width > avail {
				size = max(1, math.Floor(size*avail/t.width))
				if t, err = l.measure(text, font, size, spacing); err != nil {
					return nil, err
				}
			}
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*textLayout), nil
}

func (l *Label) measure(text, font string, size, spacing float64) (*textLayout, error) {
	t := &textLayout{font: font, size: size, spacing: spacing, lines: strings.Split(text, "\n")}
	for i, line := range t.lines {
		ext, err := l.ctx.Raster.MeasureText(font, size, line)
		if err != nil {
			return nil, wrap(err, "%s: measure text", l)
		}
		if ext.LineHeight == 0 {
			ext.LineHeight = ext.Ascent + ext.Descent
		}
		t.extents = append(t.extents, ext)
		t.width = max(t.width, ext.Width)
		t.height += ext.LineHeight
		if i > 0 {
			t.height += spacing
		}
	}
	return t, nil
}

// ResolveWidth returns the explicit width or the text width plus padding.
func (l *Label) ResolveWidth() (float64, error) {
	if w, ok, err := l.ExplicitSize(0); ok || err != nil {
		return w, err
	}
	t, err := l.layout()
	if err != nil {
		return 0, err
	}
	p, err := l.Padding()
	return t.width + p.Left + p.Right, err
}

// ResolveHeight returns the explicit height or the text block height plus
// padding.
func (l *Label) ResolveHeight() (float64, error) {
	if h, ok, err := l.ExplicitSize(1); ok || err != nil {
		return h, err
	}
	t, err := l.layout()
	if err != nil {
		return 0, err
	}
	p, err := l.Padding()
	return t.height + p.Top + p.Bottom, err
}

func (l *Label) Draw(layer Layer) error {
	box, err := l.DrawRect()
	if err != nil {
		return err
	}
	t, err := l.layout()
	if err != nil {
		return err
	}
	textColor, err := l.Color("text_color", Default(l.data["color"]))
	if err != nil {
		return err
	}
	if textColor == nil {
		if textColor, err = ParseColor("white"); err != nil {
			return err
		}
	}
	align, err := l.Str("text_align", Default("left"))
	if err != nil {
		return err
	}

	if err := l.drawBackdrop(layer, box); err != nil {
		return err
	}
	outline, hasOutline, err := l.outline()
	if err != nil {
		return err
	}

	y := box.Y
	for i, line := range t.lines {
		ext := t.extents[i]
		x := box.X
		switch align {
		case "center", "centre":
			x += (box.Width - ext.Width) / 2
		case "right":
			x += box.Width - ext.Width
		}
		origin := geom.Pt(x, y+ext.Ascent)
		if hasOutline {
			for _, off := range ring(outline.width) {
				run := TextRun{Font: t.font, Size: t.size, Text: line, Origin: origin.Add(off), Color: outline.color}
				if err := layer.DrawText(run); err != nil {
					return err
				}
			}
		}
		run := TextRun{Font: t.font, Size: t.size, Text: line, Origin: origin, Color: textColor}
		if err := layer.DrawText(run); err != nil {
			return err
		}
		y += ext.LineHeight + t.spacing
	}
	return nil
}

// outline reads "outline" ({width, color}) or outline_width/outline_color.
func (l *Label) outline() (colorStroke, bool, error) {
	var s colorStroke
	var raw any = "black"
	if _, ok := l.Raw("outline"); ok {
		m, err := l.Map("outline")
		if err != nil {
			return s, false, err
		}
		if w, ok := expr.ToFloat(m["width"]); ok {
			s.width = w
		}
		if c, ok := m["color"]; ok {
			raw = c
		}
	}
	if _, ok := l.Raw("outline_width"); ok {
		w, err := l.Number("outline_width")
		if err != nil {
			return s, false, err
		}
		s.width = w
	}
	if _, ok := l.Raw("outline_color"); ok {
		c, err := l.Param("outline_color")
		if err != nil {
			return s, false, err
		}
		raw = c
	}
	if s.width <= 0 {
		return s, false, nil
	}
	c, err := ParseColor(raw)
	if err != nil {
		return s, false, wrap(err, "%s: outline color", l)
	}
	s.color = c
	return s, true, nil
}

// ring returns offsets on a circle of radius r used to fake a text stroke.
func ring(r float64) []geom.Point {
	steps := max(8, int(math.Ceil(r*4)))
	out := make([]geom.Point, steps)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(steps)
		out[i] = geom.Pt(r*math.Cos(a), r*math.Sin(a))
	}
	return out
}

// drawBackdrop fills a box behind the text. "backdrop" is a color or a
// map {color, padding}.
func (l *Label) drawBackdrop(layer Layer, box geom.Rect) error {
	if _, ok := l.Raw("backdrop"); !ok {
		return nil
	}
	v, err := l.Param("backdrop")
	if err != nil {
		return err
	}
	raw, pad := v, 0.0
	if m, ok := v.(map[string]any); ok {
		raw = m["color"]
		if p, ok := expr.ToFloat(m["padding"]); ok {
			pad = p
		}
	}
	if raw == nil {
		return nil
	}
	c, err := ParseColor(raw)
	if err != nil {
		return wrap(err, "%s: backdrop color", l)
	}
	return layer.FillRect(box.Inset(-pad, -pad, -pad, -pad), 0, c)
}
