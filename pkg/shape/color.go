package shape

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/expr"
)

// ParseColor converts a template color value. Accepted forms are CSS color
// names, "#rgb", "#rrggbb" and "#rrggbbaa" hex strings, "rgb(r, g, b)",
// "rgba(r, g, b, a)", "hsv(h, s, v)", "none"/"transparent", and [r, g, b]
// or [r, g, b, a] lists of 0-255 components.
func ParseColor(v any) (color.Color, error) {
	switch c := v.(type) {
	case color.Color:
		return c, nil
	case []any:
		return listColor(c)
	case string:
		return stringColor(c)
	}
	return nil, errs.New(errs.ErrCodeInvalidParameterType, "invalid color %v", v)
}

func stringColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "none" || s == "transparent":
		return color.Transparent, nil
	case strings.HasPrefix(s, "#"):
		return hexColor(s)
	case strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba("):
		args, err := funcArgs(s)
		if err != nil {
			return nil, err
		}
		return rgbColor(args)
	case strings.HasPrefix(s, "hsv("):
		args, err := funcArgs(s)
		if err != nil {
			return nil, err
		}
		if len(args) != 3 {
			return nil, errs.New(errs.ErrCodeInvalidParameterType, "invalid color %q", s)
		}
		sat, val := unitScale(args[1]), unitScale(args[2])
		return toNRGBA(colorful.Hsv(args[0], sat, val), 255), nil
	}
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	return nil, errs.New(errs.ErrCodeInvalidParameterType, "unknown color %q", s)
}

func hexColor(s string) (color.Color, error) {
	var alpha uint8 = 255
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return nil, errs.New(errs.ErrCodeInvalidParameterType, "invalid color %q", s)
		}
		alpha = uint8(a)
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidParameterType, err, "invalid color %q", s)
	}
	return toNRGBA(c, alpha), nil
}

func funcArgs(s string) ([]float64, error) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return nil, errs.New(errs.ErrCodeInvalidParameterType, "invalid color %q", s)
	}
	parts := strings.Split(s[open+1:end], ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errs.New(errs.ErrCodeInvalidParameterType, "invalid color %q", s)
		}
		out[i] = f
	}
	return out, nil
}

func listColor(l []any) (color.Color, error) {
	args := make([]float64, len(l))
	for i, e := range l {
		f, ok := expr.ToFloat(e)
		if !ok {
			return nil, errs.New(errs.ErrCodeInvalidParameterType, "color component %d is %v, want a number", i, e)
		}
		args[i] = f
	}
	return rgbColor(args)
}

// rgbColor builds a color from 0-255 components. An alpha at most 1 is a
// fraction, otherwise a 0-255 component.
func rgbColor(args []float64) (color.Color, error) {
	if len(args) != 3 && len(args) != 4 {
		return nil, errs.New(errs.ErrCodeInvalidParameterType, "color needs 3 or 4 components, got %d", len(args))
	}
	a := 255.0
	if len(args) == 4 {
		a = args[3]
		if a <= 1 {
			a *= 255
		}
	}
	return color.NRGBA{R: clampByte(args[0]), G: clampByte(args[1]), B: clampByte(args[2]), A: clampByte(a)}, nil
}

func unitScale(f float64) float64 {
	if f > 1 {
		return f / 100
	}
	return f
}

func clampByte(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, f))))
}

func toNRGBA(c colorful.Color, alpha uint8) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}
}
