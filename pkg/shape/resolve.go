package shape

import (
	"image/color"
	"math"
	"regexp"
	"strconv"
	"strings"

	errs "github.com/matzehuels/framestamp/pkg/errors"
	"github.com/matzehuels/framestamp/pkg/expr"
	"github.com/matzehuels/framestamp/pkg/geom"
)

var (
	intRe     = regexp.MustCompile(`^-?\d+$`)
	floatRe   = regexp.MustCompile(`^-?\d*\.\d*$`)
	percentRe = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)%$`)
	scopeRe   = regexp.MustCompile(`^([A-Za-z_]\w*)((?:\.[A-Za-z_]\w*)+)$`)
	varRe     = regexp.MustCompile(`^\$(?:([A-Za-z_]\w*)|\{([A-Za-z_]\w*)\})$`)
	interpRe  = regexp.MustCompile("`=([^`]*)`|\\$\\$|\\$\\{([A-Za-z_]\\w*)\\}|\\$([A-Za-z_]\\w*)")
)

// ParamOption adjusts how a parameter is looked up.
type ParamOption func(*paramSpec)

type paramSpec struct {
	fallback    any
	hasFallback bool
	defaultKey  string
	aliases     []string
	noPercent   bool
}

// Default supplies the value used when neither the descriptor nor the
// template defaults define the parameter.
func Default(v any) ParamOption {
	return func(s *paramSpec) {
		s.fallback = v
		s.hasFallback = true
	}
}

// DefaultKey names the template default used as the base of percent
// values. It defaults to the parameter name.
func DefaultKey(key string) ParamOption {
	return func(s *paramSpec) { s.defaultKey = key }
}

// Aliases lists alternative descriptor keys for the parameter.
func Aliases(keys ...string) ParamOption {
	return func(s *paramSpec) { s.aliases = keys }
}

func newSpec(opts []ParamOption) paramSpec {
	var s paramSpec
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Raw returns the unresolved value of key (or one of its aliases) from the
// descriptor, falling back to the template defaults.
func (n *Node) Raw(key string, aliases ...string) (any, bool) {
	if v, ok := n.data[key]; ok {
		return v, true
	}
	for _, a := range aliases {
		if v, ok := n.data[a]; ok {
			return v, true
		}
	}
	if n.isRoot {
		return nil, false
	}
	switch key {
	case "id", "type", "parent", "shapes", "children":
		return nil, false
	}
	if v, ok := n.ctx.defaults[key]; ok {
		return v, true
	}
	for _, a := range aliases {
		if v, ok := n.ctx.defaults[a]; ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether the descriptor itself sets key.
func (n *Node) Has(key string) bool {
	_, ok := n.data[key]
	return ok
}

// Param resolves parameter key through the value converter and memoizes
// the result. A parameter with no value and no Default is a
// ParameterNotFound error.
func (n *Node) Param(key string, opts ...ParamOption) (any, error) {
	spec := newSpec(opts)
	return n.memo(key, func() (any, error) {
		raw, ok := n.Raw(key, spec.aliases...)
		if !ok {
			if !spec.hasFallback {
				return nil, errs.New(errs.ErrCodeParameterNotFound, "%s: missing parameter %q", n, key)
			}
			raw = spec.fallback
		}
		return n.resolveValue(key, raw, spec)
	})
}

// ParamOr resolves key like Param but returns fallback instead of a
// ParameterNotFound error.
func (n *Node) ParamOr(key string, fallback any) (any, error) {
	return n.Param(key, Default(fallback))
}

// Resolve runs v through the value converter as if it were the value of
// parameter key, without memoization.
func (n *Node) Resolve(key string, v any) (any, error) {
	return n.resolveValue(key, v, paramSpec{})
}

func (n *Node) resolveValue(key string, raw any, spec paramSpec) (any, error) {
	switch v := raw.(type) {
	case string:
		out, ok, err := n.convert(key, v, spec)
		if err != nil {
			return nil, err
		}
		if !ok {
			return v, nil
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			r, err := n.resolveValue(key, e, spec)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			r, err := n.resolveValue(key, e, spec)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	}
	return expr.Normalize(raw), nil
}

// convert applies the conversion rules in order. The bool result reports
// whether any rule matched; unmatched strings are literal text.
func (n *Node) convert(key, s string, spec paramSpec) (any, bool, error) {
	if intRe.MatchString(s) || floatRe.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true, nil
		}
	}
	if m := percentRe.FindStringSubmatch(s); m != nil {
		v, err := n.percent(key, m[1], spec)
		return v, err == nil, err
	}
	if m := scopeRe.FindStringSubmatch(s); m != nil {
		v, ok, err := n.scopeRef(m[1], strings.Split(m[2][1:], "."))
		if err != nil || ok {
			return v, ok, err
		}
	}
	if m := varRe.FindStringSubmatch(s); m != nil {
		name := m[1] + m[2]
		v, err := n.variable(name)
		return v, err == nil, err
	}
	if expression, ok := strings.CutPrefix(s, "="); ok {
		v, err := n.evalExpr(key, expression, spec)
		return v, err == nil, err
	}
	return nil, false, nil
}

func (n *Node) percent(key, num string, spec paramSpec) (any, error) {
	pct, _ := strconv.ParseFloat(num, 64)
	if spec.noPercent {
		return nil, errs.New(errs.ErrCodeConfiguration, "%s: default for %q is itself a percentage", n, key)
	}
	dk := spec.defaultKey
	if dk == "" {
		dk = key
	}
	d, ok := n.ctx.defaults[dk]
	if !ok {
		return nil, errs.New(errs.ErrCodeParameterNotFound,
			"%s: %q is %s%% but the template has no default %q to take it from", n, key, num, dk)
	}
	sub := spec
	sub.noPercent = true
	sub.defaultKey = ""
	base, err := n.resolveValue(dk, d, sub)
	if err != nil {
		return nil, err
	}
	f, ok := base.(float64)
	if !ok {
		return nil, errs.New(errs.ErrCodeInvalidParameterType, "%s: default %q must be a number, got %v", n, dk, base)
	}
	return f * pct / 100, nil
}

func (n *Node) scopeRef(name string, attrs []string) (any, bool, error) {
	var target Shape
	switch name {
	case "self":
		target = n.self
	case "parent":
		target = n.Parent()
		if target == nil {
			return nil, false, errs.New(errs.ErrCodeUnresolvedReference, "%s has no parent", n)
		}
	default:
		if n.id != "" && name == n.id {
			return nil, false, errs.New(errs.ErrCodeRecursion, "%s references itself by id; use self", n)
		}
		s, ok := n.ctx.Lookup(name)
		if !ok {
			return nil, false, nil
		}
		target = s
	}

	var cur any = target
	for _, a := range attrs {
		v, err := attribute(cur, a)
		if err != nil {
			return nil, false, err
		}
		cur = v
	}
	return expr.Normalize(cur), true, nil
}

func attribute(v any, name string) (any, error) {
	switch x := v.(type) {
	case Shape:
		return x.Base().Attr(name)
	case geom.Point:
		switch name {
		case "x":
			return x.X, nil
		case "y":
			return x.Y, nil
		}
	case map[string]any:
		if e, ok := x[name]; ok {
			return e, nil
		}
		return nil, errs.New(errs.ErrCodeUnresolvedReference, "no key %q", name)
	}
	return nil, errs.New(errs.ErrCodeInvalidParameterType, "cannot read attribute %q of %s", name, expr.TypeName(v))
}

func (n *Node) variable(name string) (any, error) {
	if v, ok := n.Local(name); ok {
		return expr.Normalize(v), nil
	}
	if v, ok := n.ctx.Variable(name); ok {
		return expr.Normalize(v), nil
	}
	return nil, errs.New(errs.ErrCodeUnresolvedReference, "%s: unknown variable $%s", n, name)
}

func (n *Node) evalExpr(key, src string, spec paramSpec) (any, error) {
	r := expr.ResolverFunc(func(op string) (any, error) {
		v, ok, err := n.convert(key, op, spec)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.New(errs.ErrCodeUnresolvedReference, "cannot resolve %q", op)
		}
		return v, nil
	})
	v, err := expr.Eval(src, r)
	if err != nil {
		return nil, wrap(err, "%s: %s = %q", n, key, "="+src)
	}
	return v, nil
}

// Interpolate expands inline expressions ("`=expr`") and variables ("$name"
// or "${name}") in s. "$$" is a literal dollar sign.
func (n *Node) Interpolate(key, s string) (string, error) {
	var firstErr error
	out := interpRe.ReplaceAllStringFunc(s, func(m string) string {
		if firstErr != nil {
			return m
		}
		sub := interpRe.FindStringSubmatch(m)
		switch {
		case m == "$$":
			return "$"
		case strings.HasPrefix(m, "`"):
			v, err := n.evalExpr(key, sub[1], paramSpec{})
			if err != nil {
				firstErr = err
				return m
			}
			return expr.Format(v)
		default:
			v, err := n.variable(sub[2] + sub[3])
			if err != nil {
				firstErr = err
				return m
			}
			return expr.Format(v)
		}
	})
	return out, firstErr
}

// =============================================================================
// Typed accessors
// =============================================================================

// Number resolves key and requires a number.
func (n *Node) Number(key string, opts ...ParamOption) (float64, error) {
	v, err := n.Param(key, opts...)
	if err != nil {
		return 0, err
	}
	f, ok := expr.ToFloat(v)
	if !ok {
		return 0, errs.New(errs.ErrCodeInvalidParameterType, "%s: %q must be a number, got %s %q", n, key, expr.TypeName(v), expr.Format(v))
	}
	return f, nil
}

// Int resolves key as a number truncated to an int.
func (n *Node) Int(key string, opts ...ParamOption) (int, error) {
	f, err := n.Number(key, opts...)
	if err != nil {
		return 0, err
	}
	return int(math.Trunc(f)), nil
}

// Str resolves key as text. Numbers and booleans are formatted.
func (n *Node) Str(key string, opts ...ParamOption) (string, error) {
	v, err := n.Param(key, opts...)
	if err != nil {
		return "", err
	}
	switch v.(type) {
	case []any, map[string]any:
		return "", errs.New(errs.ErrCodeInvalidParameterType, "%s: %q must be text, got %s", n, key, expr.TypeName(v))
	}
	return expr.Format(v), nil
}

// Bool resolves key as a boolean. Numbers are true when non-zero; strings
// accept the usual spellings (true/false, yes/no, on/off, 1/0).
func (n *Node) Bool(key string, opts ...ParamOption) (bool, error) {
	v, err := n.Param(key, opts...)
	if err != nil {
		return false, err
	}
	return toBool(v, func() error {
		return errs.New(errs.ErrCodeInvalidParameterType, "%s: %q must be a boolean, got %v", n, key, v)
	})
}

func toBool(v any, bad func() error) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0", "":
			return false, nil
		}
	}
	return false, bad()
}

// Point resolves key as a point given as [x, y] or {x, y}. Elements may be
// any convertible value, including inline "`=expr`" text.
func (n *Node) Point(key string, opts ...ParamOption) (geom.Point, error) {
	v, err := n.Param(key, opts...)
	if err != nil {
		return geom.Point{}, err
	}
	p, err := n.toPoint(key, v)
	if err != nil {
		return geom.Point{}, wrap(err, "%s: %q", n, key)
	}
	return p, nil
}

// Points resolves key as a list of points.
func (n *Node) Points(key string, opts ...ParamOption) ([]geom.Point, error) {
	list, err := n.List(key, opts...)
	if err != nil {
		return nil, err
	}
	pts := make([]geom.Point, len(list))
	for i, e := range list {
		p, err := n.toPoint(key, e)
		if err != nil {
			return nil, wrap(err, "%s: %q point %d", n, key, i)
		}
		pts[i] = p
	}
	return pts, nil
}

func (n *Node) toPoint(key string, v any) (geom.Point, error) {
	var xy [2]any
	switch p := v.(type) {
	case geom.Point:
		return p, nil
	case []any:
		if len(p) != 2 {
			return geom.Point{}, errs.New(errs.ErrCodeInvalidParameterType, "point needs 2 coordinates, got %d", len(p))
		}
		xy = [2]any{p[0], p[1]}
	case map[string]any:
		xy = [2]any{p["x"], p["y"]}
	default:
		return geom.Point{}, errs.New(errs.ErrCodeInvalidParameterType, "point must be [x, y], got %s", expr.TypeName(v))
	}
	var out [2]float64
	for i, c := range xy {
		f, err := n.coordinate(key, c)
		if err != nil {
			return geom.Point{}, err
		}
		out[i] = f
	}
	return geom.Pt(out[0], out[1]), nil
}

// coordinate turns an already resolved point element into a number,
// expanding inline expressions left in text.
func (n *Node) coordinate(key string, v any) (float64, error) {
	if s, ok := v.(string); ok {
		text, err := n.Interpolate(key, s)
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, errs.New(errs.ErrCodeInvalidParameterType, "coordinate %q is not a number", s)
		}
		return f, nil
	}
	f, ok := expr.ToFloat(v)
	if !ok {
		return 0, errs.New(errs.ErrCodeInvalidParameterType, "coordinate must be a number, got %s", expr.TypeName(v))
	}
	return f, nil
}

// List resolves key as a list.
func (n *Node) List(key string, opts ...ParamOption) ([]any, error) {
	v, err := n.Param(key, opts...)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, errs.New(errs.ErrCodeInvalidParameterType, "%s: %q must be a list, got %s", n, key, expr.TypeName(v))
	}
	return l, nil
}

// Map resolves key as a map.
func (n *Node) Map(key string, opts ...ParamOption) (map[string]any, error) {
	v, err := n.Param(key, opts...)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errs.New(errs.ErrCodeInvalidParameterType, "%s: %q must be a map, got %s", n, key, expr.TypeName(v))
	}
	return m, nil
}

// Color resolves key as a color. A nil value yields a nil color.
func (n *Node) Color(key string, opts ...ParamOption) (color.Color, error) {
	v, err := n.Param(key, opts...)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	c, err := ParseColor(v)
	if err != nil {
		return nil, wrap(err, "%s: %q", n, key)
	}
	return c, nil
}
