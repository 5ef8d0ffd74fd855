package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// Normalize converts Go numeric types to float64, the single number type of
// the expression language. Other values are returned unchanged.
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}

// ToFloat reports v as a float64 if it is numeric.
func ToFloat(v any) (float64, bool) {
	f, ok := Normalize(v).(float64)
	return f, ok
}

// Truthy reports the boolean value of v: false, zero, "", nil and empty
// lists are false.
func Truthy(v any) bool {
	switch x := Normalize(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

// Format renders v for text output. Integral floats print without a
// decimal point, so "=2+3" formats as "5".
func Format(v any) string {
	switch x := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// TypeName returns the expression-language name of v's type.
func TypeName(v any) string {
	switch Normalize(v).(type) {
	case nil:
		return "null"
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	}
	return fmt.Sprintf("%T", v)
}

type builtin func(args []any) (any, error)

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"min":   fold("min", math.Min),
		"max":   fold("max", math.Max),
		"abs":   unaryNum("abs", math.Abs),
		"floor": unaryNum("floor", math.Floor),
		"ceil":  unaryNum("ceil", math.Ceil),
		"round": round,
		"int":   toInt,
		"str":   func(args []any) (any, error) { return one("str", args, Format) },
		"len":   length,
		"upper": strFunc("upper", strings.ToUpper),
		"lower": strFunc("lower", strings.ToLower),
	}
}

func arity(name string, args []any, n int) error {
	if len(args) != n {
		return errs.New(errs.ErrCodeInvalidExpression, "%s() takes %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func one[T any](name string, args []any, f func(any) T) (any, error) {
	if err := arity(name, args, 1); err != nil {
		return nil, err
	}
	return f(args[0]), nil
}

func fold(name string, f func(a, b float64) float64) builtin {
	return func(args []any) (any, error) {
		if len(args) == 0 {
			return nil, errs.New(errs.ErrCodeInvalidExpression, "%s() needs at least one argument", name)
		}
		acc, ok := args[0].(float64)
		if !ok {
			return nil, typeError(name, args[0])
		}
		for _, a := range args[1:] {
			n, ok := a.(float64)
			if !ok {
				return nil, typeError(name, a)
			}
			acc = f(acc, n)
		}
		return acc, nil
	}
}

func unaryNum(name string, f func(float64) float64) builtin {
	return func(args []any) (any, error) {
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		n, ok := args[0].(float64)
		if !ok {
			return nil, typeError(name, args[0])
		}
		return f(n), nil
	}
}

func strFunc(name string, f func(string) string) builtin {
	return func(args []any) (any, error) {
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		return f(Format(args[0])), nil
	}
}

func round(args []any) (any, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, errs.New(errs.ErrCodeInvalidExpression, "round() takes 1 or 2 arguments, got %d", len(args))
	}
	n, ok := args[0].(float64)
	if !ok {
		return nil, typeError("round", args[0])
	}
	if len(args) == 1 {
		return math.Round(n), nil
	}
	digits, ok := args[1].(float64)
	if !ok {
		return nil, typeError("round", args[1])
	}
	scale := math.Pow(10, math.Trunc(digits))
	return math.Round(n*scale) / scale, nil
}

func toInt(args []any) (any, error) {
	if err := arity("int", args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case float64:
		return math.Trunc(v), nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, errs.New(errs.ErrCodeInvalidParameterType, "int(): cannot convert %q", v)
		}
		return math.Trunc(f), nil
	}
	return nil, typeError("int", args[0])
}

func length(args []any) (any, error) {
	if err := arity("len", args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case string:
		return float64(len([]rune(v))), nil
	case []any:
		return float64(len(v)), nil
	}
	return nil, typeError("len", args[0])
}
