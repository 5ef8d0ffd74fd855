// Package expr implements the restricted expression language used by
// template parameters written as "=<expr>".
//
// Expressions are parsed by a recursive-descent parser and evaluated over
// three value kinds: float64, string and bool. Anything that is not a
// literal (identifiers, attribute chains such as "parent.width", "$name"
// variables and "50%" percent operands) is an operand, handed verbatim to a
// [Resolver]. Nothing in a template can execute code.
//
//	v, err := expr.Eval("self.x / 2 + 10", resolver)
package expr

import (
	"math"
	"strings"
	"unicode/utf8"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// MaxStringLen bounds the length, in runes, of strings built by repetition.
const MaxStringLen = 1 << 20

// Resolver resolves the operands of an expression.
type Resolver interface {
	ResolveOperand(name string) (any, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) (any, error)

// ResolveOperand calls f(name).
func (f ResolverFunc) ResolveOperand(name string) (any, error) { return f(name) }

// Eval parses and evaluates src.
func Eval(src string, r Resolver) (any, error) {
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return n.Eval(r)
}

func (n numberLit) Eval(Resolver) (any, error) { return n.v, nil }
func (n stringLit) Eval(Resolver) (any, error) { return n.v, nil }
func (n boolLit) Eval(Resolver) (any, error)   { return n.v, nil }

func (n operand) Eval(r Resolver) (any, error) {
	if r == nil {
		return nil, errs.New(errs.ErrCodeUnresolvedReference, "no resolver for operand %q", n.name)
	}
	v, err := r.ResolveOperand(n.name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errs.New(errs.ErrCodeUnresolvedReference, "operand %q did not resolve", n.name)
	}
	return Normalize(v), nil
}

func (n unary) Eval(r Resolver) (any, error) {
	x, err := n.x.Eval(r)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case tokNot:
		return !Truthy(x), nil
	case tokMinus:
		f, ok := x.(float64)
		if !ok {
			return nil, typeError("-", x)
		}
		return -f, nil
	}
	return nil, errs.New(errs.ErrCodeInternal, "unknown unary operator")
}

func (n binary) Eval(r Resolver) (any, error) {
	x, err := n.x.Eval(r)
	if err != nil {
		return nil, err
	}
	// Short-circuit operators return the deciding operand.
	switch n.op {
	case tokAnd:
		if !Truthy(x) {
			return x, nil
		}
		return n.y.Eval(r)
	case tokOr:
		if Truthy(x) {
			return x, nil
		}
		return n.y.Eval(r)
	}

	y, err := n.y.Eval(r)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case tokPlus:
		return add(x, y)
	case tokMinus, tokSlash, tokPercent:
		return arith(n.op, x, y)
	case tokStar:
		return mul(x, y)
	case tokEq:
		return equal(x, y), nil
	case tokNe:
		return !equal(x, y), nil
	case tokLt, tokLe, tokGt, tokGe:
		return compare(n.op, x, y)
	}
	return nil, errs.New(errs.ErrCodeInternal, "unknown binary operator")
}

func (n call) Eval(r Resolver) (any, error) {
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.Eval(r)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return builtins[n.fn](args)
}

func add(x, y any) (any, error) {
	switch a := x.(type) {
	case float64:
		if b, ok := y.(float64); ok {
			return a + b, nil
		}
	case string:
		if b, ok := y.(string); ok {
			return a + b, nil
		}
	}
	return nil, typeError2("+", x, y)
}

func arith(op tokenKind, x, y any) (any, error) {
	a, ok1 := x.(float64)
	b, ok2 := y.(float64)
	if !ok1 || !ok2 {
		return nil, typeError2(opText[op], x, y)
	}
	switch op {
	case tokMinus:
		return a - b, nil
	case tokSlash:
		if b == 0 {
			return nil, errs.New(errs.ErrCodeInvalidParameterType, "division by zero")
		}
		return a / b, nil
	default:
		if b == 0 {
			return nil, errs.New(errs.ErrCodeInvalidParameterType, "modulo by zero")
		}
		// Floored modulo: the result takes the sign of the divisor.
		return a - b*math.Floor(a/b), nil
	}
}

func mul(x, y any) (any, error) {
	switch a := x.(type) {
	case float64:
		switch b := y.(type) {
		case float64:
			return a * b, nil
		case string:
			return repeat(b, a)
		}
	case string:
		if b, ok := y.(float64); ok {
			return repeat(a, b)
		}
	}
	return nil, typeError2("*", x, y)
}

func repeat(s string, n float64) (any, error) {
	if n <= 0 {
		return "", nil
	}
	if n != math.Trunc(n) {
		return nil, errs.New(errs.ErrCodeInvalidParameterType, "cannot repeat string %v times", n)
	}
	if l := utf8.RuneCountInString(s); l > 0 && n > float64(MaxStringLen/l) {
		return nil, errs.New(errs.ErrCodeInvalidParameterType, "repeating a %d rune string %v times exceeds %d runes", l, n, MaxStringLen)
	}
	if s == "" {
		return "", nil
	}
	return strings.Repeat(s, int(n)), nil
}

func equal(x, y any) bool {
	switch a := x.(type) {
	case float64:
		b, ok := y.(float64)
		return ok && a == b
	case string:
		b, ok := y.(string)
		return ok && a == b
	case bool:
		b, ok := y.(bool)
		return ok && a == b
	}
	return false
}

func compare(op tokenKind, x, y any) (any, error) {
	var c int
	switch a := x.(type) {
	case float64:
		b, ok := y.(float64)
		if !ok {
			return nil, typeError2(opText[op], x, y)
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	case string:
		b, ok := y.(string)
		if !ok {
			return nil, typeError2(opText[op], x, y)
		}
		c = strings.Compare(a, b)
	default:
		return nil, typeError2(opText[op], x, y)
	}
	switch op {
	case tokLt:
		return c < 0, nil
	case tokLe:
		return c <= 0, nil
	case tokGt:
		return c > 0, nil
	}
	return c >= 0, nil
}

func typeError(op string, x any) error {
	return errs.New(errs.ErrCodeInvalidParameterType, "unsupported operand type for %s: %s", op, TypeName(x))
}

func typeError2(op string, x, y any) error {
	return errs.New(errs.ErrCodeInvalidParameterType, "unsupported operand types for %s: %s and %s", op, TypeName(x), TypeName(y))
}
