package expr

import (
	"fmt"
	"strconv"
	"strings"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

// Node is a parsed expression.
type Node interface {
	// Eval evaluates the node, resolving operands through r.
	Eval(r Resolver) (any, error)
	String() string
}

type (
	numberLit struct{ v float64 }
	stringLit struct{ v string }
	boolLit   struct{ v bool }
	operand   struct{ name string }
	unary     struct {
		op tokenKind
		x  Node
	}
	binary struct {
		op   tokenKind
		x, y Node
	}
	call struct {
		fn   string
		args []Node
	}
)

func (n numberLit) String() string { return strconv.FormatFloat(n.v, 'g', -1, 64) }
func (n stringLit) String() string { return strconv.Quote(n.v) }
func (n boolLit) String() string   { return strconv.FormatBool(n.v) }
func (n operand) String() string   { return n.name }
func (n unary) String() string     { return fmt.Sprintf("(%s%s)", opText[n.op], n.x) }
func (n binary) String() string    { return fmt.Sprintf("(%s %s %s)", n.x, opText[n.op], n.y) }
func (n call) String() string {
	args := make([]string, len(n.args))
	for i, a := range n.args {
		args[i] = a.String()
	}
	return n.fn + "(" + strings.Join(args, ", ") + ")"
}

var opText = map[tokenKind]string{
	tokPlus: "+", tokMinus: "-", tokStar: "*", tokSlash: "/", tokPercent: "%",
	tokEq: "==", tokNe: "!=", tokLt: "<", tokLe: "<=", tokGt: ">", tokGe: ">=",
	tokAnd: "and", tokOr: "or", tokNot: "not ",
}

// Parse parses src into an expression tree.
//
// Grammar, lowest precedence first:
//
//	or      = and { ("or" | "||") and }
//	and     = not { ("and" | "&&") not }
//	not     = ("not" | "!") not | compare
//	compare = sum [ ("==" | "!=" | "<" | "<=" | ">" | ">=") sum ]
//	sum     = product { ("+" | "-") product }
//	product = unary { ("*" | "/" | "%") unary }
//	unary   = "-" unary | "+" unary | primary
//	primary = number | string | "true" | "false" | operand
//	        | ident "(" [ or { "," or } ] ")" | "(" or ")"
func Parse(src string) (Node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: src}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, errs.New(errs.ErrCodeInvalidExpression, "unexpected %q at %d in %q", tok.text, tok.pos, src)
	}
	return n, nil
}

type parser struct {
	toks []token
	pos  int
	src  string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) accept(kinds ...tokenKind) (token, bool) {
	tok := p.peek()
	for _, k := range kinds {
		if tok.kind == k {
			p.advance()
			return tok, true
		}
	}
	return tok, false
}

func (p *parser) or() (Node, error) {
	x, err := p.and()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(tokOr); !ok {
			return x, nil
		}
		y, err := p.and()
		if err != nil {
			return nil, err
		}
		x = binary{op: tokOr, x: x, y: y}
	}
}

func (p *parser) and() (Node, error) {
	x, err := p.not()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(tokAnd); !ok {
			return x, nil
		}
		y, err := p.not()
		if err != nil {
			return nil, err
		}
		x = binary{op: tokAnd, x: x, y: y}
	}
}

func (p *parser) not() (Node, error) {
	if _, ok := p.accept(tokNot); ok {
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return unary{op: tokNot, x: x}, nil
	}
	return p.compare()
}

func (p *parser) compare() (Node, error) {
	x, err := p.sum()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.accept(tokEq, tokNe, tokLt, tokLe, tokGt, tokGe); ok {
		y, err := p.sum()
		if err != nil {
			return nil, err
		}
		return binary{op: tok.kind, x: x, y: y}, nil
	}
	return x, nil
}

func (p *parser) sum() (Node, error) {
	x, err := p.product()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.accept(tokPlus, tokMinus)
		if !ok {
			return x, nil
		}
		y, err := p.product()
		if err != nil {
			return nil, err
		}
		x = binary{op: tok.kind, x: x, y: y}
	}
}

func (p *parser) product() (Node, error) {
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.accept(tokStar, tokSlash, tokPercent)
		if !ok {
			return x, nil
		}
		y, err := p.unary()
		if err != nil {
			return nil, err
		}
		x = binary{op: tok.kind, x: x, y: y}
	}
}

func (p *parser) unary() (Node, error) {
	if tok, ok := p.accept(tokMinus, tokPlus); ok {
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokPlus {
			return x, nil
		}
		return unary{op: tokMinus, x: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidExpression, err, "bad number %q", tok.text)
		}
		return numberLit{v: v}, nil
	case tokString:
		return stringLit{v: tok.text}, nil
	case tokTrue, tokFalse:
		return boolLit{v: tok.kind == tokTrue}, nil
	case tokOperand:
		return operand{name: tok.text}, nil
	case tokIdent:
		return p.call(tok)
	case tokLParen:
		x, err := p.or()
		if err != nil {
			return nil, err
		}
		if _, ok := p.accept(tokRParen); !ok {
			return nil, errs.New(errs.ErrCodeInvalidExpression, "missing ')' in %q", p.src)
		}
		return x, nil
	case tokEOF:
		return nil, errs.New(errs.ErrCodeInvalidExpression, "unexpected end of expression %q", p.src)
	}
	return nil, errs.New(errs.ErrCodeInvalidExpression, "unexpected %q at %d in %q", tok.text, tok.pos, p.src)
}

func (p *parser) call(name token) (Node, error) {
	if _, ok := builtins[name.text]; !ok {
		return nil, errs.New(errs.ErrCodeInvalidExpression, "unknown function %q", name.text)
	}
	p.advance() // "("
	c := call{fn: name.text}
	if _, ok := p.accept(tokRParen); ok {
		return c, nil
	}
	for {
		arg, err := p.or()
		if err != nil {
			return nil, err
		}
		c.args = append(c.args, arg)
		if _, ok := p.accept(tokRParen); ok {
			return c, nil
		}
		if _, ok := p.accept(tokComma); !ok {
			return nil, errs.New(errs.ErrCodeInvalidExpression, "expected ',' or ')' in call to %s", name.text)
		}
	}
}
