package expr

import (
	"strings"
	"unicode"

	errs "github.com/matzehuels/framestamp/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokOperand // identifier, attribute chain, $variable or n%
	tokIdent   // bare identifier followed by "(" (function name)
	tokTrue
	tokFalse
	tokAnd
	tokOr
	tokNot
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokLParen
	tokRParen
	tokComma
	tokEq
	tokNe
	tokLt
	tokLe
	tokGt
	tokGe
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]tokenKind{
	"true":  tokTrue,
	"false": tokFalse,
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
}

type lexer struct {
	src    string
	pos    int
	tokens []token
}

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
		if tok.kind == tokEOF {
			return l.tokens, nil
		}
	}
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		return l.number(), nil
	case c == '\'' || c == '"':
		return l.str()
	case c == '$':
		l.pos++
		if !isIdentStart(l.peekByte(0)) {
			return token{}, errs.New(errs.ErrCodeInvalidExpression, "expected variable name after '$' at %d", start)
		}
		l.ident()
		return token{kind: tokOperand, text: l.src[start:l.pos], pos: start}, nil
	case isIdentStart(c):
		return l.word(), nil
	}

	l.pos++
	two := func(next byte, yes, no tokenKind) token {
		if l.peekByte(0) == next {
			l.pos++
			return token{kind: yes, text: l.src[start:l.pos], pos: start}
		}
		return token{kind: no, text: l.src[start:l.pos], pos: start}
	}
	switch c {
	case '+':
		return token{kind: tokPlus, text: "+", pos: start}, nil
	case '-':
		return token{kind: tokMinus, text: "-", pos: start}, nil
	case '*':
		return token{kind: tokStar, text: "*", pos: start}, nil
	case '/':
		return token{kind: tokSlash, text: "/", pos: start}, nil
	case '%':
		return token{kind: tokPercent, text: "%", pos: start}, nil
	case '(':
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ',':
		return token{kind: tokComma, text: ",", pos: start}, nil
	case '<':
		return two('=', tokLe, tokLt), nil
	case '>':
		return two('=', tokGe, tokGt), nil
	case '=':
		if l.peekByte(0) == '=' {
			l.pos++
			return token{kind: tokEq, text: "==", pos: start}, nil
		}
	case '!':
		return two('=', tokNe, tokNot), nil
	case '&':
		if l.peekByte(0) == '&' {
			l.pos++
			return token{kind: tokAnd, text: "&&", pos: start}, nil
		}
	case '|':
		if l.peekByte(0) == '|' {
			l.pos++
			return token{kind: tokOr, text: "||", pos: start}, nil
		}
	}
	return token{}, errs.New(errs.ErrCodeInvalidExpression, "unexpected character %q at %d", c, start)
}

// number scans a numeric literal. A number directly followed by '%' and no
// further operand character is a percent operand ("50%") rather than a
// modulo operator.
func (l *lexer) number() token {
	start := l.pos
	for isDigit(l.peekByte(0)) {
		l.pos++
	}
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		l.pos++
		for isDigit(l.peekByte(0)) {
			l.pos++
		}
	} else if l.peekByte(0) == '.' && !isIdentStart(l.peekByte(1)) {
		l.pos++
	}
	if l.peekByte(0) == '%' && !isOperandByte(l.peekByte(1)) {
		l.pos++
		return token{kind: tokOperand, text: l.src[start:l.pos], pos: start}
	}
	return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}
}

func (l *lexer) str() (token, error) {
	start := l.pos
	quote := l.src[l.pos]
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.src):
			l.pos++
			switch esc := l.src[l.pos]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(esc)
			}
		case c == quote:
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		default:
			b.WriteByte(c)
		}
		l.pos++
	}
	return token{}, errs.New(errs.ErrCodeInvalidExpression, "unterminated string starting at %d", start)
}

func (l *lexer) ident() {
	for isIdentByte(l.peekByte(0)) {
		l.pos++
	}
}

// word scans an identifier and any trailing ".attr" segments.
func (l *lexer) word() token {
	start := l.pos
	l.ident()
	for l.peekByte(0) == '.' && isIdentStart(l.peekByte(1)) {
		l.pos++
		l.ident()
	}
	text := l.src[start:l.pos]
	if kind, ok := keywords[text]; ok {
		return token{kind: kind, text: text, pos: start}
	}
	if !strings.Contains(text, ".") && l.nextNonSpace() == '(' {
		return token{kind: tokIdent, text: text, pos: start}
	}
	return token{kind: tokOperand, text: text, pos: start}
}

func (l *lexer) nextNonSpace() byte {
	for i := l.pos; i < len(l.src); i++ {
		if !unicode.IsSpace(rune(l.src[i])) {
			return l.src[i]
		}
	}
	return 0
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c|0x20) >= 'a' && (c|0x20) <= 'z' }
func isIdentByte(c byte) bool  { return isIdentStart(c) || isDigit(c) }

func isOperandByte(c byte) bool {
	return isIdentByte(c) || c == '$' || c == '(' || c == '.'
}
