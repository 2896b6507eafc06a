// ABOUTME: Sandboxed arithmetic evaluator for the bot's math intent
// ABOUTME: Recursive-descent parser over digits, '.', + - * / and parentheses only

// Package calc evaluates restricted numeric expressions. Nothing outside the
// grammar below is ever interpreted:
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := ('-' | '+') unary | primary
//	primary := number | '(' expr ')'
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrSyntax is returned for input outside the grammar.
	ErrSyntax = errors.New("syntax error")
	// ErrDivideByZero is returned when a divisor evaluates to zero.
	ErrDivideByZero = errors.New("division by zero")
	// ErrTooComplex is returned when input exceeds MaxInputLen or MaxDepth.
	ErrTooComplex = errors.New("expression too complex")
)

const (
	// MaxInputLen is the longest expression accepted, in bytes.
	MaxInputLen = 256
	// MaxDepth bounds parenthesis and unary nesting.
	MaxDepth = 32
)

// Eval evaluates expr and returns its value.
func Eval(expr string) (float64, error) {
	if len(expr) > MaxInputLen {
		return 0, ErrTooComplex
	}
	p := &parser{src: expr}
	p.skipSpace()
	if p.done() {
		return 0, fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	v, err := p.expr(0)
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.done() {
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.src[p.pos], p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: result out of range", ErrTooComplex)
	}
	return v, nil
}

// Format renders v without trailing zeros.
func Format(v float64) string {
	if v == 0 {
		// avoid "-0"
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.done() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) expr(depth int) (float64, error) {
	left, err := p.term(depth)
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.term(depth)
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) term(depth int) (float64, error) {
	left, err := p.unary(depth)
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		p.skipSpace()
		if p.peek() == '*' || p.peek() == '/' {
			return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.peek(), p.pos)
		}
		right, err := p.unary(depth)
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
			continue
		}
		if right == 0 {
			return 0, ErrDivideByZero
		}
		left /= right
	}
}

func (p *parser) unary(depth int) (float64, error) {
	if depth > MaxDepth {
		return 0, ErrTooComplex
	}
	p.skipSpace()
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.unary(depth + 1)
		return -v, err
	case '+':
		p.pos++
		return p.unary(depth + 1)
	}
	return p.primary(depth)
}

func (p *parser) primary(depth int) (float64, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.expr(depth + 1)
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing ')'", ErrSyntax)
		}
		p.pos++
		return v, nil
	case isDigit(c) || c == '.':
		return p.number()
	case p.done():
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, p.pos)
	}
}

func (p *parser) number() (float64, error) {
	start := p.pos
	dots := 0
	for !p.done() {
		c := p.src[p.pos]
		if c == '.' {
			dots++
		} else if !isDigit(c) {
			break
		}
		p.pos++
	}
	lit := p.src[start:p.pos]
	if dots > 1 || lit == "." {
		return 0, fmt.Errorf("%w: invalid number %q", ErrSyntax, lit)
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrSyntax, lit)
	}
	return v, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
