package formula

import (
	"fmt"
	"math"
	"strings"
)

// node is a compiled subexpression. p holds parameters, v the independent
// variables x, y, z, t in order.
type node func(p, v []float64) float64

// operand is a node plus whether it depends on no input at all.
type operand struct {
	fn       node
	constant bool
}

func constant(c float64) operand {
	return operand{fn: func(_, _ []float64) float64 { return c }, constant: true}
}

// fold evaluates constant subtrees once at compile time.
func fold(fn node, args ...operand) operand {
	for _, a := range args {
		if !a.constant {
			return operand{fn: fn}
		}
	}
	return constant(fn(nil, nil))
}

var variableNames = [...]string{"x", "y", "z", "t"}

type parser struct {
	toks   []token
	i      int
	params map[string]int
	named  bool
	arity  int
	vars   int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) expect(text string) error {
	t := p.next()
	if t.kind != tokOp || t.text != text {
		return &SyntaxError{Offset: t.pos, Message: fmt.Sprintf("expected %q, found %s", text, t)}
	}
	return nil
}

func (p *parser) parseExpr() (operand, error) {
	left, err := p.parseTerm()
	if err != nil {
		return operand{}, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return operand{}, err
		}
		l, r := left.fn, right.fn
		if op == "+" {
			left = fold(func(a, b []float64) float64 { return l(a, b) + r(a, b) }, left, right)
		} else {
			left = fold(func(a, b []float64) float64 { return l(a, b) - r(a, b) }, left, right)
		}
	}
	return left, nil
}

func (p *parser) parseTerm() (operand, error) {
	left, err := p.parseUnary()
	if err != nil {
		return operand{}, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return operand{}, err
		}
		l, r := left.fn, right.fn
		if op == "*" {
			left = fold(func(a, b []float64) float64 { return l(a, b) * r(a, b) }, left, right)
		} else {
			left = fold(func(a, b []float64) float64 { return l(a, b) / r(a, b) }, left, right)
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (operand, error) {
	if p.isOp("-") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return operand{}, err
		}
		f := inner.fn
		return fold(func(a, b []float64) float64 { return -f(a, b) }, inner), nil
	}
	if p.isOp("+") {
		p.next()
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (operand, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return operand{}, err
	}
	if !p.isOp("^") {
		return base, nil
	}
	p.next()
	exp, err := p.parseUnary()
	if err != nil {
		return operand{}, err
	}
	b, e := base.fn, exp.fn
	return fold(func(x, y []float64) float64 { return math.Pow(b(x, y), e(x, y)) }, base, exp), nil
}

func (p *parser) parsePrimary() (operand, error) {
	t := p.next()
	switch {
	case t.kind == tokNumber:
		return constant(t.num), nil
	case t.kind == tokOp && t.text == "(":
		inner, err := p.parseExpr()
		if err != nil {
			return operand{}, err
		}
		if err := p.expect(")"); err != nil {
			return operand{}, err
		}
		return inner, nil
	case t.kind == tokOp && t.text == "[":
		return p.parsePositional(t)
	case t.kind == tokName:
		return p.parseName(t)
	}
	return operand{}, &SyntaxError{Offset: t.pos, Message: fmt.Sprintf("unexpected %s", t)}
}

// parsePositional handles ROOT style [i] parameters.
func (p *parser) parsePositional(open token) (operand, error) {
	t := p.next()
	if t.kind != tokNumber || t.num != math.Trunc(t.num) || t.num < 0 {
		return operand{}, &SyntaxError{Offset: t.pos, Message: fmt.Sprintf("parameter index must be a non-negative integer, found %s", t)}
	}
	if err := p.expect("]"); err != nil {
		return operand{}, err
	}
	k := int(t.num)
	if p.named && k >= len(p.params) {
		return operand{}, &SyntaxError{Offset: open.pos, Message: fmt.Sprintf("parameter [%d] exceeds %d declared parameters", k, len(p.params))}
	}
	p.arity = max(p.arity, k+1)
	return parameter(k), nil
}

func (p *parser) parseName(t token) (operand, error) {
	if k, ok := p.params[t.text]; ok {
		return parameter(k), nil
	}
	for k, name := range variableNames {
		if t.text == name {
			p.vars = max(p.vars, k+1)
			return operand{fn: func(_, v []float64) float64 {
				if k < len(v) {
					return v[k]
				}
				return math.NaN()
			}}, nil
		}
	}

	fname := strings.ToLower(strings.TrimPrefix(t.text, "TMath::"))
	fn, ok := functions[fname]
	if !ok {
		return operand{}, &SyntaxError{Offset: t.pos, Message: fmt.Sprintf("unknown identifier %q", t.text)}
	}
	if !p.isOp("(") {
		return operand{}, &SyntaxError{Offset: t.pos, Message: fmt.Sprintf("function %q must be called", t.text)}
	}
	p.next()

	var args []operand
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return operand{}, err
		}
		args = append(args, arg)
		if !p.isOp(",") {
			break
		}
		p.next()
	}
	if err := p.expect(")"); err != nil {
		return operand{}, err
	}
	if len(args) < fn.minArgs || fn.maxArgs > 0 && len(args) > fn.maxArgs {
		return operand{}, &SyntaxError{Offset: t.pos, Message: fmt.Sprintf("function %q takes %s arguments, got %d", t.text, fn.arity(), len(args))}
	}
	fns := make([]node, len(args))
	for i, a := range args {
		fns[i] = a.fn
	}
	return fold(fn.build(fns), args...), nil
}

func parameter(k int) operand {
	return operand{fn: func(p, _ []float64) float64 {
		if k < len(p) {
			return p[k]
		}
		return math.NaN()
	}}
}
