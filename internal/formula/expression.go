package formula

import (
	"fmt"

	"github.com/roach88/corrlookup/internal/ir"
)

// Expression is a compiled formula. It holds no mutable state and is safe
// for concurrent use.
type Expression struct {
	src   string
	names []string
	arity int
	vars  int
	fn    node
}

var _ ir.Expr = (*Expression)(nil)

// Compile parses expression with parameterNames as free parameters.
//
// Parameters may be referenced by name or positionally as [i]. When
// parameterNames is empty the arity is the highest [i] referenced plus one.
// Returns a PARSE_ERROR wrapping a *SyntaxError on failure.
func Compile(expression string, parameterNames []string) (*Expression, error) {
	p := &parser{params: make(map[string]int, len(parameterNames))}
	for i, name := range parameterNames {
		if _, dup := p.params[name]; dup {
			return nil, parseError(expression, &SyntaxError{Message: fmt.Sprintf("duplicate parameter name %q", name)})
		}
		p.params[name] = i
	}
	p.named = len(parameterNames) > 0
	p.arity = len(parameterNames)

	toks, err := lex(expression)
	if err != nil {
		return nil, parseError(expression, err)
	}
	p.toks = toks
	if p.peek().kind == tokEOF {
		return nil, parseError(expression, &SyntaxError{Message: "empty expression"})
	}

	root, err := p.parseExpr()
	if err != nil {
		return nil, parseError(expression, err)
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, parseError(expression, &SyntaxError{Offset: t.pos, Message: fmt.Sprintf("unexpected %s", t)})
	}

	return &Expression{
		src:   expression,
		names: append([]string(nil), parameterNames...),
		arity: p.arity,
		vars:  p.vars,
		fn:    root.fn,
	}, nil
}

// MustCompile is like Compile but panics on error.
// Use only in tests or for expressions known to be valid.
func MustCompile(expression string, parameterNames ...string) *Expression {
	e, err := Compile(expression, parameterNames)
	if err != nil {
		panic(err)
	}
	return e
}

func parseError(expression string, err error) error {
	return &ir.Error{
		Code:    ir.CodeParse,
		Message: fmt.Sprintf("cannot compile %q", expression),
		Err:     err,
	}
}

// Evaluate binds params positionally and x to the independent variable.
func (e *Expression) Evaluate(params []float64, x float64) float64 {
	v := [1]float64{x}
	return e.fn(params, v[:])
}

// EvaluateN binds vars to x, y, z, t in order. Variables or parameters that
// are not supplied evaluate as NaN.
func (e *Expression) EvaluateN(params []float64, vars ...float64) float64 {
	return e.fn(params, vars)
}

// Arity is the number of parameters the expression takes.
func (e *Expression) Arity() int { return e.arity }

// Vars is the number of independent variables read (highest of x..t + 1).
func (e *Expression) Vars() int { return e.vars }

// ParameterNames returns the declared parameter names.
func (e *Expression) ParameterNames() []string { return append([]string(nil), e.names...) }

// String returns the source text.
func (e *Expression) String() string { return e.src }
