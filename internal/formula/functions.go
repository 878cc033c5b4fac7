package formula

import (
	"fmt"
	"math"
)

// function describes a callable. maxArgs 0 means variadic.
type function struct {
	minArgs int
	maxArgs int
	build   func(args []node) node
}

func (f function) arity() string {
	switch {
	case f.maxArgs == 0:
		return fmt.Sprintf("at least %d", f.minArgs)
	case f.minArgs == f.maxArgs:
		return fmt.Sprintf("%d", f.minArgs)
	default:
		return fmt.Sprintf("%d to %d", f.minArgs, f.maxArgs)
	}
}

func unary(f func(float64) float64) function {
	return function{minArgs: 1, maxArgs: 1, build: func(args []node) node {
		a := args[0]
		return func(p, v []float64) float64 { return f(a(p, v)) }
	}}
}

func binary(f func(float64, float64) float64) function {
	return function{minArgs: 2, maxArgs: 2, build: func(args []node) node {
		a, b := args[0], args[1]
		return func(p, v []float64) float64 { return f(a(p, v), b(p, v)) }
	}}
}

func reduce(f func(float64, float64) float64) function {
	return function{minArgs: 2, build: func(args []node) node {
		return func(p, v []float64) float64 {
			acc := args[0](p, v)
			for _, a := range args[1:] {
				acc = f(acc, a(p, v))
			}
			return acc
		}
	}}
}

// functions maps lower-cased names (TMath:: prefix already stripped).
var functions = map[string]function{
	"abs":   unary(math.Abs),
	"fabs":  unary(math.Abs),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"sqrt":  unary(math.Sqrt),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"atan":  unary(math.Atan),
	"tanh":  unary(math.Tanh),
	"erf":   unary(math.Erf),
	"pow":   binary(math.Pow),
	"power": binary(math.Pow),
	"atan2": binary(math.Atan2),
	"max":   reduce(math.Max),
	"min":   reduce(math.Min),
}
