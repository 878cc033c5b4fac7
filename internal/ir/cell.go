package ir

// Cell is the payload stored in one bin of a Table.
//
// This is a sealed interface - only types in this package implement it.
// Resolvers switch exhaustively over:
//   - Scalar: a single stored value
//   - Variants: a fixed-size vector of alternatives (e.g. up, down)
//   - Formula: per-bin parameters for an expression shared by the table
//   - Missing: a hole in a grid assembled from non-tiling source rows
type Cell interface {
	cellNode() // Marker method - seals interface to this package
}

// Scalar is a plain stored value.
type Scalar float64

func (Scalar) cellNode() {}

// Variants is a fixed-size vector of alternative values.
// Element order follows the source file (e.g. up before down).
type Variants []float64

func (Variants) cellNode() {}

// Formula binds an expression to the parameters of one bin.
//
// Ranges, when non-empty, holds the validity window of each evaluation
// variable; variables are clamped into it before evaluation.
type Formula struct {
	Expr   Expr
	Params []float64
	Ranges [][2]float64
}

func (Formula) cellNode() {}

// Missing marks a bin no source row covered. It resolves to the table fill.
type Missing struct{}

func (Missing) cellNode() {}

// Expr is a compiled formula. Implemented by formula.Expression.
type Expr interface {
	// Arity is the number of positional parameters the expression takes.
	Arity() int
	// Vars is the number of independent variables the expression reads.
	Vars() int
	// EvaluateN evaluates with params bound positionally and vars bound to
	// x, y, z, t in order.
	EvaluateN(params []float64, vars ...float64) float64
	// String returns the source text.
	String() string
}

// ParameterNamer is implemented by expressions compiled with named
// parameters. The names fix the positional binding of Formula.Params.
type ParameterNamer interface {
	ParameterNames() []string
}
