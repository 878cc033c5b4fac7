package lookup

import (
	"log/slog"
	"math/bits"
	"sync"

	"github.com/roach88/corrlookup/internal/ir"
	"github.com/roach88/corrlookup/internal/ragged"
)

// DefaultMinChunk is the smallest number of elements handed to one worker.
// Smaller batches run on the calling goroutine.
const DefaultMinChunk = 4096

// Engine resolves lookups. The zero value is not usable; call New.
type Engine struct {
	workers  int
	minChunk int
	metrics  *Metrics
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets how many goroutines a batch may use.
//
// Default: 1 (single-threaded). Values below 1 are treated as 1.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = max(n, 1)
	}
}

// WithMinChunk sets the minimum elements per worker.
// Use WithMinChunk(1) in tests to force splitting of small batches.
func WithMinChunk(n int) Option {
	return func(e *Engine) {
		e.minChunk = max(n, 1)
	}
}

// WithMetrics records lookup counters into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		workers:  1,
		minChunk: DefaultMinChunk,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve looks up one entry.
//
// coords holds one value per table axis and selects the cell. eval holds
// the evaluation variables for formula cells and is ignored otherwise.
// The result has t.Width() values.
//
// Returns DIMENSION_MISMATCH if len(coords) differs from the axis count or
// a formula cell reads more variables than eval provides.
func (e *Engine) Resolve(t *ir.Table, coords []float64, eval []float64) ([]float64, error) {
	off, clamped, err := t.Locate(coords)
	if err != nil {
		e.metrics.recordError(err)
		return nil, err
	}
	out := make([]float64, t.Width())
	var scratch []float64
	if err := resolveCell(t, off, eval, out, &scratch); err != nil {
		e.metrics.recordError(err)
		return nil, err
	}
	e.metrics.recordEntries(t, 1, clampCounts(t, clamped))
	return out, nil
}

// ResolveBatch applies Resolve element-wise over ragged inputs.
//
// binning holds one Array per table axis; eval holds the evaluation
// variables. Every input must share the structure of binning[0] and have
// width 1. The result has the same offsets and width t.Width().
//
// The whole batch fails together: on error no Array is returned.
func (e *Engine) ResolveBatch(t *ir.Table, binning []ragged.Array, eval []ragged.Array) (ragged.Array, error) {
	if err := checkBatch(t, binning, eval); err != nil {
		e.metrics.recordError(err)
		return ragged.Array{}, err
	}

	n := binning[0].NumElements()
	w := t.Width()
	out := make([]float64, n*w)

	chunks := e.split(n)
	results := make([]chunkResult, len(chunks))
	if len(chunks) == 1 {
		results[0] = resolveRange(t, binning, eval, out, chunks[0][0], chunks[0][1])
	} else {
		var wg sync.WaitGroup
		for i, c := range chunks {
			wg.Add(1)
			go func(i, lo, hi int) {
				defer wg.Done()
				results[i] = resolveRange(t, binning, eval, out, lo, hi)
			}(i, c[0], c[1])
		}
		wg.Wait()
	}

	clamped := make([]int, t.Dims())
	for _, r := range results {
		if r.err != nil {
			e.metrics.recordError(r.err)
			return ragged.Array{}, r.err
		}
		for d, c := range r.clamped {
			clamped[d] += c
		}
	}
	e.metrics.recordEntries(t, n, clamped)

	e.logger.Debug("batch resolved",
		"groups", binning[0].Len(),
		"elements", n,
		"width", w,
		"chunks", len(chunks),
	)

	return binning[0].WithContent(out, w)
}

// split divides [0, n) into contiguous chunks of at least minChunk.
func (e *Engine) split(n int) [][2]int {
	parts := min(e.workers, max(n/e.minChunk, 1))
	chunks := make([][2]int, parts)
	size := n / parts
	lo := 0
	for i := range chunks {
		hi := lo + size
		if i == parts-1 {
			hi = n
		}
		chunks[i] = [2]int{lo, hi}
		lo = hi
	}
	return chunks
}

func checkBatch(t *ir.Table, binning []ragged.Array, eval []ragged.Array) error {
	if len(binning) != t.Dims() {
		return ir.Errorf(ir.CodeDimensionMismatch, "got %d binning columns for %d axes", len(binning), t.Dims())
	}
	if t.Kind() == ir.KindFormula && len(eval) < t.EvalVars() {
		return ir.Errorf(ir.CodeDimensionMismatch, "got %d evaluation columns, formula reads %d", len(eval), t.EvalVars())
	}
	ref := binning[0]
	for i, a := range append(append([]ragged.Array(nil), binning...), eval...) {
		if a.Width() != 1 {
			return ir.Errorf(ir.CodeDimensionMismatch, "input column %d has width %d, expected 1", i, a.Width())
		}
		if !a.SameStructure(ref) {
			return ir.Errorf(ir.CodeDimensionMismatch, "input column %d does not share the structure of column 0", i)
		}
	}
	return nil
}

type chunkResult struct {
	clamped []int
	err     error
}

// resolveRange fills out for elements [lo, hi). Each call owns its slice
// of out and its own scratch buffers.
func resolveRange(t *ir.Table, binning, eval []ragged.Array, out []float64, lo, hi int) chunkResult {
	w := t.Width()
	coords := make([]float64, len(binning))
	vars := make([]float64, len(eval))
	var scratch []float64
	res := chunkResult{clamped: make([]int, t.Dims())}

	for i := lo; i < hi; i++ {
		for d, a := range binning {
			coords[d] = a.Flat()[i]
		}
		for d, a := range eval {
			vars[d] = a.Flat()[i]
		}
		off, clamped, err := t.Locate(coords)
		if err != nil {
			res.err = err
			return res
		}
		for clamped != 0 {
			d := bits.TrailingZeros64(clamped)
			res.clamped[d]++
			clamped &= clamped - 1
		}
		if err := resolveCell(t, off, vars, out[i*w:(i+1)*w], &scratch); err != nil {
			res.err = err
			return res
		}
	}
	return res
}

// resolveCell writes the payload at off into out (len t.Width()).
func resolveCell(t *ir.Table, off int, eval []float64, out []float64, scratch *[]float64) error {
	switch c := t.At(off).(type) {
	case ir.Scalar:
		out[0] = float64(c)
	case ir.Variants:
		copy(out, c)
	case ir.Formula:
		if len(eval) < c.Expr.Vars() {
			return ir.Errorf(ir.CodeDimensionMismatch, "formula %q reads %d variables, got %d",
				c.Expr.String(), c.Expr.Vars(), len(eval))
		}
		vars := eval
		if len(c.Ranges) > 0 {
			*scratch = append((*scratch)[:0], eval...)
			vars = *scratch
			for i := 0; i < len(vars) && i < len(c.Ranges); i++ {
				vars[i] = min(max(vars[i], c.Ranges[i][0]), c.Ranges[i][1])
			}
		}
		out[0] = c.Expr.EvaluateN(c.Params, vars...)
	case ir.Missing:
		for i := range out {
			out[i] = t.Fill()
		}
	}
	return nil
}

func clampCounts(t *ir.Table, mask uint64) []int {
	counts := make([]int, t.Dims())
	for d := range counts {
		if d < 64 && mask&(1<<d) != 0 {
			counts[d] = 1
		}
	}
	return counts
}
