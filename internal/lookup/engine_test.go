package lookup

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/corrlookup/internal/formula"
	"github.com/roach88/corrlookup/internal/ir"
	"github.com/roach88/corrlookup/internal/ragged"
	"github.com/roach88/corrlookup/internal/testutil"
)

const l2Relative = "max(0.0001,p0+((x-p1)*(p2+((x-p1)*(p3+((x-p1)*p4))))))"

var jetPtEdges = []float64{20, 30, 50, 100, 200, 500, 1000}

func newTestEngine(opts ...Option) *Engine {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(opts...)
}

// jecTable is binned in JetEta x JetPt and evaluates the L2 formula at JetPt.
func jecTable(t *testing.T) *ir.Table {
	t.Helper()
	expr := formula.MustCompile(l2Relative, "p0", "p1", "p2", "p3", "p4")
	eta := ir.MustAxis("JetEta", -2.4, 2.4)
	pt := ir.MustAxis("JetPt", jetPtEdges...)

	cells := make([]ir.Cell, pt.NumBins())
	for i := range cells {
		cells[i] = ir.Formula{
			Expr:   expr,
			Params: []float64{8.95328, 7, 8.9532766, 2.638647259, 7.816547526 + float64(i)},
		}
	}
	tab, err := ir.NewTable([]ir.Axis{eta, pt}, cells)
	require.NoError(t, err)
	return tab
}

func uncTable(t *testing.T) *ir.Table {
	t.Helper()
	eta := ir.MustAxis("JetEta", -2.4, 0, 2.4)
	return ir.MustTable([]ir.Axis{eta}, []ir.Cell{
		ir.Variants{0.03, 0.02},
		ir.Variants{0.05, 0.04},
	})
}

func TestResolve_Scalar(t *testing.T) {
	tab := ir.MustTable([]ir.Axis{ir.MustAxis("eta", -2.5, 0, 2.5)}, []ir.Cell{ir.Scalar(0.97), ir.Scalar(0.99)})
	e := newTestEngine()

	got, err := e.Resolve(tab, []float64{1.2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.99}, got)
}

func TestResolve_VariantsOrder(t *testing.T) {
	e := newTestEngine()

	got, err := e.Resolve(uncTable(t), []float64{1.0}, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.05, got[0], "element 0 is up")
	assert.Equal(t, 0.04, got[1], "element 1 is down")
}

func TestResolve_FormulaScenario(t *testing.T) {
	tab := jecTable(t)
	e := newTestEngine()
	expr := formula.MustCompile(l2Relative, "p0", "p1", "p2", "p3", "p4")
	want := expr.Evaluate([]float64{8.95328, 7, 8.9532766, 2.638647259, 7.816547526}, 25)

	got, err := e.Resolve(tab, []float64{1.0, 25}, []float64{25})
	require.NoError(t, err)
	assert.Equal(t, []float64{want}, got)

	clamped, err := e.Resolve(tab, []float64{3.0, 25}, []float64{25})
	require.NoError(t, err)
	assert.Equal(t, got, clamped, "eta=3.0 clamps into eta bin 0")
}

func TestResolve_FormulaRangesClamp(t *testing.T) {
	expr := formula.MustCompile("[0]*x")
	tab := ir.MustTable([]ir.Axis{ir.MustAxis("JetEta", 0, 5)}, []ir.Cell{
		ir.Formula{Expr: expr, Params: []float64{2}, Ranges: [][2]float64{{30, 100}}},
	})
	e := newTestEngine()

	low, err := e.Resolve(tab, []float64{1}, []float64{10})
	require.NoError(t, err)
	assert.Equal(t, []float64{60}, low)

	mid, err := e.Resolve(tab, []float64{1}, []float64{50})
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, mid)

	high, err := e.Resolve(tab, []float64{1}, []float64{500})
	require.NoError(t, err)
	assert.Equal(t, []float64{200}, high)
}

func TestResolve_Missing(t *testing.T) {
	tab := ir.MustTable([]ir.Axis{ir.MustAxis("x", 0, 1, 2)}, []ir.Cell{ir.Scalar(1), ir.Missing{}}, ir.WithFill(-1))
	e := newTestEngine()

	got, err := e.Resolve(tab, []float64{1.5}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1}, got)
}

func TestResolve_DimensionMismatch(t *testing.T) {
	e := newTestEngine()

	_, err := e.Resolve(jecTable(t), []float64{1.0}, []float64{25})
	assert.True(t, ir.IsCode(err, ir.CodeDimensionMismatch))

	_, err = e.Resolve(jecTable(t), []float64{1.0, 25}, nil)
	assert.True(t, ir.IsCode(err, ir.CodeDimensionMismatch), "formula needs its evaluation variable")
}

func TestResolve_DivisionByZeroPropagates(t *testing.T) {
	tab := ir.MustTable([]ir.Axis{ir.MustAxis("x", 0, 1)}, []ir.Cell{
		ir.Formula{Expr: formula.MustCompile("1/x")},
	})
	got, err := newTestEngine().Resolve(tab, []float64{0.5}, []float64{0})
	require.NoError(t, err)
	assert.True(t, math.IsInf(got[0], 1))
}

func TestResolveBatch_ShapePreserved(t *testing.T) {
	tab := jecTable(t)
	e := newTestEngine()

	eta := ragged.FromGroups([][]float64{{}, {0.5}, {-1.0, 3.1}})
	pt := ragged.FromGroups([][]float64{{}, {25}, {60, 1200}})

	out, err := e.ResolveBatch(tab, []ragged.Array{eta, pt}, []ragged.Array{pt})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, out.Counts())
	assert.Equal(t, 1, out.Width())

	for i, g := range pt.ToGroups() {
		for j, x := range g {
			want, err := e.Resolve(tab, []float64{eta.Element(i, j)[0], x}, []float64{x})
			require.NoError(t, err)
			assert.Equal(t, want, out.Element(i, j))
		}
	}
}

func TestResolveBatch_EmptyOuter(t *testing.T) {
	tab := uncTable(t)
	out, err := newTestEngine().ResolveBatch(tab, []ragged.Array{ragged.FromGroups(nil)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, 2, out.Width())
}

func TestResolveBatch_Variants(t *testing.T) {
	eta := ragged.FromGroups([][]float64{{-1, 1}, {}, {2}})
	out, err := newTestEngine().ResolveBatch(uncTable(t), []ragged.Array{eta}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Width())
	assert.Equal(t, []int{2, 0, 1}, out.Counts())

	up, err := out.Branch(0)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.03, 0.05}, {}, {0.05}}, up.ToGroups())

	down, err := out.Branch(1)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.02, 0.04}, {}, {0.04}}, down.ToGroups())
}

func TestResolveBatch_StructureMismatch(t *testing.T) {
	tab := jecTable(t)
	eta := ragged.FromGroups([][]float64{{1}, {2}})
	pt := ragged.FromGroups([][]float64{{25, 30}, {}})

	_, err := newTestEngine().ResolveBatch(tab, []ragged.Array{eta, pt}, []ragged.Array{pt})
	require.Error(t, err)
	assert.True(t, ir.IsCode(err, ir.CodeDimensionMismatch))
}

func TestResolveBatch_FailsAtomically(t *testing.T) {
	tab := jecTable(t)
	eta := ragged.FromGroups([][]float64{{1}, {2}})
	pt := ragged.FromGroups([][]float64{{25}, {40}})

	out, err := newTestEngine().ResolveBatch(tab, []ragged.Array{eta, pt}, nil)
	require.Error(t, err)
	assert.Equal(t, 0, out.Len(), "no partial result")
}

func TestResolveBatch_WorkersMatchSerial(t *testing.T) {
	tab := jecTable(t)

	groups := make([][]float64, 200)
	etas := make([][]float64, 200)
	for i := range groups {
		n := i % 5
		for j := 0; j < n; j++ {
			groups[i] = append(groups[i], 15+float64((i*37+j*11)%1100))
			etas[i] = append(etas[i], -3+float64((i*13+j*7)%60)/10)
		}
	}
	pt := ragged.FromGroups(groups)
	eta := ragged.FromGroups(etas)

	serial, err := newTestEngine().ResolveBatch(tab, []ragged.Array{eta, pt}, []ragged.Array{pt})
	require.NoError(t, err)

	parallel, err := newTestEngine(WithWorkers(8), WithMinChunk(1)).ResolveBatch(tab, []ragged.Array{eta, pt}, []ragged.Array{pt})
	require.NoError(t, err)

	assert.Equal(t, serial.Offsets(), parallel.Offsets())
	assert.Equal(t, serial.Flat(), parallel.Flat())
}

func TestResolveBatch_GeneratedEvents(t *testing.T) {
	tab := jecTable(t)
	gen := testutil.NewEventGenerator(2016, 8)
	eta, pt := gen.Jets(5000, 3, 15, 1500)

	serial, err := newTestEngine().ResolveBatch(tab, []ragged.Array{eta, pt}, []ragged.Array{pt})
	require.NoError(t, err)
	assert.Equal(t, eta.Offsets(), serial.Offsets())

	parallel, err := newTestEngine(WithWorkers(4), WithMinChunk(256)).ResolveBatch(tab, []ragged.Array{eta, pt}, []ragged.Array{pt})
	require.NoError(t, err)
	assert.Equal(t, serial.Flat(), parallel.Flat())

	// spot-check against single lookups
	for _, i := range []int{0, 17, 4999} {
		for j := range eta.Group(i) {
			want, err := newTestEngine().Resolve(tab, []float64{eta.Group(i)[j], pt.Group(i)[j]}, []float64{pt.Group(i)[j]})
			require.NoError(t, err)
			assert.Equal(t, want, serial.Element(i, j))
		}
	}
}

func TestSplit(t *testing.T) {
	e := New(WithWorkers(4), WithMinChunk(10))

	assert.Equal(t, [][2]int{{0, 5}}, e.split(5))
	assert.Equal(t, [][2]int{{0, 0}}, e.split(0))

	chunks := e.split(45)
	require.Len(t, chunks, 4)
	assert.Equal(t, 0, chunks[0][0])
	assert.Equal(t, 45, chunks[3][1])
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1][1], chunks[i][0])
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	e := newTestEngine(WithMetrics(m))
	eta := ragged.FromGroups([][]float64{{-3, 0.5}, {9}})

	_, err = e.ResolveBatch(uncTable(t), []ragged.Array{eta}, nil)
	require.NoError(t, err)
	_, err = e.Resolve(uncTable(t), []float64{1, 2}, nil)
	require.Error(t, err)

	assert.Equal(t, 3.0, promtest.ToFloat64(m.entries.WithLabelValues("variants")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.clamped.WithLabelValues("JetEta")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.errors.WithLabelValues("DIMENSION_MISMATCH")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "second registration collides")
}

func TestNewMetrics_NilRegistry(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	// nil metrics must be safe to use
	_, err = newTestEngine(WithMetrics(m)).Resolve(uncTable(t), []float64{0}, nil)
	require.NoError(t, err)
}
