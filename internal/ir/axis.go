package ir

import (
	"math"
	"sort"
)

// Axis is a named, strictly increasing sequence of bin edges.
//
// Bin i covers [edges[i], edges[i+1]). The last bin is closed on both ends.
// Coordinates outside the edges are absorbed by the first or last bin.
type Axis struct {
	name  string
	edges []float64
}

// NewAxis validates and copies edges.
//
// Returns SHAPE_MISMATCH if there are fewer than two edges, if any edge is
// NaN or infinite, or if edges are not strictly increasing.
func NewAxis(name string, edges []float64) (Axis, error) {
	if len(edges) < 2 {
		return Axis{}, Errorf(CodeShapeMismatch, "axis %q needs at least 2 edges, got %d", name, len(edges))
	}
	for i, e := range edges {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return Axis{}, Errorf(CodeShapeMismatch, "axis %q edge %d is not finite", name, i)
		}
		if i > 0 && !(e > edges[i-1]) {
			return Axis{}, Errorf(CodeShapeMismatch, "axis %q edges not strictly increasing at %d (%g <= %g)",
				name, i, e, edges[i-1])
		}
	}
	return Axis{name: NormalizeName(name), edges: append([]float64(nil), edges...)}, nil
}

// MustAxis is like NewAxis but panics on error.
// Use only in tests or when edges are known to be valid.
func MustAxis(name string, edges ...float64) Axis {
	a, err := NewAxis(name, edges)
	if err != nil {
		panic(err)
	}
	return a
}

// Name returns the axis name (e.g. "JetEta").
func (a Axis) Name() string { return a.name }

// Edges returns a copy of the bin edges.
func (a Axis) Edges() []float64 { return append([]float64(nil), a.edges...) }

// NumBins returns len(edges)-1.
func (a Axis) NumBins() int { return len(a.edges) - 1 }

// Bounds returns the low and high edge of bin i.
func (a Axis) Bounds(i int) (lo, hi float64) { return a.edges[i], a.edges[i+1] }

// Center returns the midpoint of bin i.
func (a Axis) Center(i int) float64 { return 0.5 * (a.edges[i] + a.edges[i+1]) }

// BinIndex returns the bin containing x.
//
// x below the first edge maps to bin 0, x at or above the last edge maps to
// the last bin. NaN maps to bin 0.
func (a Axis) BinIndex(x float64) int {
	bin, _ := a.Locate(x)
	return bin
}

// Locate is BinIndex that also reports whether x was clamped into range.
// x equal to the last edge belongs to the closed last bin and is not clamped.
func (a Axis) Locate(x float64) (bin int, clamped bool) {
	n := len(a.edges) - 1
	if !(x >= a.edges[0]) {
		return 0, true
	}
	if x >= a.edges[n] {
		return n - 1, x > a.edges[n]
	}
	i := sort.SearchFloat64s(a.edges, x)
	if a.edges[i] == x {
		return i, false
	}
	return i - 1, false
}
