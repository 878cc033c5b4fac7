// Package ragged provides variable-length-per-group numeric arrays.
//
// An Array stores all groups in one flat content slice plus an offsets
// slice, the same layout columnar event formats use for per-event object
// collections (jets, electrons). Each element is a fixed-width vector of
// float64: width 1 for plain columns, width k for variant results such as
// {up, down} pairs.
//
// Arrays are immutable once built; accessors that return slices document
// whether the slice aliases internal storage.
package ragged

import (
	"encoding/json"

	"github.com/roach88/corrlookup/internal/ir"
)

// Array is a sequence of groups of fixed-width elements.
type Array struct {
	offsets []int
	content []float64
	width   int
}

// New builds an Array from element offsets (len = groups+1, starting at 0,
// non-decreasing) and flat content of len offsets[last]*width.
//
// Returns SHAPE_MISMATCH if offsets, content and width disagree.
func New(offsets []int, content []float64, width int) (Array, error) {
	if width < 1 {
		return Array{}, ir.Errorf(ir.CodeShapeMismatch, "width must be positive, got %d", width)
	}
	if len(offsets) == 0 {
		if len(content) != 0 {
			return Array{}, ir.Errorf(ir.CodeShapeMismatch, "content without offsets")
		}
		return Array{offsets: []int{0}, width: width}, nil
	}
	if offsets[0] != 0 {
		return Array{}, ir.Errorf(ir.CodeShapeMismatch, "offsets must start at 0, got %d", offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return Array{}, ir.Errorf(ir.CodeShapeMismatch, "offsets decrease at group %d", i-1)
		}
	}
	if n := offsets[len(offsets)-1] * width; len(content) != n {
		return Array{}, ir.Errorf(ir.CodeShapeMismatch, "content has %d values, offsets require %d", len(content), n)
	}
	return Array{offsets: offsets, content: content, width: width}, nil
}

// FromCounts builds a width-1 Array from per-group element counts.
func FromCounts(counts []int, content []float64) (Array, error) {
	offsets := make([]int, len(counts)+1)
	for i, c := range counts {
		if c < 0 {
			return Array{}, ir.Errorf(ir.CodeShapeMismatch, "group %d has negative count %d", i, c)
		}
		offsets[i+1] = offsets[i] + c
	}
	return New(offsets, content, 1)
}

// FromGroups copies nested groups into a width-1 Array.
func FromGroups(groups [][]float64) Array {
	offsets := make([]int, len(groups)+1)
	total := 0
	for i, g := range groups {
		total += len(g)
		offsets[i+1] = total
	}
	content := make([]float64, 0, total)
	for _, g := range groups {
		content = append(content, g...)
	}
	return Array{offsets: offsets, content: content, width: 1}
}

// Len returns the number of groups.
func (a Array) Len() int {
	if len(a.offsets) == 0 {
		return 0
	}
	return len(a.offsets) - 1
}

// Width returns the number of values per element.
func (a Array) Width() int {
	if a.width == 0 {
		return 1
	}
	return a.width
}

// NumElements returns the total number of elements across all groups.
func (a Array) NumElements() int {
	if len(a.offsets) == 0 {
		return 0
	}
	return a.offsets[len(a.offsets)-1]
}

// Offsets returns a copy of the element offsets.
func (a Array) Offsets() []int {
	if len(a.offsets) == 0 {
		return []int{0}
	}
	return append([]int(nil), a.offsets...)
}

// Counts returns the number of elements in each group.
func (a Array) Counts() []int {
	counts := make([]int, a.Len())
	for i := range counts {
		counts[i] = a.offsets[i+1] - a.offsets[i]
	}
	return counts
}

// Flat returns the flat content. The slice aliases internal storage and
// must not be modified.
func (a Array) Flat() []float64 { return a.content }

// Group returns the flat values of group i (count*width values).
// The slice aliases internal storage and must not be modified.
func (a Array) Group(i int) []float64 {
	w := a.Width()
	return a.content[a.offsets[i]*w : a.offsets[i+1]*w]
}

// Element returns the width values of element j in group i.
// The slice aliases internal storage and must not be modified.
func (a Array) Element(i, j int) []float64 {
	w := a.Width()
	k := (a.offsets[i] + j) * w
	return a.content[k : k+w]
}

// SameStructure reports whether a and b have identical group offsets.
func (a Array) SameStructure(b Array) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.offsets[i+1] != b.offsets[i+1] {
			return false
		}
	}
	return true
}

// WithContent returns an Array with a's structure and new content.
func (a Array) WithContent(content []float64, width int) (Array, error) {
	return New(a.Offsets(), content, width)
}

// Branch selects variant k of every element, returning a width-1 Array.
// Returns DIMENSION_MISMATCH if k is out of range.
func (a Array) Branch(k int) (Array, error) {
	w := a.Width()
	if k < 0 || k >= w {
		return Array{}, ir.Errorf(ir.CodeDimensionMismatch, "variant %d out of range for width %d", k, w)
	}
	out := make([]float64, a.NumElements())
	for i := range out {
		out[i] = a.content[i*w+k]
	}
	return Array{offsets: a.Offsets(), content: out, width: 1}, nil
}

// ToGroups copies the content into nested groups of flat values.
func (a Array) ToGroups() [][]float64 {
	groups := make([][]float64, a.Len())
	for i := range groups {
		groups[i] = append([]float64{}, a.Group(i)...)
	}
	return groups
}

// Nested returns the array as nested slices: [][]float64 for width 1,
// [][][]float64 otherwise.
func (a Array) Nested() any {
	if a.Width() == 1 {
		return a.ToGroups()
	}
	out := make([][][]float64, a.Len())
	for i := range out {
		n := a.offsets[i+1] - a.offsets[i]
		out[i] = make([][]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = append([]float64(nil), a.Element(i, j)...)
		}
	}
	return out
}

// MarshalJSON encodes the nested form.
func (a Array) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Nested())
}
