package loader

import (
	"slices"
	"sort"

	"github.com/roach88/corrlookup/internal/ir"
)

// box is one source row: a half-open region of the grid and its payload.
type box struct {
	lo, hi []float64
	cell   ir.Cell
}

// gridBuilder assembles a dense table from rows that each cover a box.
//
// Edges are the union of all row bounds per axis. A row spanning several
// union bins fills all of them; bins no row covers become ir.Missing.
// Overlapping rows are rejected.
type gridBuilder struct {
	names []string
	boxes []box
}

func newGrid(names ...string) *gridBuilder {
	return &gridBuilder{names: names}
}

func (g *gridBuilder) add(lo, hi []float64, cell ir.Cell) error {
	if len(lo) != len(g.names) || len(hi) != len(g.names) {
		return ir.Errorf(ir.CodeShapeMismatch, "row has %d bounds, grid has %d axes", len(lo), len(g.names))
	}
	for d := range lo {
		if !(lo[d] < hi[d]) {
			return ir.Errorf(ir.CodeShapeMismatch, "row bounds on %s are not increasing: [%g, %g]", g.names[d], lo[d], hi[d])
		}
	}
	g.boxes = append(g.boxes, box{lo: slices.Clone(lo), hi: slices.Clone(hi), cell: cell})
	return nil
}

func (g *gridBuilder) build(opts ...ir.TableOption) (*ir.Table, error) {
	if len(g.boxes) == 0 {
		return nil, ir.Errorf(ir.CodeShapeMismatch, "no rows")
	}

	dims := len(g.names)
	edges := make([][]float64, dims)
	axes := make([]ir.Axis, dims)
	for d := range dims {
		var e []float64
		for _, b := range g.boxes {
			e = append(e, b.lo[d], b.hi[d])
		}
		sort.Float64s(e)
		edges[d] = slices.Compact(e)

		a, err := ir.NewAxis(g.names[d], edges[d])
		if err != nil {
			return nil, err
		}
		axes[d] = a
	}

	strides := make([]int, dims)
	total := 1
	for d := dims - 1; d >= 0; d-- {
		strides[d] = total
		total *= len(edges[d]) - 1
	}

	cells := make([]ir.Cell, total)
	first := make([]int, dims)
	last := make([]int, dims)
	idx := make([]int, dims)
	for _, b := range g.boxes {
		for d := range dims {
			first[d] = sort.SearchFloat64s(edges[d], b.lo[d])
			last[d] = sort.SearchFloat64s(edges[d], b.hi[d])
		}
		copy(idx, first)
		for {
			off := 0
			for d, i := range idx {
				off += i * strides[d]
			}
			if cells[off] != nil {
				return nil, ir.Errorf(ir.CodeShapeMismatch, "rows overlap in bin %v", slices.Clone(idx))
			}
			cells[off] = b.cell

			// advance the odometer, last axis fastest
			d := dims - 1
			for ; d >= 0; d-- {
				idx[d]++
				if idx[d] < last[d] {
					break
				}
				idx[d] = first[d]
			}
			if d < 0 {
				break
			}
		}
	}

	for i, c := range cells {
		if c == nil {
			cells[i] = ir.Missing{}
		}
	}
	return ir.NewTable(axes, cells, opts...)
}
