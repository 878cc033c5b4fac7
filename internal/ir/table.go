package ir

import "fmt"

// Kind tags a table with its call contract.
type Kind int

const (
	// KindValue tables return one stored value per lookup.
	KindValue Kind = iota
	// KindVariants tables return Width() alternatives per lookup.
	KindVariants
	// KindFormula tables evaluate a formula at EvalVars() extra variables.
	KindFormula
)

// String returns the kind name used in CLI output and archives.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindVariants:
		return "variants"
	case KindFormula:
		return "formula"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "value":
		return KindValue, nil
	case "variants":
		return KindVariants, nil
	case "formula":
		return KindFormula, nil
	}
	return 0, Errorf(CodeParse, "unknown table kind %q", s)
}

// Table is an immutable N-dimensional binned lookup table.
type Table struct {
	axes     []Axis
	cells    []Cell
	strides  []int
	kind     Kind
	width    int
	evalVars int
	fill     float64
}

// TableOption configures a Table at construction.
type TableOption func(*Table)

// WithFill sets the value Missing cells resolve to. Default: 0.
func WithFill(v float64) TableOption {
	return func(t *Table) {
		t.fill = v
	}
}

// NewTable takes ownership of axes and cells and validates them.
//
// Returns SHAPE_MISMATCH if:
//   - there are no axes
//   - len(cells) differs from the product of the axis bin counts
//   - a cell is nil, or Variants cells disagree on width
//   - Variants cells are mixed with Scalar or Formula cells
//   - a Formula has no expression, wrong parameter count, or fewer
//     ranges than the variables its expression reads
func NewTable(axes []Axis, cells []Cell, opts ...TableOption) (*Table, error) {
	if len(axes) == 0 {
		return nil, Errorf(CodeShapeMismatch, "table needs at least one axis")
	}

	size := 1
	strides := make([]int, len(axes))
	for i := len(axes) - 1; i >= 0; i-- {
		if axes[i].NumBins() < 1 {
			return nil, Errorf(CodeShapeMismatch, "axis %d is not initialized", i)
		}
		strides[i] = size
		size *= axes[i].NumBins()
	}
	if len(cells) != size {
		return nil, Errorf(CodeShapeMismatch, "payload has %d cells, axes require %d", len(cells), size)
	}

	t := &Table{
		axes:    axes,
		cells:   cells,
		strides: strides,
		kind:    KindValue,
		width:   1,
	}

	variantWidth := 0
	hasPlain := false
	for i, c := range cells {
		switch c := c.(type) {
		case Scalar, Missing:
			hasPlain = hasPlain || isScalar(c)
		case Variants:
			if len(c) == 0 {
				return nil, Errorf(CodeShapeMismatch, "cell %d has empty variants", i)
			}
			if variantWidth != 0 && len(c) != variantWidth {
				return nil, Errorf(CodeShapeMismatch, "cell %d has %d variants, expected %d", i, len(c), variantWidth)
			}
			variantWidth = len(c)
		case Formula:
			if c.Expr == nil {
				return nil, Errorf(CodeShapeMismatch, "cell %d formula has no expression", i)
			}
			if len(c.Params) != c.Expr.Arity() {
				return nil, Errorf(CodeShapeMismatch, "cell %d has %d parameters, %q takes %d",
					i, len(c.Params), c.Expr.String(), c.Expr.Arity())
			}
			if len(c.Ranges) > 0 && len(c.Ranges) < c.Expr.Vars() {
				return nil, Errorf(CodeShapeMismatch, "cell %d has %d variable ranges, %q reads %d",
					i, len(c.Ranges), c.Expr.String(), c.Expr.Vars())
			}
			t.kind = KindFormula
			t.evalVars = max(t.evalVars, c.Expr.Vars(), len(c.Ranges))
		case nil:
			return nil, Errorf(CodeShapeMismatch, "cell %d is nil", i)
		default:
			return nil, Errorf(CodeShapeMismatch, "cell %d has unsupported type %T", i, c)
		}
	}

	if variantWidth > 0 {
		if hasPlain || t.kind == KindFormula {
			return nil, Errorf(CodeShapeMismatch, "variants cells cannot be mixed with scalar or formula cells")
		}
		t.kind = KindVariants
		t.width = variantWidth
	}

	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func isScalar(c Cell) bool {
	_, ok := c.(Scalar)
	return ok
}

// MustTable is like NewTable but panics on error.
// Use only in tests or when the payload is known to be valid.
func MustTable(axes []Axis, cells []Cell, opts ...TableOption) *Table {
	t, err := NewTable(axes, cells, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Dims returns the number of binning axes.
func (t *Table) Dims() int { return len(t.axes) }

// Axis returns axis i.
func (t *Table) Axis(i int) Axis { return t.axes[i] }

// Axes returns a copy of the axis list.
func (t *Table) Axes() []Axis { return append([]Axis(nil), t.axes...) }

// Len returns the number of cells.
func (t *Table) Len() int { return len(t.cells) }

// Kind returns the table's call contract tag.
func (t *Table) Kind() Kind { return t.kind }

// Width is the number of values one lookup yields (1 unless KindVariants).
func (t *Table) Width() int { return t.width }

// EvalVars is the number of evaluation variables formula cells read.
func (t *Table) EvalVars() int { return t.evalVars }

// Fill is the value Missing cells resolve to.
func (t *Table) Fill() float64 { return t.fill }

// Cells returns a copy of the payload in row-major order.
func (t *Table) Cells() []Cell { return append([]Cell(nil), t.cells...) }

// At returns the cell at flat offset off.
func (t *Table) At(off int) Cell { return t.cells[off] }

// Offset composes per-axis bin indices into a flat offset.
func (t *Table) Offset(idx ...int) (int, error) {
	if len(idx) != len(t.axes) {
		return 0, Errorf(CodeDimensionMismatch, "got %d indices for %d axes", len(idx), len(t.axes))
	}
	off := 0
	for i, b := range idx {
		if b < 0 || b >= t.axes[i].NumBins() {
			return 0, Errorf(CodeDimensionMismatch, "bin %d out of range on axis %q", b, t.axes[i].Name())
		}
		off += b * t.strides[i]
	}
	return off, nil
}

// Cell returns the cell at the given per-axis bin indices.
func (t *Table) Cell(idx ...int) (Cell, error) {
	off, err := t.Offset(idx...)
	if err != nil {
		return nil, err
	}
	return t.cells[off], nil
}

// Locate resolves one coordinate per axis to a flat offset.
// clamped reports, per axis bit, which coordinates were out of range.
func (t *Table) Locate(coords []float64) (off int, clamped uint64, err error) {
	if len(coords) != len(t.axes) {
		return 0, 0, Errorf(CodeDimensionMismatch, "got %d coordinates for %d axes", len(coords), len(t.axes))
	}
	for i, x := range coords {
		b, c := t.axes[i].Locate(x)
		off += b * t.strides[i]
		if c && i < 64 {
			clamped |= 1 << i
		}
	}
	return off, clamped, nil
}

// Lookup returns the payload of the bin containing coords.
func (t *Table) Lookup(coords ...float64) (Cell, error) {
	off, _, err := t.Locate(coords)
	if err != nil {
		return nil, err
	}
	return t.cells[off], nil
}

// Index decomposes a flat offset into per-axis bin indices.
func (t *Table) Index(off int) []int {
	idx := make([]int, len(t.axes))
	for i, s := range t.strides {
		idx[i] = off / s
		off %= s
	}
	return idx
}

// BinCenter returns the coordinates of the center of the cell at off.
func (t *Table) BinCenter(off int) []float64 {
	idx := t.Index(off)
	c := make([]float64, len(idx))
	for i, b := range idx {
		c[i] = t.axes[i].Center(b)
	}
	return c
}
