package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/corrlookup/internal/formula"
	"github.com/roach88/corrlookup/internal/ir"
)

// tableJSON is the stored form of an ir.Table.
//
// Formula cells reference an entry of Formulas by index so that a table
// with thousands of bins stores each expression once.
type tableJSON struct {
	Axes     []axisJSON    `json:"axes"`
	Cells    []cellJSON    `json:"cells"`
	Formulas []formulaJSON `json:"formulas,omitempty"`
	Fill     float64       `json:"fill"`
}

type axisJSON struct {
	Name  string    `json:"name"`
	Edges []float64 `json:"edges"`
}

// cellJSON sets exactly one of S, V, F or M.
type cellJSON struct {
	S *float64     `json:"s,omitempty"`
	V []float64    `json:"v,omitempty"`
	F *int         `json:"f,omitempty"`
	P []float64    `json:"p,omitempty"`
	R [][2]float64 `json:"r,omitempty"`
	M bool         `json:"m,omitempty"`
}

type formulaJSON struct {
	Expr  string   `json:"expr"`
	Names []string `json:"names,omitempty"`
}

// marshalTable encodes t as compact JSON TEXT for storage.
// Non-finite values cannot be encoded and return an error.
func marshalTable(t *ir.Table) (string, error) {
	out := tableJSON{Fill: t.Fill()}
	for _, a := range t.Axes() {
		out.Axes = append(out.Axes, axisJSON{Name: a.Name(), Edges: a.Edges()})
	}

	formulaIndex := make(map[string]int)
	for _, c := range t.Cells() {
		var cj cellJSON
		switch c := c.(type) {
		case ir.Scalar:
			v := float64(c)
			cj.S = &v
		case ir.Variants:
			cj.V = c
		case ir.Formula:
			fj := formulaJSON{Expr: c.Expr.String()}
			if n, ok := c.Expr.(ir.ParameterNamer); ok {
				fj.Names = n.ParameterNames()
			}
			key := fj.Expr + "\x00" + strings.Join(fj.Names, "\x00")
			idx, seen := formulaIndex[key]
			if !seen {
				idx = len(out.Formulas)
				formulaIndex[key] = idx
				out.Formulas = append(out.Formulas, fj)
			}
			cj.F = &idx
			cj.P = c.Params
			cj.R = c.Ranges
		case ir.Missing:
			cj.M = true
		}
		out.Cells = append(out.Cells, cj)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("marshal table: %w", err)
	}
	// Encoder adds a trailing newline
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalTable decodes a stored table, recompiling formulas via cache.
func unmarshalTable(data string, cache *formula.Cache) (*ir.Table, error) {
	var in tableJSON
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return nil, &ir.Error{Code: ir.CodeParse, Message: "unmarshal table", Err: err}
	}

	axes := make([]ir.Axis, len(in.Axes))
	for i, a := range in.Axes {
		ax, err := ir.NewAxis(a.Name, a.Edges)
		if err != nil {
			return nil, err
		}
		axes[i] = ax
	}

	exprs := make([]*formula.Expression, len(in.Formulas))
	for i, f := range in.Formulas {
		e, err := cache.Compile(f.Expr, f.Names)
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}

	cells := make([]ir.Cell, len(in.Cells))
	for i, c := range in.Cells {
		switch {
		case c.S != nil:
			cells[i] = ir.Scalar(*c.S)
		case c.V != nil:
			cells[i] = ir.Variants(c.V)
		case c.F != nil:
			if *c.F < 0 || *c.F >= len(exprs) {
				return nil, ir.Errorf(ir.CodeShapeMismatch, "cell %d references formula %d of %d", i, *c.F, len(exprs))
			}
			cells[i] = ir.Formula{Expr: exprs[*c.F], Params: c.P, Ranges: c.R}
		case c.M:
			cells[i] = ir.Missing{}
		default:
			return nil, ir.Errorf(ir.CodeShapeMismatch, "cell %d has no payload", i)
		}
	}

	return ir.NewTable(axes, cells, ir.WithFill(in.Fill))
}
