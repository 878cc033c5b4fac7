package loader

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/corrlookup/internal/ir"
)

// histogramFile is the YAML histogram container.
//
//	histograms:
//	  - name: ele_sf
//	    axes:
//	      - {name: eta, edges: [-2.5, 0, 2.5]}
//	      - {name: pt, edges: [20, 50, 500]}
//	    values: [0.97, 0.98, 0.99, 1.0]   # row-major, last axis fastest
//	    errors: [0.01, 0.01, 0.02, 0.02]  # optional
type histogramFile struct {
	Histograms []histogram `yaml:"histograms"`
}

type histogram struct {
	Name   string          `yaml:"name"`
	Axes   []histogramAxis `yaml:"axes"`
	Values []float64       `yaml:"values"`
	Errors []float64       `yaml:"errors,omitempty"`
	Fill   float64         `yaml:"fill,omitempty"`
}

type histogramAxis struct {
	Name  string    `yaml:"name"`
	Edges []float64 `yaml:"edges"`
}

// errorSuffix names the companion object holding per-bin uncertainties.
const errorSuffix = "_error"

// parseHistograms yields one object per histogram and one <name>_error
// object for histograms that carry errors.
func parseHistograms(data []byte) ([]ir.Object, error) {
	var f histogramFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &ir.Error{Code: ir.CodeParse, Message: "invalid histogram YAML", Err: err}
	}
	if len(f.Histograms) == 0 {
		return nil, ir.Errorf(ir.CodeParse, "no histograms")
	}

	var objs []ir.Object
	for i, h := range f.Histograms {
		if h.Name == "" {
			return nil, ir.Errorf(ir.CodeParse, "histogram %d has no name", i)
		}
		if len(h.Axes) == 0 {
			return nil, ir.Errorf(ir.CodeShapeMismatch, "histogram has no axes").WithKey(h.Name)
		}
		axes := make([]ir.Axis, len(h.Axes))
		for d, a := range h.Axes {
			name := a.Name
			if name == "" {
				name = fmt.Sprintf("axis%d", d)
			}
			ax, err := ir.NewAxis(name, a.Edges)
			if err != nil {
				return nil, keyed(err, h.Name)
			}
			axes[d] = ax
		}

		values, err := histogramTable(axes, h.Values, h.Fill)
		if err != nil {
			return nil, keyed(err, h.Name)
		}
		objs = append(objs, ir.Object{Name: h.Name, Table: values})

		if len(h.Errors) > 0 {
			errs, err := histogramTable(axes, h.Errors, 0)
			if err != nil {
				return nil, keyed(err, h.Name+errorSuffix)
			}
			objs = append(objs, ir.Object{Name: h.Name + errorSuffix, Table: errs})
		}
	}
	return objs, nil
}

func histogramTable(axes []ir.Axis, values []float64, fill float64) (*ir.Table, error) {
	cells := make([]ir.Cell, len(values))
	for i, v := range values {
		cells[i] = ir.Scalar(v)
	}
	return ir.NewTable(axes, cells, ir.WithFill(fill))
}

// keyed names key on err unless a deeper key is already set.
func keyed(err error, key string) error {
	var e *ir.Error
	if errors.As(err, &e) && e.Key == "" {
		return e.WithKey(key)
	}
	return err
}
