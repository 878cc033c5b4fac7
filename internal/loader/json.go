package loader

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/roach88/corrlookup/internal/ir"
)

//go:embed ratio.schema.json
var ratioSchemaJSON string

var ratioSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(ratioSchemaJSON))
})

// parseRatioJSON reads nested ratio tables:
//
//	{"<name>": {"<binning>": {"eta:[0.0,1.5]": {"pt:[20,50]": {"value": 1.01, "error": 0.02}}}}}
//
// Each nesting level is one axis; every key of a level names the same
// variable. Each (name, binning) pair yields two scalar tables keyed
// <name>/<binning>_value and <name>/<binning>_error.
func parseRatioJSON(data []byte) ([]ir.Object, error) {
	schema, err := ratioSchema()
	if err != nil {
		return nil, fmt.Errorf("compile ratio schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &ir.Error{Code: ir.CodeParse, Message: "invalid JSON", Err: err}
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return nil, ir.Errorf(ir.CodeParse, "ratio JSON does not match schema: %s", strings.Join(msgs, "; "))
	}

	var doc map[string]map[string]map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ir.Error{Code: ir.CodeParse, Message: "invalid JSON", Err: err}
	}

	var objs []ir.Object
	for _, name := range sortedKeys(doc) {
		for _, binning := range sortedKeys(doc[name]) {
			key := name + "/" + binning
			w := &ratioWalker{}
			if err := w.walk(doc[name][binning], 0, nil, nil); err != nil {
				return nil, keyed(err, key)
			}
			values, err := w.values.build()
			if err != nil {
				return nil, keyed(err, key+"_value")
			}
			errs, err := w.errors.build()
			if err != nil {
				return nil, keyed(err, key+"_error")
			}
			objs = append(objs,
				ir.Object{Name: key + "_value", Table: values},
				ir.Object{Name: key + "_error", Table: errs},
			)
		}
	}
	return objs, nil
}

type ratioWalker struct {
	names          []string
	depth          int
	values, errors *gridBuilder
}

func (w *ratioWalker) walk(node map[string]any, depth int, lo, hi []float64) error {
	if _, leaf := node["value"]; leaf {
		if w.values == nil {
			w.depth = depth
			w.values = newGrid(w.names...)
			w.errors = newGrid(w.names...)
		}
		if depth != w.depth {
			return ir.Errorf(ir.CodeShapeMismatch, "leaves at depth %d and %d", w.depth, depth)
		}
		v, _ := node["value"].(float64)
		e, _ := node["error"].(float64)
		if err := w.values.add(lo, hi, ir.Scalar(v)); err != nil {
			return err
		}
		return w.errors.add(lo, hi, ir.Scalar(e))
	}

	for _, k := range sortedKeys(node) {
		name, blo, bhi, err := parseBinKey(k)
		if err != nil {
			return err
		}
		switch {
		case depth == len(w.names):
			if w.values != nil {
				return ir.Errorf(ir.CodeShapeMismatch, "leaves at depth %d and deeper", w.depth)
			}
			w.names = append(w.names, name)
		case w.names[depth] != name:
			return ir.Errorf(ir.CodeShapeMismatch, "level %d mixes variables %q and %q", depth, w.names[depth], name)
		}
		child, ok := node[k].(map[string]any)
		if !ok {
			return ir.Errorf(ir.CodeParse, "bin %q is not an object", k)
		}
		if err := w.walk(child, depth+1, append(lo[:depth:depth], blo), append(hi[:depth:depth], bhi)); err != nil {
			return err
		}
	}
	return nil
}

// parseBinKey splits "eta:[0.0,1.5]".
func parseBinKey(k string) (string, float64, float64, error) {
	name, rest, ok := strings.Cut(k, ":")
	rest = strings.TrimSpace(rest)
	if !ok || !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") {
		return "", 0, 0, ir.Errorf(ir.CodeParse, "bin key %q is not <var>:[lo,hi]", k)
	}
	bounds, err := parseFloats(strings.Split(rest[1:len(rest)-1], ","))
	if err != nil || len(bounds) != 2 {
		return "", 0, 0, ir.Errorf(ir.CodeParse, "bin key %q is not <var>:[lo,hi]", k)
	}
	return name, bounds[0], bounds[1], nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
