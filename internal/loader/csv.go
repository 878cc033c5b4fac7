package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/corrlookup/internal/formula"
	"github.com/roach88/corrlookup/internal/ir"
)

// b-tag calibration columns after the tagger header.
const (
	colOperatingPoint = iota
	colMeasurement
	colSystematic
	colFlavor
	colEtaMin
	colEtaMax
	colPtMin
	colPtMax
	colDiscrMin
	colDiscrMax
	colFormula
	numBTagColumns
)

// btagAxes are the binning axes of every b-tag table.
var btagAxes = []string{"eta", "pt", "discr"}

// parseBTagCSV reads a b-tag calibration file.
//
// The first line is "<tagger>;<column names>". Every following row is
//
//	OperatingPoint, measurementType, sysType, jetFlavor,
//	etaMin, etaMax, ptMin, ptMax, discrMin, discrMax, "formula"
//
// Rows are grouped by (OperatingPoint, measurementType, sysType, jetFlavor)
// into one formula table keyed <tagger>_<op>_<meas>_<sys>_<flavor>, binned
// in eta, pt and discr. The formula variable x is pt, or the discriminant
// for reshaping rows (operating point 3 or "shape"); it is clamped into the
// row's range.
func parseBTagCSV(data []byte, cache *formula.Cache) ([]ir.Object, error) {
	tagger, body, lines, err := splitBTagHeader(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(body)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = numBTagColumns
	r.ReuseRecord = true

	var order []string
	grids := make(map[string]*gridBuilder)

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, atLine(perr.Err, fileLine(lines, perr.StartLine))
			}
			return nil, &ir.Error{Code: ir.CodeParse, Message: "invalid b-tag CSV row", Err: err}
		}
		row, _ := r.FieldPos(0)
		line := fileLine(lines, row)

		key := strings.Join([]string{
			tagger,
			strings.TrimSpace(rec[colOperatingPoint]),
			strings.TrimSpace(rec[colMeasurement]),
			strings.TrimSpace(rec[colSystematic]),
			strings.TrimSpace(rec[colFlavor]),
		}, "_")

		bounds, err := parseFloats(rec[colEtaMin : colDiscrMax+1])
		if err != nil {
			return nil, atLine(err, line).WithKey(key)
		}
		lo := []float64{bounds[0], bounds[2], bounds[4]}
		hi := []float64{bounds[1], bounds[3], bounds[5]}

		expr, err := cache.Compile(strings.Trim(strings.TrimSpace(rec[colFormula]), `"`), nil)
		if err != nil {
			return nil, atLine(err, line).WithKey(key)
		}
		if expr.Arity() != 0 || expr.Vars() > 1 {
			return nil, ir.Errorf(ir.CodeParse, "line %d: formula %q must read only x", line, expr.String()).WithKey(key)
		}

		window := [2]float64{lo[1], hi[1]}
		if isReshaping(rec[colOperatingPoint]) {
			window = [2]float64{lo[2], hi[2]}
		}
		cell := ir.Formula{Expr: expr, Ranges: [][2]float64{window}}

		g, ok := grids[key]
		if !ok {
			g = newGrid(btagAxes...)
			grids[key] = g
			order = append(order, key)
		}
		if err := g.add(lo, hi, cell); err != nil {
			return nil, atLine(err, line).WithKey(key)
		}
	}

	if len(order) == 0 {
		return nil, ir.Errorf(ir.CodeParse, "no calibration rows")
	}

	objs := make([]ir.Object, 0, len(order))
	for _, key := range order {
		t, err := grids[key].build()
		if err != nil {
			return nil, keyed(err, key)
		}
		objs = append(objs, ir.Object{Name: key, Table: t})
	}
	return objs, nil
}

// splitBTagHeader extracts the tagger name and returns the remaining rows
// with blank lines and trailing whitespace removed.
// lines[i] is the file line of body line i+1.
func splitBTagHeader(data []byte) (tagger string, body io.Reader, lines []int, err error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var buf bytes.Buffer
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if tagger == "" {
			name, _, ok := strings.Cut(line, ";")
			if !ok || strings.TrimSpace(name) == "" {
				return "", nil, nil, atLine(ir.Errorf(ir.CodeParse, "missing \"<tagger>;<columns>\" header"), n)
			}
			tagger = strings.TrimSpace(name)
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		lines = append(lines, n)
	}
	if err := sc.Err(); err != nil {
		return "", nil, nil, &ir.Error{Code: ir.CodeParse, Message: "cannot read b-tag CSV", Err: err}
	}
	if tagger == "" {
		return "", nil, nil, ir.Errorf(ir.CodeParse, "empty b-tag CSV")
	}
	return tagger, &buf, lines, nil
}

// fileLine maps a 1-based body line to its line in the source file.
func fileLine(lines []int, row int) int {
	if row < 1 || row > len(lines) {
		return row
	}
	return lines[row-1]
}

func isReshaping(op string) bool {
	op = strings.TrimSpace(op)
	return op == "3" || strings.EqualFold(op, "shape")
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
