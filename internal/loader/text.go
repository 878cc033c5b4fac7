package loader

import (
	"bufio"
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/corrlookup/internal/formula"
	"github.com/roach88/corrlookup/internal/ir"
)

// textHeader is the "{nBin names... nVar names... formula Type...}" line of
// a JEC-style text file.
type textHeader struct {
	bins    []string
	vars    []string
	formula string
}

type textSection struct {
	name   string
	header *textHeader
	grid   *gridBuilder
}

// parseJECText reads JEC-style text: a header line followed by rows of
//
//	binLo binHi [binLo binHi ...] N value1 ... valueN
//
// The meaning of the N values depends on flavor:
//
//   - jec, jr: nVar (min, max) ranges followed by formula parameters
//   - jersf: nVar ranges followed by scale factor variants (central, down, up)
//   - junc: (pt, up, down) knots; each knot's values hold until the next knot
//
// A "[Source]" line starts a new section with its own header; sections are
// named <stem>_<Source>.
func parseJECText(data []byte, stem, flavor string, cache *formula.Cache) ([]ir.Object, error) {
	var sections []*textSection
	cur := &textSection{name: stem}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "" || strings.HasPrefix(text, "#"):
			continue
		case strings.HasPrefix(text, "["):
			if cur.header != nil {
				sections = append(sections, cur)
			}
			cur = &textSection{name: stem + "_" + strings.Trim(text, "[] ")}
		case strings.HasPrefix(text, "{"):
			if cur.header != nil {
				return nil, ir.Errorf(ir.CodeParse, "line %d: second header in section", line).WithKey(cur.name)
			}
			h, err := parseTextHeader(text)
			if err != nil {
				return nil, atLine(err, line).WithKey(cur.name)
			}
			if flavor == "junc" && len(h.vars) != 1 {
				return nil, ir.Errorf(ir.CodeParse, "line %d: uncertainty header needs one variable, found %d", line, len(h.vars)).WithKey(cur.name)
			}
			names := h.bins
			if flavor == "junc" {
				names = append(append([]string(nil), h.bins...), h.vars[0])
			}
			cur.header = h
			cur.grid = newGrid(names...)
		default:
			if cur.header == nil {
				return nil, ir.Errorf(ir.CodeParse, "line %d: row before header", line).WithKey(cur.name)
			}
			if err := cur.addRow(text, flavor, cache); err != nil {
				return nil, atLine(err, line).WithKey(cur.name)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ir.Error{Code: ir.CodeParse, Message: "cannot read text source", Err: err}
	}
	if cur.header != nil {
		sections = append(sections, cur)
	}
	if len(sections) == 0 {
		return nil, ir.Errorf(ir.CodeParse, "no header line")
	}

	objs := make([]ir.Object, 0, len(sections))
	for _, s := range sections {
		t, err := s.grid.build()
		if err != nil {
			return nil, keyed(err, s.name)
		}
		objs = append(objs, ir.Object{Name: s.name, Table: t})
	}
	return objs, nil
}

func parseTextHeader(text string) (*textHeader, error) {
	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, "{"), "}"))
	fields := strings.Fields(inner)

	next := 0
	readCount := func(what string) (int, error) {
		if next >= len(fields) {
			return 0, ir.Errorf(ir.CodeParse, "header ends before %s count", what)
		}
		n, err := strconv.Atoi(fields[next])
		if err != nil || n < 0 {
			return 0, ir.Errorf(ir.CodeParse, "header %s count %q is not a non-negative integer", what, fields[next])
		}
		next++
		if next+n > len(fields) {
			return 0, ir.Errorf(ir.CodeParse, "header declares %d %s names, found %d", n, what, len(fields)-next)
		}
		names := fields[next : next+n]
		next += n
		return len(names), nil
	}

	nBin, err := readCount("binning")
	if err != nil {
		return nil, err
	}
	if nBin == 0 {
		return nil, ir.Errorf(ir.CodeParse, "header declares no binning variables")
	}
	h := &textHeader{bins: fields[1 : 1+nBin]}

	nVar, err := readCount("variable")
	if err != nil {
		return nil, err
	}
	h.vars = fields[next-nVar : next]

	if next < len(fields) {
		h.formula = strings.Trim(fields[next], `"`)
	}
	return h, nil
}

func (s *textSection) addRow(text, flavor string, cache *formula.Cache) error {
	nums, err := parseFloats(strings.Fields(text))
	if err != nil {
		return err
	}
	nBin := len(s.header.bins)
	if len(nums) < 2*nBin+1 {
		return ir.Errorf(ir.CodeParse, "row has %d numbers, needs at least %d", len(nums), 2*nBin+1)
	}
	lo := make([]float64, nBin)
	hi := make([]float64, nBin)
	for d := range nBin {
		lo[d], hi[d] = nums[2*d], nums[2*d+1]
	}
	n := int(nums[2*nBin])
	values := nums[2*nBin+1:]
	if float64(n) != nums[2*nBin] || n != len(values) {
		return ir.Errorf(ir.CodeParse, "row declares %g values, found %d", nums[2*nBin], len(values))
	}
	if flavor == "junc" {
		return s.addKnots(lo, hi, values)
	}

	nVar := len(s.header.vars)
	if len(values) < 2*nVar {
		return ir.Errorf(ir.CodeParse, "row has %d values, needs %d variable ranges", len(values), nVar)
	}
	var ranges [][2]float64
	for v := range nVar {
		ranges = append(ranges, [2]float64{values[2*v], values[2*v+1]})
	}
	rest := values[2*nVar:]

	if flavor == "jersf" {
		if len(rest) == 0 {
			return ir.Errorf(ir.CodeParse, "scale factor row has no values")
		}
		return s.grid.add(lo, hi, ir.Variants(rest))
	}

	expr, err := cache.Compile(s.header.formula, nil)
	if err != nil {
		return err
	}
	if expr.Vars() > nVar {
		return ir.Errorf(ir.CodeParse, "formula reads %d variables, header declares %d", expr.Vars(), nVar)
	}
	if len(rest) < expr.Arity() {
		return ir.Errorf(ir.CodeShapeMismatch, "row has %d parameters, formula needs %d", len(rest), expr.Arity())
	}
	return s.grid.add(lo, hi, ir.Formula{
		Expr:   expr,
		Params: rest[:expr.Arity():expr.Arity()],
		Ranges: ranges,
	})
}

// addKnots splits an uncertainty row into one box per knot. Each box runs
// from its knot to the next one; the last knot's box extends to
// math.MaxFloat64 so that pT at or above it resolves to its values.
func (s *textSection) addKnots(lo, hi, values []float64) error {
	if len(values)%3 != 0 || len(values) < 3 {
		return ir.Errorf(ir.CodeParse, "uncertainty row needs (pt, up, down) knots, found %d values", len(values))
	}
	for k := 0; k < len(values); k += 3 {
		upper := math.MaxFloat64
		if k+3 < len(values) {
			upper = values[k+3]
		}
		blo := append(append([]float64(nil), lo...), values[k])
		bhi := append(append([]float64(nil), hi...), upper)
		if err := s.grid.add(blo, bhi, ir.Variants{values[k+1], values[k+2]}); err != nil {
			return err
		}
	}
	return nil
}
