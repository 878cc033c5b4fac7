package ir

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// DomainTable prefixes table fingerprints.
// Version suffix enables future encoding migration.
const DomainTable = "corrlookup/table/v1"

// Cell tags in the fingerprint encoding.
const (
	tagScalar   = 's'
	tagVariants = 'v'
	tagFormula  = 'f'
	tagMissing  = 'm'
)

// Fingerprint computes a content hash of the table.
//
// Format: XXH64(domain + 0x00 + axes + cells + fill) where floats are
// written as little-endian IEEE bits and formulas by their source text and
// declared parameter names.
// Two tables with equal fingerprints resolve identically for every input.
func (t *Table) Fingerprint() uint64 {
	h := xxhash.New()
	w := fingerprintWriter{h: h}

	w.str(DomainTable)
	w.u64(uint64(len(t.axes)))
	for _, a := range t.axes {
		w.str(a.name)
		w.floats(a.edges)
	}
	for _, c := range t.cells {
		switch c := c.(type) {
		case Scalar:
			w.byte(tagScalar)
			w.f64(float64(c))
		case Variants:
			w.byte(tagVariants)
			w.floats(c)
		case Formula:
			w.byte(tagFormula)
			w.str(c.Expr.String())
			var names []string
			if n, ok := c.Expr.(ParameterNamer); ok {
				names = n.ParameterNames()
			}
			w.u64(uint64(len(names)))
			for _, name := range names {
				w.str(name)
			}
			w.floats(c.Params)
			w.u64(uint64(len(c.Ranges)))
			for _, r := range c.Ranges {
				w.f64(r[0])
				w.f64(r[1])
			}
		case Missing:
			w.byte(tagMissing)
		}
	}
	w.f64(t.fill)
	return h.Sum64()
}

type fingerprintWriter struct {
	h   *xxhash.Digest
	buf [8]byte
}

func (w *fingerprintWriter) byte(b byte) {
	w.buf[0] = b
	_, _ = w.h.Write(w.buf[:1])
}

func (w *fingerprintWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:], v)
	_, _ = w.h.Write(w.buf[:])
}

func (w *fingerprintWriter) f64(v float64) {
	w.u64(math.Float64bits(v))
}

func (w *fingerprintWriter) floats(vs []float64) {
	w.u64(uint64(len(vs)))
	for _, v := range vs {
		w.f64(v)
	}
}

// str writes s followed by a null separator so that adjacent strings
// cannot run into each other.
func (w *fingerprintWriter) str(s string) {
	_, _ = w.h.WriteString(s)
	w.byte(0x00)
}
