// Package ir provides the normalized table representation shared by every
// correction source.
//
// Loaders (histogram containers, b-tag CSV files, JSON ratio tables, JEC text
// files, archives) all reduce their input to ir.Object triples: a name, an
// ordered list of binning axes and a dense payload of cells. Everything
// downstream (lookup, registry, archive) works on these types only.
//
// This package imports nothing internal. The formula compiler is reached
// through the Expr interface so that ir stays the foundational layer.
//
// Key design constraints:
//   - Axis edges are strictly increasing, at least two per axis
//   - Cells are addressed row-major, last axis varies fastest
//   - Tables are immutable after NewTable and safe for concurrent reads
//   - Out-of-range coordinates clamp to the first or last bin, never fail
package ir
