// Package loader turns correction source files into normalized objects.
//
// Every loader produces a list of ir.Object values: a name plus an
// immutable *ir.Table. The Dispatcher selects the loader for a source kind:
//
//   - histogram: YAML histogram containers (.histo.yaml)
//   - csv: b-tag calibration tables (.csv)
//   - json: nested ratio tables (.json), validated against a JSON Schema
//   - text: JEC, JER, JER scale factor and JEC uncertainty text (.jec.txt,
//     .jr.txt, .jersf.txt, .junc.txt)
//   - archive: tables exported by a previous run (.db, .sqlite)
//
// A trailing .gz, .zst or .lz4 suffix is decoded transparently.
//
// Sources whose rows describe boxes rather than a full grid are assembled
// by a grid builder: the edges of all rows are unioned per axis and any bin
// no row covers is stored as ir.Missing.
//
// Loaders do not normalize coordinates. Tables binned in abs(eta) expect
// callers to pass abs(eta).
package loader
