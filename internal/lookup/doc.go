// Package lookup resolves coordinates against ir tables.
//
// The engine is stateless apart from its options: every Resolve and
// ResolveBatch call is a pure function of (table, coordinates), so one
// Engine may serve any number of goroutines once the tables are built.
//
// RESOLUTION:
//
// Binning coordinates (one per axis) select the cell. The cell payload
// then decides the result:
//   - Scalar: the stored value
//   - Variants: the stored vector, in source order
//   - Formula: the expression evaluated at the evaluation variables,
//     each clamped into the bin's validity range when the source gave one
//   - Missing: the table fill value, repeated to the table width
//
// Binning and evaluation inputs are independent: a JEC table binned in
// JetEta and JetPt may also take JetPt as its formula variable, in which
// case callers pass the same column twice.
//
// BATCHES:
//
// ResolveBatch walks the flat content of ragged inputs without per-group
// dispatch and returns an Array with identical offsets. The batch is
// atomic: any element error fails the whole call and no partial result is
// returned. With WithWorkers(n) the flat range is split into contiguous
// chunks evaluated concurrently; each output slot is written by exactly
// one worker, so results never depend on scheduling.
//
// PRECONDITIONS:
//
// Sign and unit conventions belong to the caller. Tables binned in |eta|
// (first edge >= 0) expect abs(eta); the engine does not fold negative
// coordinates, it clamps them into bin 0 like any other underflow.
package lookup
