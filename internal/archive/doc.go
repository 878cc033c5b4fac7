// Package archive provides SQLite-backed storage for finalized lookup tables.
//
// An archive holds a sequence of exports. Each export is one registry
// snapshot: an ordered list of named tables. Loading an archive returns the
// tables of its latest export, so an archive file can be listed in a weight
// set like any other source.
//
// # Stored Form
//
//   - exports: one row per export, id is a UUIDv7, ordering uses seq
//   - tables: one row per (export, name) with the table as JSON and its
//     xxhash fingerprint
//
// Formulas are stored as source text plus parameter names and recompiled on
// load. A table whose recomputed fingerprint differs from the stored one is
// rejected as corrupt.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package archive
