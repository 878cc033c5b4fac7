// Package registry maps string keys to loaded lookup tables.
//
// A Registry is built in two phases. Weight sets are recorded with
// AddSource or AddWeightSets without any I/O; Finalize then loads every
// source in insertion order and seals the registry. Queries are valid only
// after Finalize succeeds.
//
// Duplicate keys are an error: if two weight sets produce the same key,
// Finalize fails with DUPLICATE_KEY, nothing is published and the registry
// stays unsealed.
//
// Thread-safety: construction (AddSource, AddWeightSets, Finalize) must be
// confined to one goroutine. Once sealed the registry is immutable and all
// read methods are safe for concurrent use.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/corrlookup/internal/ir"
	"github.com/roach88/corrlookup/internal/loader"
	"github.com/roach88/corrlookup/internal/lookup"
	"github.com/roach88/corrlookup/internal/ragged"
)

// Entry is one sealed registry value.
//
// Kind fixes the call contract: value and variant entries take one
// coordinate per axis; formula entries additionally take EvalVars
// evaluation variables.
type Entry struct {
	Key    string
	Source string // source file path
	Object string // object name inside the source
	Kind   ir.Kind
	Table  *ir.Table
}

// Arity returns the number of binning coordinates and evaluation variables
// a call must supply.
func (e *Entry) Arity() (coords, eval int) {
	if e.Kind == ir.KindFormula {
		return e.Table.Dims(), e.Table.EvalVars()
	}
	return e.Table.Dims(), 0
}

type pending struct {
	set  WeightSet
	kind loader.Kind
}

// Registry is a sealed key → Entry mapping.
type Registry struct {
	loader  loader.Loader
	engine  *lookup.Engine
	logger  *slog.Logger
	pending []pending
	entries map[string]*Entry
	keys    []string
	sealed  bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoader sets the source loader. Default: loader.NewDispatcher().
func WithLoader(l loader.Loader) Option {
	return func(r *Registry) {
		r.loader = l
	}
}

// WithEngine sets the lookup engine used by Evaluate. Default: lookup.New().
func WithEngine(e *lookup.Engine) Option {
	return func(r *Registry) {
		r.engine = e
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates an empty, unsealed Registry.
func New(opts ...Option) *Registry {
	r := &Registry{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.loader == nil {
		r.loader = loader.NewDispatcher(loader.WithLogger(r.logger))
	}
	if r.engine == nil {
		r.engine = lookup.New(lookup.WithLogger(r.logger))
	}
	return r
}

// AddSource records a pending load of the objects matching src in path,
// stored under keys derived from out. No I/O happens until Finalize.
//
// Returns ALREADY_SEALED after Finalize and PARSE_ERROR for empty patterns.
func (r *Registry) AddSource(out, src, path string, kind loader.Kind) error {
	if r.sealed {
		return ir.Errorf(ir.CodeAlreadySealed, "cannot add source %s after finalize", path)
	}
	if out == "" || src == "" || path == "" {
		return ir.Errorf(ir.CodeParse, "weight set needs an output pattern, a source pattern and a path")
	}
	r.pending = append(r.pending, pending{set: WeightSet{Out: out, Src: src, Path: path}, kind: kind})
	return nil
}

// AddWeightSets parses "<out> <src> <path>" lines and records them,
// inferring each kind from the path suffix. Either every line is recorded
// or none is.
func (r *Registry) AddWeightSets(lines ...string) error {
	if r.sealed {
		return ir.Errorf(ir.CodeAlreadySealed, "cannot add weight sets after finalize")
	}
	parsed := make([]pending, 0, len(lines))
	for _, line := range lines {
		ws, err := ParseWeightSet(line)
		if err != nil {
			return err
		}
		kind, err := loader.KindFromPath(ws.Path)
		if err != nil {
			return err
		}
		parsed = append(parsed, pending{set: ws, kind: kind})
	}
	r.pending = append(r.pending, parsed...)
	return nil
}

// Finalize loads all pending sources in insertion order and seals the
// registry. A source listed by several weight sets is loaded once.
//
// Returns ALREADY_SEALED if called twice, DUPLICATE_KEY if two weight sets
// produce the same key, and the loader's error if a source fails. On error
// nothing is published and the registry stays unsealed.
func (r *Registry) Finalize(ctx context.Context) error {
	if r.sealed {
		return ir.Errorf(ir.CodeAlreadySealed, "registry already finalized")
	}

	type loaded struct {
		kind loader.Kind
		path string
	}
	cache := make(map[loaded][]ir.Object)
	entries := make(map[string]*Entry)

	for _, p := range r.pending {
		id := loaded{kind: p.kind, path: p.set.Path}
		objs, ok := cache[id]
		if !ok {
			var err error
			objs, err = r.loader.Load(ctx, p.kind, p.set.Path)
			if err != nil {
				return fmt.Errorf("weight set %q: %w", p.set.String(), err)
			}
			cache[id] = objs
		}

		selected, err := p.set.selectObjects(objs)
		if err != nil {
			return err
		}

		for _, o := range selected {
			key := ir.NormalizeName(p.set.keyFor(o.Name))
			if prev, dup := entries[key]; dup {
				return ir.Errorf(ir.CodeDuplicateKey, "key produced by %s and %s", prev.Source, p.set.Path).WithKey(key)
			}
			entries[key] = &Entry{
				Key:    key,
				Source: p.set.Path,
				Object: o.Name,
				Kind:   o.Table.Kind(),
				Table:  o.Table,
			}
		}
		r.logger.Debug("weight set resolved",
			"weight_set", p.set.String(),
			"kind", p.kind.String(),
			"keys", len(selected),
		)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r.entries = entries
	r.keys = keys
	r.pending = nil
	r.sealed = true

	r.logger.Info("registry finalized",
		"keys", len(keys),
		"sources", len(cache),
	)
	return nil
}

// Sealed reports whether Finalize has succeeded.
func (r *Registry) Sealed() bool { return r.sealed }

// Keys returns all keys in sorted order.
//
// Returns NOT_SEALED before Finalize.
func (r *Registry) Keys() ([]string, error) {
	if !r.sealed {
		return nil, ir.Errorf(ir.CodeNotSealed, "keys requested before finalize")
	}
	return append([]string(nil), r.keys...), nil
}

// Get returns the entry for key. The key is NFC-normalized first.
//
// Returns NOT_SEALED before Finalize and UNKNOWN_KEY if absent.
func (r *Registry) Get(key string) (*Entry, error) {
	if !r.sealed {
		return nil, ir.Errorf(ir.CodeNotSealed, "lookup before finalize").WithKey(key)
	}
	e, ok := r.entries[ir.NormalizeName(key)]
	if !ok {
		return nil, ir.Errorf(ir.CodeUnknownKey, "no such key").WithKey(key)
	}
	return e, nil
}

// Evaluate resolves one entry of key.
//
// Returns DIMENSION_MISMATCH unless coords and eval match Entry.Arity.
func (r *Registry) Evaluate(key string, coords, eval []float64) ([]float64, error) {
	e, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	if err := checkArity(e, len(coords), len(eval)); err != nil {
		return nil, err
	}
	out, err := r.engine.Resolve(e.Table, coords, eval)
	if err != nil {
		return nil, keyed(err, e.Key)
	}
	return out, nil
}

// EvaluateBatch resolves key over ragged inputs. The result has the shape
// of binning[0] with inner width Table.Width(); the whole batch fails
// together.
//
// Returns DIMENSION_MISMATCH unless binning and eval match Entry.Arity.
func (r *Registry) EvaluateBatch(key string, binning, eval []ragged.Array) (ragged.Array, error) {
	e, err := r.Get(key)
	if err != nil {
		return ragged.Array{}, err
	}
	if err := checkArity(e, len(binning), len(eval)); err != nil {
		return ragged.Array{}, err
	}
	out, err := r.engine.ResolveBatch(e.Table, binning, eval)
	if err != nil {
		return ragged.Array{}, keyed(err, e.Key)
	}
	return out, nil
}

func checkArity(e *Entry, coords, eval int) error {
	wantCoords, wantEval := e.Arity()
	if coords != wantCoords || eval != wantEval {
		return ir.Errorf(ir.CodeDimensionMismatch, "%s entry takes %d coordinates and %d evaluation variables, got %d and %d",
			e.Kind, wantCoords, wantEval, coords, eval).WithKey(e.Key)
	}
	return nil
}

func keyed(err error, key string) error {
	if e, ok := err.(*ir.Error); ok && e.Key == "" {
		return e.WithKey(key)
	}
	return err
}
