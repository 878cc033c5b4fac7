// Package harness runs lookup conformance scenarios.
//
// A scenario builds a registry from a CUE configuration or inline weight
// sets, finalizes it, and checks single and batch lookups against expected
// values or error codes. Results are deterministic, so the outcome list of
// a scenario can be snapshotted as a golden file.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/corrlookup/internal/config"
	"github.com/roach88/corrlookup/internal/ir"
	"github.com/roach88/corrlookup/internal/ragged"
	"github.com/roach88/corrlookup/internal/registry"
)

// Harness executes one scenario against a registry.
type Harness struct {
	registry *registry.Registry
	logger   *slog.Logger
	tol      float64
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger. Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Build the registry from Config or Weights
//  2. Finalize and compare against FinalizeError
//  3. Check Keys
//  4. Run queries, then batches
//
// A returned error means the scenario could not be set up; lookup
// mismatches are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := &options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(o)
	}

	cfg := &config.Config{Weights: scenario.Weights, Workers: 1}
	if scenario.Config != "" {
		var err error
		cfg, err = config.Load(scenario.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	r, err := cfg.NewRegistry(config.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}

	h := &Harness{registry: r, logger: o.logger, tol: scenario.Tolerance}
	result := NewResult()

	ferr := r.Finalize(context.Background())
	if ferr != nil {
		result.FinalizeError = string(ir.CodeOf(ferr))
	}
	if err := assertError("finalize", "", scenario.FinalizeError, ferr); err != nil {
		result.AddError(err.Error())
	}
	if ferr != nil {
		return result, nil
	}

	keys, err := r.Keys()
	if err != nil {
		return nil, err
	}
	result.Keys = keys
	if scenario.Keys != nil {
		if err := assertKeys(scenario.Keys, keys); err != nil {
			result.AddError(err.Error())
		}
	}

	for i, q := range scenario.Queries {
		h.executeQuery(i, q, result)
	}
	for i, b := range scenario.Batches {
		h.executeBatch(i, b, result)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"queries", len(scenario.Queries),
		"batches", len(scenario.Batches),
		"pass", result.Pass,
	)
	return result, nil
}

func (h *Harness) executeQuery(i int, q Query, result *Result) {
	step := fmt.Sprintf("queries[%d]", i)
	out := Outcome{Kind: "query", Index: i, Key: q.Key}

	values, err := h.registry.Evaluate(q.Key, q.At, q.Var)
	if err != nil {
		out.Error = string(ir.CodeOf(err))
	} else {
		out.Values = values
	}
	result.Outcomes = append(result.Outcomes, out)

	if aerr := assertError(step, q.Key, q.Error, err); aerr != nil {
		result.AddError(aerr.Error())
		return
	}
	if err == nil {
		if aerr := assertValues(step, q.Key, q.Expect, values, h.tol); aerr != nil {
			result.AddError(aerr.Error())
		}
	}
}

func (h *Harness) executeBatch(i int, b Batch, result *Result) {
	step := fmt.Sprintf("batches[%d]", i)
	out := Outcome{Kind: "batch", Index: i, Key: b.Key}

	arr, err := h.registry.EvaluateBatch(b.Key, toRagged(b.At), toRagged(b.Var))
	var values [][][]float64
	if err != nil {
		out.Error = string(ir.CodeOf(err))
	} else {
		values = fromRagged(arr)
		out.Values = values
	}
	result.Outcomes = append(result.Outcomes, out)

	if aerr := assertError(step, b.Key, b.Error, err); aerr != nil {
		result.AddError(aerr.Error())
		return
	}
	if err == nil {
		if aerr := assertBatch(step, b.Key, b.Expect, values, h.tol); aerr != nil {
			result.AddError(aerr.Error())
		}
	}
}

func toRagged(inputs [][][]float64) []ragged.Array {
	out := make([]ragged.Array, len(inputs))
	for i, groups := range inputs {
		out[i] = ragged.FromGroups(groups)
	}
	return out
}

func fromRagged(a ragged.Array) [][][]float64 {
	counts := a.Counts()
	out := make([][][]float64, len(counts))
	for i, n := range counts {
		out[i] = make([][]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = append([]float64(nil), a.Element(i, j)...)
		}
	}
	return out
}
