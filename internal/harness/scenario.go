package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/corrlookup/internal/ir"
	"github.com/roach88/corrlookup/internal/registry"
)

// Scenario defines a lookup conformance scenario.
// A scenario builds a registry, then checks single and batch lookups
// against expected values or error codes.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is a CUE configuration file. Exactly one of Config and
	// Weights must be set.
	Config string `yaml:"config,omitempty"`

	// Weights lists weight-set lines. Relative source paths are resolved
	// against the scenario file's directory.
	Weights []string `yaml:"weights,omitempty"`

	// FinalizeError is the expected error code of Finalize. When set, the
	// scenario ends after Finalize and Queries must be empty.
	FinalizeError string `yaml:"finalize_error,omitempty"`

	// Keys, when set, is the exact sorted key list after Finalize.
	Keys []string `yaml:"keys,omitempty"`

	// Queries are single-entry lookups.
	Queries []Query `yaml:"queries,omitempty"`

	// Batches are ragged lookups.
	Batches []Batch `yaml:"batches,omitempty"`

	// Tolerance is the absolute tolerance for value comparison.
	// Zero means exact comparison.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Query is one single-entry lookup.
type Query struct {
	Key string    `yaml:"key"`
	At  []float64 `yaml:"at"`
	Var []float64 `yaml:"var,omitempty"`

	// Expect holds the resolved values, one per variant.
	Expect []float64 `yaml:"expect,omitempty"`

	// Error is the expected error code; Expect is ignored when set.
	Error string `yaml:"error,omitempty"`
}

// Batch is one ragged lookup. At and Var hold one ragged array per
// binning and evaluation variable, each given as groups of values.
type Batch struct {
	Key string        `yaml:"key"`
	At  [][][]float64 `yaml:"at"`
	Var [][][]float64 `yaml:"var,omitempty"`

	// Expect is indexed by group, element and variant.
	Expect [][][]float64 `yaml:"expect,omitempty"`

	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Relative paths in Config and Weights are resolved against the file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "querys:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := scenario.resolvePaths(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func (s *Scenario) resolvePaths(base string) error {
	if s.Config != "" && !filepath.IsAbs(s.Config) {
		s.Config = filepath.Join(base, s.Config)
	}
	for i, line := range s.Weights {
		ws, err := registry.ParseWeightSet(line)
		if err != nil {
			return fmt.Errorf("weights[%d]: %w", i, err)
		}
		if !filepath.IsAbs(ws.Path) {
			ws.Path = filepath.Join(base, ws.Path)
		}
		s.Weights[i] = ws.String()
	}
	return nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Config == "" && len(s.Weights) == 0:
		return fmt.Errorf("config or weights is required")
	case s.Config != "" && len(s.Weights) > 0:
		return fmt.Errorf("config and weights are mutually exclusive")
	}

	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative")
	}

	if s.FinalizeError != "" {
		if err := validateCode(s.FinalizeError); err != nil {
			return fmt.Errorf("finalize_error: %w", err)
		}
		if len(s.Queries) > 0 || len(s.Batches) > 0 || len(s.Keys) > 0 {
			return fmt.Errorf("finalize_error scenarios cannot have keys, queries or batches")
		}
		return nil
	}

	if len(s.Queries) == 0 && len(s.Batches) == 0 && len(s.Keys) == 0 {
		return fmt.Errorf("at least one of keys, queries or batches is required")
	}

	for i, q := range s.Queries {
		if q.Key == "" {
			return fmt.Errorf("queries[%d]: key is required", i)
		}
		if q.Error != "" {
			if err := validateCode(q.Error); err != nil {
				return fmt.Errorf("queries[%d]: %w", i, err)
			}
		} else if len(q.Expect) == 0 {
			return fmt.Errorf("queries[%d]: expect or error is required", i)
		}
	}

	for i, b := range s.Batches {
		if b.Key == "" {
			return fmt.Errorf("batches[%d]: key is required", i)
		}
		if len(b.At) == 0 {
			return fmt.Errorf("batches[%d]: at is required", i)
		}
		if b.Error != "" {
			if err := validateCode(b.Error); err != nil {
				return fmt.Errorf("batches[%d]: %w", i, err)
			}
		} else if b.Expect == nil {
			return fmt.Errorf("batches[%d]: expect or error is required", i)
		}
	}

	return nil
}

var knownCodes = map[ir.ErrorCode]bool{
	ir.CodeParse:             true,
	ir.CodeShapeMismatch:     true,
	ir.CodeDimensionMismatch: true,
	ir.CodeDuplicateKey:      true,
	ir.CodeAlreadySealed:     true,
	ir.CodeUnknownKey:        true,
	ir.CodeNotSealed:         true,
}

func validateCode(code string) error {
	if !knownCodes[ir.ErrorCode(code)] {
		return fmt.Errorf("unknown error code %q", code)
	}
	return nil
}
