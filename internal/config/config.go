// Package config loads corrlookup configuration files.
//
// A configuration is a single CUE file:
//
//	weights: [
//		"* * Summer16_L2Relative_AK4PFchs.jec.txt",
//		"ele_id EIDISO_WH/eta_pt_ratio ele_sf.json",
//	]
//	workers: 4
//	archive: "tables.db"
//
// The file is unified with an embedded schema, so unknown fields and
// ill-typed values are rejected with their CUE position.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/corrlookup/internal/registry"
)

//go:embed schema.cue
var schemaSource string

// Config is a loaded configuration with every path made absolute.
type Config struct {
	Path    string   // configuration file
	Weights []string // weight-set lines
	Workers int
	Archive string // empty when unset
}

// Dir returns the directory relative paths were resolved against.
func (c *Config) Dir() string {
	return filepath.Dir(c.Path)
}

// Error is a configuration error, positioned when CUE can say where.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads and validates the CUE file at path.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &Error{Field: "path", Message: err.Error(), Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &Error{Field: "path", Message: fmt.Sprintf("config not found: %s", path), Err: err}
	}
	if info.IsDir() || filepath.Ext(abs) != ".cue" {
		return nil, &Error{Field: "path", Message: fmt.Sprintf("not a .cue file: %s", path)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{filepath.Base(abs)}, &load.Config{Dir: filepath.Dir(abs)})
	if len(instances) == 0 {
		return nil, &Error{Field: "cue", Message: "no CUE instances loaded"}
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}

	value := ctx.BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return parse(ctx, value, abs)
}

// parse validates value against the schema and extracts a Config.
func parse(ctx *cue.Context, value cue.Value, path string) (*Config, error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &Config{Path: path}
	dir := filepath.Dir(path)

	workers, err := unified.LookupPath(cue.ParsePath("workers")).Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	cfg.Workers = int(workers)

	// Weights and archive are read from the file's own value so that
	// positions point into it rather than into the schema.
	weightsVal := value.LookupPath(cue.ParsePath("weights"))
	if weightsVal.Exists() {
		iter, err := weightsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			line, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			ws, err := registry.ParseWeightSet(line)
			if err != nil {
				return nil, &Error{
					Field:   fmt.Sprintf("weights[%d]", i),
					Message: err.Error(),
					Pos:     iter.Value().Pos(),
					Err:     err,
				}
			}
			ws.Path = resolve(dir, ws.Path)
			cfg.Weights = append(cfg.Weights, ws.String())
		}
	}

	archiveVal := value.LookupPath(cue.ParsePath("archive"))
	if archiveVal.Exists() {
		s, err := archiveVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if s == "" {
			return nil, &Error{Field: "archive", Message: "archive path is empty", Pos: archiveVal.Pos()}
		}
		cfg.Archive = resolve(dir, s)
	}

	return cfg, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Field: "cue", Message: err.Error(), Err: err}
	}

	first := errs[0]
	ce := &Error{Field: "cue", Message: first.Error(), Err: err}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
