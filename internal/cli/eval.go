package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	At  []float64 // binning coordinates
	Var []float64 // evaluation variables
}

// EvalResult is the JSON payload of eval.
type EvalResult struct {
	Key    string    `json:"key"`
	Kind   string    `json:"kind"`
	At     []float64 `json:"at"`
	Var    []float64 `json:"var,omitempty"`
	Values []float64 `json:"values"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <config.cue> <key>",
		Short: "Resolve one lookup",
		Long: `Resolve one entry of a registry key.

--at takes one coordinate per binning axis. Formula keys also take one
--var value per evaluation variable. The result has one value per variant.

Examples:
  corrlookup eval weights.cue ele_sf --at 1.2,45
  corrlookup eval weights.cue Summer16_L2Relative_AK4PFchs --at -1 --var 100`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().Float64SliceVar(&opts.At, "at", nil, "binning coordinates (comma-separated)")
	cmd.Flags().Float64SliceVar(&opts.Var, "var", nil, "evaluation variables (comma-separated)")

	return cmd
}

func runEval(opts *EvalOptions, path, key string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	r, _, err := openRegistry(opts.RootOptions, path, cmd, f)
	if err != nil {
		return err
	}

	e, err := r.Get(key)
	if err != nil {
		return f.Fail(ExitFailure, err)
	}
	values, err := r.Evaluate(key, opts.At, opts.Var)
	if err != nil {
		return f.Fail(ExitFailure, err)
	}

	if opts.Format == "json" {
		return f.Success(EvalResult{
			Key:    e.Key,
			Kind:   e.Kind.String(),
			At:     opts.At,
			Var:    opts.Var,
			Values: values,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), formatValues(values))
	return nil
}

// formatValues renders values space-separated with the shortest exact
// representation.
func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
