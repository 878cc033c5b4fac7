package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool `json:"valid"`
	Keys       int  `json:"keys"`
	WeightSets int  `json:"weight_sets"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Load every weight set without evaluating",
		Long: `Validate a configuration: parse every source file and finalize the
registry, reporting parse errors, shape errors and duplicate keys.

Exit codes:
  0 - Registry finalized
  1 - A source or weight set is invalid
  2 - The configuration itself could not be loaded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	r, cfg, err := openRegistry(opts, path, cmd, f)
	if err != nil {
		return err
	}

	keys, err := r.Keys()
	if err != nil {
		return f.Fail(ExitFailure, err)
	}

	if opts.Format == "json" {
		return f.Success(ValidationResult{Valid: true, Keys: len(keys), WeightSets: len(cfg.Weights)})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %d weight set(s), %d key(s) valid\n", len(cfg.Weights), len(keys))
	return nil
}
