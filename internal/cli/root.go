package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/corrlookup/internal/config"
	"github.com/roach88/corrlookup/internal/registry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the corrlookup CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "corrlookup",
		Short: "Binned correction lookups",
		Long: `Evaluate physics correction tables: histogram scale factors, b-tag CSV
formulas, JSON ratio tables and JEC/JER text tables, keyed by weight sets.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newLogger logs to w at Info, or Debug with --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openRegistry loads the configuration at path and finalizes its registry.
// Configuration errors exit with ExitCommandError, registry errors with
// ExitFailure.
func openRegistry(opts *RootOptions, path string, cmd *cobra.Command, f *OutputFormatter) (*registry.Registry, *config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, err)
	}
	f.VerboseLog("Loaded %s: %d weight set(s), %d worker(s)", cfg.Path, len(cfg.Weights), cfg.Workers)

	r, err := cfg.NewRegistry(config.WithLogger(newLogger(opts, cmd.ErrOrStderr())))
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, err)
	}
	if err := r.Finalize(cmd.Context()); err != nil {
		return nil, nil, f.Fail(ExitFailure, err)
	}
	return r, cfg, nil
}
