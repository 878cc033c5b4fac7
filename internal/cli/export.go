package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/corrlookup/internal/archive"
	"github.com/roach88/corrlookup/internal/ir"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	DB string // archive path; defaults to the configuration's archive
}

// ExportResult is the JSON payload of export.
type ExportResult struct {
	ID     string `json:"id"`
	DB     string `json:"db"`
	Tables int    `json:"tables"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <config.cue>",
		Short: "Write the finalized registry to an archive",
		Long: `Finalize a configuration and store every key's table in a SQLite
archive. Archives load back as weight-set sources with a .db or .sqlite
suffix; the latest export is used.

Examples:
  corrlookup export weights.cue --db tables.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "archive path (default: the configuration's archive)")

	return cmd
}

func runExport(opts *ExportOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	r, cfg, err := openRegistry(opts.RootOptions, path, cmd, f)
	if err != nil {
		return err
	}

	db := opts.DB
	if db == "" {
		db = cfg.Archive
	}
	if db == "" {
		_ = f.Error(ErrCodeInvalidArgs, "no archive: pass --db or set archive in the configuration", nil)
		return NewExitError(ExitCommandError, "no archive path")
	}

	keys, err := r.Keys()
	if err != nil {
		return f.Fail(ExitFailure, err)
	}
	objs := make([]ir.Object, 0, len(keys))
	for _, k := range keys {
		e, err := r.Get(k)
		if err != nil {
			return f.Fail(ExitFailure, err)
		}
		objs = append(objs, ir.Object{Name: e.Key, Table: e.Table})
	}

	a, err := archive.Open(db)
	if err != nil {
		_ = f.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer a.Close()

	id, err := a.Export(cmd.Context(), objs)
	if err != nil {
		_ = f.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "export failed", err)
	}

	if opts.Format == "json" {
		return f.Success(ExportResult{ID: id, DB: db, Tables: len(objs)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ exported %d table(s) to %s (%s)\n", len(objs), db, id)
	return nil
}
