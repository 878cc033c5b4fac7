package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// KeyInfo describes one registry entry.
type KeyInfo struct {
	Key      string   `json:"key"`
	Kind     string   `json:"kind"`
	Axes     []string `json:"axes"`
	Width    int      `json:"width"`
	EvalVars int      `json:"eval_vars"`
	Source   string   `json:"source"`
	Object   string   `json:"object"`
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys <config.cue>",
		Short: "List registry keys",
		Long: `Load every weight set of a configuration and list the resulting keys
with their kind, binning axes and evaluation variable count.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runKeys(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	r, _, err := openRegistry(opts, path, cmd, f)
	if err != nil {
		return err
	}

	keys, err := r.Keys()
	if err != nil {
		return f.Fail(ExitFailure, err)
	}

	infos := make([]KeyInfo, 0, len(keys))
	for _, k := range keys {
		e, err := r.Get(k)
		if err != nil {
			return f.Fail(ExitFailure, err)
		}
		axes := make([]string, 0, e.Table.Dims())
		for _, a := range e.Table.Axes() {
			axes = append(axes, a.Name())
		}
		_, eval := e.Arity()
		infos = append(infos, KeyInfo{
			Key:      e.Key,
			Kind:     e.Kind.String(),
			Axes:     axes,
			Width:    e.Table.Width(),
			EvalVars: eval,
			Source:   e.Source,
			Object:   e.Object,
		})
	}

	if opts.Format == "json" {
		return f.Success(infos)
	}

	w := cmd.OutOrStdout()
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s", info.Key, info.Kind, strings.Join(info.Axes, ","))
		if info.EvalVars > 0 {
			fmt.Fprintf(w, "\tvars=%d", info.EvalVars)
		}
		fmt.Fprintln(w)
	}
	f.VerboseLog("%d key(s)", len(infos))
	return nil
}
