// Command corrlookup evaluates binned physics correction tables.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/corrlookup/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			// cobra usage and flag errors are not reported by the commands
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
