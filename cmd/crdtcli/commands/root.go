// Package commands wires crdtcli's cobra subcommands (spec.md §6 "Exit
// surface for a CLI"), each a thin wrapper over a document.Document loaded
// from a file on disk, in the teacher's cmd/headers/commands layout: one
// file per subcommand, a shared rootCmd, registration via init().
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "crdtcli",
	Short:         "inspect and mutate turbocrdt documents from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code spec.md §6 names
// (0 success, 1 generic error, 2 CLI usage, 3 format/checksum, 4 missing
// deps).
func Execute() int {
	err := rootCmd.Execute()
	code := exitCodeFor(err)
	if err != nil {
		fmt.Fprintln(os.Stderr, "crdtcli:", err)
	}
	return code
}
