// Command schedimport inspects schedule files offline: it lists selectable
// columns, previews an import and prints the events a commit would write.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/schedimport/internal/logging"
)

var logLevel string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "schedimport",
		Short: "Inspect construction schedule files before importing them",
		Long: `schedimport reads MS Project XML (MSPDI) schedules without touching a
database or blob store.

Examples:
  schedimport columns plan.xml
  schedimport analyze plan.xml --craft-column Craft --hierarchy
  schedimport plan plan.xml --work-area-column "Working Area"`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupWriter(cmd.ErrOrStderr(), logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newColumnsCmd(), newAnalyzeCmd(), newPlanCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
