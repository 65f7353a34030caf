package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/schedimport/internal/importer"
	"github.com/JonMunkholm/schedimport/internal/schedule"
)

func newColumnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <file>",
		Short: "List the columns selectable for crafts and work areas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readSchedule(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), importer.ReadColumns(f))
		},
	}
}

// readSchedule loads and parses a schedule file.
func readSchedule(path string) (*schedule.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !schedule.Supported(data) {
		return nil, importer.Precondition(importer.KeyUnsupportedFileType)
	}
	f, err := schedule.Read(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}
