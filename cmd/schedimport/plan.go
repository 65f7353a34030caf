package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/schedimport/internal/events"
	"github.com/JonMunkholm/schedimport/internal/importer"
)

func newPlanCmd() *cobra.Command {
	var (
		flags     buildFlags
		projectID string
	)
	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Print the events an import into an empty project would write",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := uuid.Parse(projectID)
			if err != nil {
				return err
			}
			f, err := readSchedule(args[0])
			if err != nil {
				return err
			}

			opts := flags.options(f)
			for _, col := range []*importer.AnalysisColumn{opts.CraftColumn, opts.WorkAreaColumn} {
				if col != nil {
					if err := col.Err(); err != nil {
						return err
					}
				}
			}

			m := importer.Build(f, opts)
			if err := importer.Blocking(importer.Validate(m)); err != nil {
				return err
			}

			snap := events.ProjectSnapshot{ProjectID: pid, Workdays: importer.WorkdayConfiguration{WorkingDays: importer.DefaultWorkingDays}}
			plan := events.Lower(snap, uuid.New(), m)
			return printJSON(cmd.OutOrStdout(), plan.Events)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&projectID, "project", uuid.Nil.String(), "target project id; aggregate ids are derived from it")
	return cmd
}
