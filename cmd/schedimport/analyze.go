package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/schedimport/internal/importer"
	"github.com/JonMunkholm/schedimport/internal/schedule"
)

// buildFlags are the column choices shared by analyze and plan.
type buildFlags struct {
	craftColumn       string
	craftFieldType    string
	workAreaColumn    string
	workAreaFieldType string
	hierarchy         bool
}

func (b *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&b.craftColumn, "craft-column", "", "column holding the craft of each task")
	cmd.Flags().StringVar(&b.craftFieldType, "craft-field-type", "", "field key when two columns share the craft column name")
	cmd.Flags().StringVar(&b.workAreaColumn, "work-area-column", "", "column holding the work area of each task")
	cmd.Flags().StringVar(&b.workAreaFieldType, "work-area-field-type", "", "field key when two columns share the work area column name")
	cmd.Flags().BoolVar(&b.hierarchy, "hierarchy", false, "read work areas from summary tasks")
}

// options resolves the selected columns. Unknown columns are returned as is;
// callers decide whether that is fatal.
func (b *buildFlags) options(f *schedule.File) importer.Options {
	opts := importer.Options{ReadWorkAreasHierarchically: b.hierarchy}
	if b.craftColumn != "" {
		col := importer.AnalyzeColumn(f, b.craftColumn, b.craftFieldType, importer.IntentCraft)
		opts.CraftColumn = &col
	}
	if b.workAreaColumn != "" {
		col := importer.AnalyzeColumn(f, b.workAreaColumn, b.workAreaFieldType, importer.IntentWorkArea)
		opts.WorkAreaColumn = &col
	}
	return opts
}

// known drops unresolved columns so the build falls back to defaults.
func known(opts importer.Options) importer.Options {
	if opts.CraftColumn != nil && !opts.CraftColumn.Known() {
		opts.CraftColumn = nil
	}
	if opts.WorkAreaColumn != nil && !opts.WorkAreaColumn.Known() {
		opts.WorkAreaColumn = nil
	}
	return opts
}

type analysis struct {
	Format            schedule.Format             `json:"format"`
	Statistics        importer.Statistics         `json:"statistics"`
	ValidationResults []importer.ValidationResult `json:"validationResults"`
	CraftColumn       *importer.AnalysisColumn    `json:"craftColumn,omitempty"`
	WorkAreaColumn    *importer.AnalysisColumn    `json:"workAreaColumn,omitempty"`
}

func newAnalyzeCmd() *cobra.Command {
	var flags buildFlags
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Preview statistics and validation results of an import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readSchedule(args[0])
			if err != nil {
				return err
			}

			opts := flags.options(f)
			m := importer.Build(f, known(opts))
			return printJSON(cmd.OutOrStdout(), analysis{
				Format:            f.Format,
				Statistics:        m.Statistics(),
				ValidationResults: importer.Validate(m),
				CraftColumn:       opts.CraftColumn,
				WorkAreaColumn:    opts.WorkAreaColumn,
			})
		},
	}
	flags.register(cmd)
	return cmd
}
