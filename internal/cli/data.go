package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanworks/preflight/internal/datacheck"
)

// DataOptions holds flags for the data command.
type DataOptions struct {
	*RootOptions
	Paths string
	Quick bool
	Full  bool
}

// NewDataCommand creates the data command (gate 2).
func NewDataCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DataOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Validate the input datasets",
		Long: `Validate the datasets named in the paths configuration.

Quick mode reads the header plus a constant number of records per file, so
its cost does not depend on file size. Full mode parses every file end to
end, checking required columns, null values, and timestamp ordering.

Example:
  preflight data --paths configs/paths.yaml --quick
  preflight data --paths configs/paths.yaml --full`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runData(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Paths, "paths", "", "path to paths.yaml (required)")
	cmd.Flags().BoolVar(&opts.Quick, "quick", false, "structural check of leading records only")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "full-content and schema check")
	_ = cmd.MarkFlagRequired("paths")
	cmd.MarkFlagsMutuallyExclusive("quick", "full")
	cmd.MarkFlagsOneRequired("quick", "full")

	return cmd
}

func runData(opts *DataOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	started := time.Now()

	mode := datacheck.ModeQuick
	if opts.Full {
		mode = datacheck.ModeFull
	}

	paths, err := loadPathsConfig(formatter, opts.Paths)
	if err != nil {
		return err
	}
	formatter.VerboseLog("checking %d dataset(s) in %s mode", len(paths.Datasets), mode)

	rep := datacheck.New(paths).Run(mode)
	recordRun(paths, "data", string(mode), rep.Status, "", started)
	if err := emitStage(formatter, rep, ErrCodeData); err != nil {
		return err
	}
	if formatter.Format == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %d dataset(s) valid (%s mode)\n", len(paths.Datasets), mode)
	}
	return nil
}
