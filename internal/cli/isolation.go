package cli

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanworks/preflight/internal/isolation"
)

// IsolationOptions holds flags for the isolation command.
type IsolationOptions struct {
	*RootOptions
	Paths     string
	Workspace string
}

// NewIsolationCommand creates the isolation command.
func NewIsolationCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IsolationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "isolation",
		Short: "Verify workspace isolation",
		Long: `Query version-control status for the encompassing repository and verify
that every changed path sits inside the designated output directory. A
change under the read-only library root is fatal and requires manual
rollback; this command never rolls anything back itself.

A workspace that is not a repository reports SKIPPED.

Example:
  preflight isolation --paths configs/paths.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIsolation(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Paths, "paths", "", "path to paths.yaml (required)")
	cmd.Flags().StringVar(&opts.Workspace, "workspace", "",
		"workspace root for repository detection (default: parent of library_root)")
	_ = cmd.MarkFlagRequired("paths")

	return cmd
}

func runIsolation(opts *IsolationOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	started := time.Now()

	paths, err := loadPathsConfig(formatter, opts.Paths)
	if err != nil {
		return err
	}
	workspace := opts.Workspace
	if workspace == "" {
		workspace = filepath.Dir(paths.LibraryRoot)
	}
	formatter.VerboseLog("querying repository status from %s", workspace)

	rep := isolation.New(workspace, paths).Run()
	recordRun(paths, "isolation", "", rep.Status, "", started)
	return emitStage(formatter, rep, ErrCodeIsolation)
}
