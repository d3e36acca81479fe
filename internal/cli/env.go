package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanworks/preflight/internal/config"
	"github.com/oceanworks/preflight/internal/envcheck"
	"github.com/oceanworks/preflight/internal/report"
)

// stageRunner is the common shape of the per-stage checkers.
type stageRunner interface {
	Run() *report.StageReport
}

// newEnvChecker is swappable so tests can supply a fixed module graph
// instead of the test binary's real build information.
var newEnvChecker = func(paths *config.PathConfig) stageRunner {
	return envcheck.New(paths)
}

// EnvOptions holds flags for the env command.
type EnvOptions struct {
	*RootOptions
	Paths string
}

// NewEnvCommand creates the env command (gate 1).
func NewEnvCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnvOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Validate the analysis environment",
		Long: `Validate that the statistics library and its auxiliary modules are
linked into this binary and that the library resolves to the workspace copy
under library_root, not a stale module-cache copy.

Example:
  preflight env --paths configs/paths.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnv(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Paths, "paths", "", "path to paths.yaml (required)")
	_ = cmd.MarkFlagRequired("paths")

	return cmd
}

func runEnv(opts *EnvOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	started := time.Now()

	paths, err := loadPathsConfig(formatter, opts.Paths)
	if err != nil {
		return err
	}
	formatter.VerboseLog("checking environment against library root %s", paths.LibraryRoot)

	rep := newEnvChecker(paths).Run()
	recordRun(paths, "env", "", rep.Status, "", started)
	return emitStage(formatter, rep, ErrCodeEnvironment)
}
