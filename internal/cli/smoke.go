package cli

import (
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanworks/preflight/internal/config"
	"github.com/oceanworks/preflight/internal/contour"
	"github.com/oceanworks/preflight/internal/datacheck"
	"github.com/oceanworks/preflight/internal/isolation"
	"github.com/oceanworks/preflight/internal/report"
	"github.com/oceanworks/preflight/internal/smoke"
)

// SmokeOptions holds flags for the smoke command.
type SmokeOptions struct {
	*RootOptions
	Paths   string
	Runtime string
	Library string
}

// lookupLibrary resolves the contour library adapter; swappable in tests.
var lookupLibrary = contour.Lookup

// PipelineResult is the smoke command's payload: the three gated stage
// reports plus the advisory isolation result.
type PipelineResult struct {
	Stages    []*report.StageReport `json:"stages"`
	Isolation *report.CheckResult   `json:"isolation,omitempty"`
	Success   bool                  `json:"success"`
}

// NewSmokeCommand creates the smoke command (gates 1-3).
func NewSmokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SmokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the end-to-end smoke test",
		Long: `Run the gated pre-flight pipeline end to end: environment check, quick
data check, then a minimal model-fit and contour-extraction round trip.
The contour coordinates are written as a uniquely named artifact under the
configured output directory. A failed gate halts the pipeline; later stages
are reported as skipped, not attempted.

Example:
  preflight smoke --paths configs/paths.yaml --runtime configs/runtime.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmoke(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Paths, "paths", "", "path to paths.yaml (required)")
	cmd.Flags().StringVar(&opts.Runtime, "runtime", "", "path to runtime.yaml (required)")
	cmd.Flags().StringVar(&opts.Library, "library", "", "registered library adapter name")
	_ = cmd.MarkFlagRequired("paths")
	_ = cmd.MarkFlagRequired("runtime")

	return cmd
}

func runSmoke(opts *SmokeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	started := time.Now()

	paths, err := loadPathsConfig(formatter, opts.Paths)
	if err != nil {
		return err
	}
	runtime, err := loadRuntimeConfig(formatter, opts.Runtime)
	if err != nil {
		return err
	}

	result := &PipelineResult{}

	// Gate 1: environment.
	envRep := newEnvChecker(paths).Run()
	result.Stages = append(result.Stages, envRep)
	if !envRep.Passed() {
		result.Stages = append(result.Stages,
			report.SkippedStage(report.StageData, "gate failed: environment"),
			report.SkippedStage(report.StageSmoke, "gate failed: environment"))
		return finishSmoke(formatter, paths, result, started, "")
	}

	// Gate 2: quick data check; the smoke test needs structurally sound
	// inputs, not a full content audit.
	dataRep := datacheck.New(paths).Run(datacheck.ModeQuick)
	result.Stages = append(result.Stages, dataRep)
	if !dataRep.Passed() {
		result.Stages = append(result.Stages,
			report.SkippedStage(report.StageSmoke, "gate failed: data"))
		return finishSmoke(formatter, paths, result, started, "")
	}

	// Gate 3: the smoke test itself.
	lib, err := lookupLibrary(opts.Library)
	if err != nil {
		smokeRep := report.NewStageReport(report.StageSmoke)
		smokeRep.Add(report.Failf("library binding", "smoke test failed: %v", err))
		smokeRep.Finalize()
		result.Stages = append(result.Stages, smokeRep)
		return finishSmoke(formatter, paths, result, started, "")
	}
	smokeRep := smoke.New(paths, runtime, lib).Run(cmd.Context())
	result.Stages = append(result.Stages, smokeRep)
	return finishSmoke(formatter, paths, result, started, smoke.Artifact(smokeRep))
}

// finishSmoke runs the advisory isolation guard, records the ledger row,
// and emits the combined payload. The exit code reflects the three gated
// stages only; the isolation result is reported alongside.
func finishSmoke(f *OutputFormatter, paths *config.PathConfig, result *PipelineResult, started time.Time, artifact string) error {
	guard := isolation.New(filepath.Dir(paths.LibraryRoot), paths)
	iso := guard.Verify()
	result.Isolation = &iso

	// Exit code reflects the three gated stages; a skipped stage means an
	// earlier gate failed, so it counts against success too.
	result.Success = true
	for _, stage := range result.Stages {
		if !stage.Passed() {
			result.Success = false
		}
	}

	status := report.StatusPass
	if !result.Success {
		status = report.StatusFail
	}
	recordRun(paths, "smoke", "", status, artifact, started)

	render := func(w io.Writer) {
		for _, stage := range result.Stages {
			stage.Render(w)
		}
		isoStage := report.NewStageReport(report.StageIsolation)
		isoStage.Add(iso)
		isoStage.Finalize()
		isoStage.Render(w)
	}
	if err := f.emitPayload(result, render, !result.Success, ErrCodeSmoke, "smoke pipeline failed"); err != nil {
		return err
	}
	if !result.Success {
		return NewExitError(ExitFailure, "smoke pipeline failed")
	}
	return nil
}
