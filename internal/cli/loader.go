package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanworks/preflight/internal/config"
	"github.com/oceanworks/preflight/internal/ledger"
	"github.com/oceanworks/preflight/internal/report"
)

// newFormatter builds the output formatter for a command invocation.
// Verbose logs go to stderr so JSON output stays parseable.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadPathsConfig loads and validates the paths configuration, mapping a
// ConfigError to a command error (exit code 2) with the error already
// written through the formatter.
func loadPathsConfig(f *OutputFormatter, file string) (*config.PathConfig, error) {
	cfg, err := config.LoadPaths(file)
	if err != nil {
		return nil, configCommandError(f, err)
	}
	return cfg, nil
}

// loadRuntimeConfig is the runtime-configuration counterpart of
// loadPathsConfig.
func loadRuntimeConfig(f *OutputFormatter, file string) (*config.RuntimeConfig, error) {
	cfg, err := config.LoadRuntime(file)
	if err != nil {
		return nil, configCommandError(f, err)
	}
	return cfg, nil
}

func configCommandError(f *OutputFormatter, err error) error {
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		_ = f.Error(ErrCodeConfig, cfgErr.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeConfig, err)
	}
	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
}

// recordRun appends one row to the run ledger under output_dir. Ledger
// failures are logged and swallowed: the ledger never changes a command's
// outcome.
func recordRun(paths *config.PathConfig, command, mode string, status report.Status, artifact string, started time.Time) {
	if err := os.MkdirAll(paths.OutputDir, 0o755); err != nil {
		slog.Warn("run ledger unavailable", "error", err)
		return
	}
	l, err := ledger.Open(filepath.Join(paths.OutputDir, ledger.FileName))
	if err != nil {
		slog.Warn("run ledger unavailable", "error", err)
		return
	}
	defer l.Close()

	run := ledger.Run{
		ID:         ledger.NewRunID(),
		Command:    command,
		Mode:       mode,
		Status:     string(status),
		Artifact:   artifact,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := l.Record(context.Background(), run); err != nil {
		slog.Warn("run ledger write failed", "error", err)
	}
}
