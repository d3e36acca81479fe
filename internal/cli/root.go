// Package cli wires the pre-flight stages into the preflight command tree:
// env (gate 1), data (gate 2), smoke (gates 1-3), and isolation (the
// cross-cutting guard). Exit codes are uniform across commands: 0 when
// every check passed, 1 when any check failed, 2 for configuration or
// usage errors.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the preflight CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Pre-flight validation for the marine analysis workspace",
		Long: `Pre-flight validation harness for the isolated marine analysis workspace.

Certifies, before any real analysis runs, that the statistics library
resolves to the workspace copy, that the required datasets are present and
sound, and that a minimal model-fit plus contour-extraction round trip
succeeds and lands its artifact in the designated output directory.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return &ExitError{
					Code:    ExitCommandError,
					Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats),
				}
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Flag parse failures are usage errors, not check failures.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	})

	cmd.AddCommand(NewEnvCommand(opts))
	cmd.AddCommand(NewDataCommand(opts))
	cmd.AddCommand(NewSmokeCommand(opts))
	cmd.AddCommand(NewIsolationCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
