package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/oceanworks/preflight/internal/report"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // all checks passed
	ExitFailure      = 1 // one or more checks failed
	ExitCommandError = 2 // command error (bad flags, unreadable config)
)

// Error codes used in JSON responses, mapped from the harness's error
// taxonomy.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeConfig      = "E002" // malformed or missing configuration
	ErrCodeEnvironment = "E003" // environment check failure
	ErrCodeData        = "E004" // data check failure
	ErrCodeSmoke       = "E005" // smoke test failure
	ErrCodeIsolation   = "E006" // isolation violation
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. A nil error is success;
// anything that is not an ExitError maps to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose/diagnostic output, kept off stdout so JSON stays parseable
	Verbose   bool
}

// CLIResponse is the standard JSON response envelope.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError carries the error half of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error outputs a command-level error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only when verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// emitPayload writes data wrapped in the response envelope (JSON) or via
// the renderer (text). failed selects the envelope status and, for text,
// is the caller's cue to return an ExitError afterwards.
func (f *OutputFormatter) emitPayload(data any, render func(io.Writer), failed bool, code, message string) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: data}
		if failed {
			resp.Status = "error"
			resp.Error = &CLIError{Code: code, Message: message}
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	render(f.Writer)
	return nil
}

// emitStage outputs a single stage report and converts a failed aggregate
// into an ExitError carrying ExitFailure.
func emitStage(f *OutputFormatter, rep *report.StageReport, code string) error {
	message := fmt.Sprintf("%s checks failed", rep.Stage)
	if err := f.emitPayload(rep, rep.Render, rep.Failed(), code, message); err != nil {
		return err
	}
	if rep.Failed() {
		return NewExitError(ExitFailure, message)
	}
	return nil
}
