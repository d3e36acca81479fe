package report

import (
	"fmt"
	"io"
)

// Status is the outcome tag of a single check or a whole stage.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusSkipped Status = "SKIPPED"
)

// Stage identifies one pipeline stage.
type Stage string

const (
	StageEnvironment Stage = "environment"
	StageData        Stage = "data"
	StageSmoke       Stage = "smoke"
	StageIsolation   Stage = "isolation"
)

// CheckResult is the outcome of a single validation unit.
// Details carries optional diagnostics (resolved paths, byte counts, row
// counts) for the JSON payload; Message is the human-readable summary.
type CheckResult struct {
	Name    string         `json:"name"`
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Pass creates a passing CheckResult.
func Pass(name string) CheckResult {
	return CheckResult{Name: name, Status: StatusPass}
}

// Fail creates a failing CheckResult with a reason.
func Fail(name, reason string) CheckResult {
	return CheckResult{Name: name, Status: StatusFail, Message: reason}
}

// Failf creates a failing CheckResult with a formatted reason.
func Failf(name, format string, args ...any) CheckResult {
	return Fail(name, fmt.Sprintf(format, args...))
}

// Skip creates a skipped CheckResult with a reason.
func Skip(name, reason string) CheckResult {
	return CheckResult{Name: name, Status: StatusSkipped, Message: reason}
}

// WithDetail attaches a diagnostic key/value and returns the result.
// Safe to chain; initializes the Details map on first use.
func (c CheckResult) WithDetail(key string, value any) CheckResult {
	if c.Details == nil {
		c.Details = make(map[string]any)
	}
	c.Details[key] = value
	return c
}

// StageReport is the ordered sequence of CheckResults for one stage plus its
// aggregate status. Check order is insertion order and must be deterministic
// across runs for reproducible output.
type StageReport struct {
	Stage  Stage         `json:"stage"`
	Mode   string        `json:"mode,omitempty"`
	Checks []CheckResult `json:"checks"`
	Status Status        `json:"status"`
}

// NewStageReport creates an empty report for the given stage.
func NewStageReport(stage Stage) *StageReport {
	return &StageReport{Stage: stage, Status: StatusPass}
}

// SkippedStage creates a report for a stage that never ran because an
// earlier gate failed.
func SkippedStage(stage Stage, reason string) *StageReport {
	r := NewStageReport(stage)
	r.Add(Skip(string(stage)+" stage", reason))
	r.Finalize()
	return r
}

// Add appends a check result to the report.
func (r *StageReport) Add(results ...CheckResult) {
	r.Checks = append(r.Checks, results...)
}

// Finalize computes the aggregate status from the constituent checks:
// FAIL if any check failed, SKIPPED if every check was skipped, PASS
// otherwise. Call once, after the last Add.
func (r *StageReport) Finalize() {
	if len(r.Checks) == 0 {
		r.Status = StatusSkipped
		return
	}
	allSkipped := true
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			r.Status = StatusFail
			return
		}
		if c.Status != StatusSkipped {
			allSkipped = false
		}
	}
	if allSkipped {
		r.Status = StatusSkipped
		return
	}
	r.Status = StatusPass
}

// Passed reports whether the aggregate status is PASS.
func (r *StageReport) Passed() bool {
	return r.Status == StatusPass
}

// Failed reports whether the aggregate status is FAIL.
func (r *StageReport) Failed() bool {
	return r.Status == StatusFail
}

// Render writes the report in human-readable form.
func (r *StageReport) Render(w io.Writer) {
	fmt.Fprintf(w, "Stage: %s", r.Stage)
	if r.Mode != "" {
		fmt.Fprintf(w, " (%s)", r.Mode)
	}
	fmt.Fprintf(w, "  [%s]\n", r.Status)
	for _, c := range r.Checks {
		fmt.Fprintf(w, "  %s %s", marker(c.Status), c.Name)
		if c.Message != "" {
			fmt.Fprintf(w, ": %s", c.Message)
		}
		fmt.Fprintln(w)
	}
}

func marker(s Status) string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusFail:
		return "✗"
	default:
		return "-"
	}
}
