// Package report defines the pass/fail decision model shared by every
// pre-flight stage.
//
// Each validation unit produces a CheckResult tagged PASS, FAIL, or SKIPPED.
// A stage collects its results into a StageReport whose aggregate status is
// PASS only when every constituent check passed. Reports are transient: they
// are built fresh per stage execution, rendered or serialized once, and never
// mutated afterwards.
package report
