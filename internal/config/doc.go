// Package config loads and validates the two declarative configuration
// files driving the pre-flight harness: the paths configuration (library
// root, input/output directories, dataset map) and the runtime
// configuration (time zone, return periods, state duration, smoke knobs).
//
// Files are YAML. Structural validation happens by unifying the decoded
// document with an embedded CUE schema; cross-field invariants that CUE
// cannot express (path distinctness, strictly increasing return periods,
// resolvable time zones) are enforced by Go validators afterwards. Both
// configs are immutable once loaded: every stage receives them read-only.
package config
