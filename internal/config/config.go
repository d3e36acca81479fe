package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

// ConfigError reports malformed or missing configuration. It is fatal: no
// pipeline stage runs on top of a config that failed to load.
type ConfigError struct {
	File    string // configuration file path
	Field   string // offending field, if known
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// PathConfig is the validated path registry: every location the harness is
// allowed to touch. All paths are absolute. library_root is never a write
// target; output_dir is the only write target.
type PathConfig struct {
	LibraryRoot string            `yaml:"library_root" json:"library_root"`
	InputDir    string            `yaml:"input_dir" json:"input_dir"`
	OutputDir   string            `yaml:"output_dir" json:"output_dir"`
	Datasets    map[string]string `yaml:"datasets" json:"datasets"`

	// LibraryModule and AuxModules override the environment stage's
	// built-in expectations. Empty means use the defaults.
	LibraryModule string   `yaml:"library_module,omitempty" json:"library_module,omitempty"`
	AuxModules    []string `yaml:"aux_modules,omitempty" json:"aux_modules,omitempty"`
}

// DatasetNames returns the logical dataset names in sorted order, so that
// per-dataset checks report in a stable order across runs.
func (p *PathConfig) DatasetNames() []string {
	names := make([]string, 0, len(p.Datasets))
	for name := range p.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *PathConfig) validate(file string) error {
	abs := map[string]string{
		"library_root": p.LibraryRoot,
		"input_dir":    p.InputDir,
		"output_dir":   p.OutputDir,
	}
	for field, path := range abs {
		if !filepath.IsAbs(path) {
			return &ConfigError{File: file, Field: field, Message: fmt.Sprintf("path must be absolute, got %q", path)}
		}
	}
	for name, path := range p.Datasets {
		if !filepath.IsAbs(path) {
			return &ConfigError{File: file, Field: "datasets." + name, Message: fmt.Sprintf("path must be absolute, got %q", path)}
		}
	}
	out := filepath.Clean(p.OutputDir)
	if out == filepath.Clean(p.LibraryRoot) {
		return &ConfigError{File: file, Field: "output_dir", Message: "must be distinct from library_root"}
	}
	if out == filepath.Clean(p.InputDir) {
		return &ConfigError{File: file, Field: "output_dir", Message: "must be distinct from input_dir"}
	}
	return nil
}

// RuntimeConfig parameterizes the smoke test. The return period sequence is
// non-empty and strictly increasing; WorkflowNote is a free-text annotation
// with no semantic effect.
type RuntimeConfig struct {
	TimeZone           string  `yaml:"time_zone" json:"time_zone"`
	ReturnPeriodYears  []int   `yaml:"return_period_years" json:"return_period_years"`
	StateDurationHours float64 `yaml:"state_duration_hours" json:"state_duration_hours"`
	WorkflowNote       string  `yaml:"workflow_note,omitempty" json:"workflow_note,omitempty"`

	SmokeDataset      string `yaml:"smoke_dataset" json:"smoke_dataset"`
	SmokePrimaryVar   string `yaml:"smoke_primary_var" json:"smoke_primary_var"`
	SmokeSecondaryVar string `yaml:"smoke_secondary_var" json:"smoke_secondary_var"`
	SmokeMaxRows      int    `yaml:"smoke_max_rows" json:"smoke_max_rows"`
	SmokeRandomSeed   int    `yaml:"smoke_random_seed" json:"smoke_random_seed"`
	SmokeNPoints      int    `yaml:"smoke_n_points" json:"smoke_n_points"`
}

// Location resolves the configured time zone.
func (r *RuntimeConfig) Location() (*time.Location, error) {
	return time.LoadLocation(r.TimeZone)
}

func (r *RuntimeConfig) validate(file string) error {
	if len(r.ReturnPeriodYears) == 0 {
		return &ConfigError{File: file, Field: "return_period_years", Message: "must be non-empty"}
	}
	for i := 1; i < len(r.ReturnPeriodYears); i++ {
		if r.ReturnPeriodYears[i] <= r.ReturnPeriodYears[i-1] {
			return &ConfigError{
				File:  file,
				Field: "return_period_years",
				Message: fmt.Sprintf("must be strictly increasing, got %d after %d",
					r.ReturnPeriodYears[i], r.ReturnPeriodYears[i-1]),
			}
		}
	}
	if _, err := r.Location(); err != nil {
		return &ConfigError{File: file, Field: "time_zone", Message: fmt.Sprintf("unknown time zone %q", r.TimeZone)}
	}
	return nil
}
