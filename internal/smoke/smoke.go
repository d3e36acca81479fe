package smoke

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oceanworks/preflight/internal/config"
	"github.com/oceanworks/preflight/internal/contour"
	"github.com/oceanworks/preflight/internal/datacheck"
	"github.com/oceanworks/preflight/internal/report"
)

// Runner executes the smoke test against a bound library adapter.
type Runner struct {
	paths   *config.PathConfig
	runtime *config.RuntimeConfig
	lib     contour.Library

	// Injectable for deterministic tests.
	now      func() time.Time
	newRunID func() string
}

// New creates a Runner. The library adapter must already be resolved by the
// caller (via contour.Lookup); the runner itself performs no registry
// access.
func New(paths *config.PathConfig, runtime *config.RuntimeConfig, lib contour.Library) *Runner {
	return &Runner{
		paths:    paths,
		runtime:  runtime,
		lib:      lib,
		now:      time.Now,
		newRunID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Run executes gate 3. The caller is responsible for gating: this method
// assumes the environment and data stages already passed.
func (r *Runner) Run(ctx context.Context) *report.StageReport {
	rep := report.NewStageReport(report.StageSmoke)

	samples, loadCheck := r.loadSamples()
	rep.Add(loadCheck)
	if loadCheck.Status != report.StatusPass {
		rep.Add(report.Skip("model fit", "sample load failed"))
		rep.Add(report.Skip("contour extraction", "sample load failed"))
		rep.Add(report.Skip("artifact", "sample load failed"))
		rep.Finalize()
		return rep
	}

	opts := contour.FitOptions{
		PrimaryVar:   r.runtime.SmokePrimaryVar,
		SecondaryVar: r.runtime.SmokeSecondaryVar,
	}
	model, err := r.safeFit(ctx, samples, opts)
	if err != nil {
		rep.Add(report.Failf("model fit", "smoke test failed: %v", err))
		rep.Add(report.Skip("contour extraction", "model fit failed"))
		rep.Add(report.Skip("artifact", "model fit failed"))
		rep.Finalize()
		return rep
	}
	rep.Add(report.Pass("model fit").WithDetail("samples", len(samples)))

	contours, err := r.extractContours(ctx, model)
	if err != nil {
		rep.Add(report.Failf("contour extraction", "smoke test failed: %v", err))
		rep.Add(report.Skip("artifact", "contour extraction failed"))
		rep.Finalize()
		return rep
	}
	points := 0
	for _, c := range contours {
		points += len(c.Coordinates)
	}
	rep.Add(report.Pass("contour extraction").
		WithDetail("return_periods", r.runtime.ReturnPeriodYears).
		WithDetail("points", points))

	rep.Add(r.writeArtifact(contours))
	rep.Finalize()
	return rep
}

// loadSamples reads the smoke dataset, keeps rows where both variables are
// numeric and positive, and deterministically down-samples to the
// configured row budget.
func (r *Runner) loadSamples() ([]contour.Sample, report.CheckResult) {
	const check = "sample load"

	dataset := r.runtime.SmokeDataset
	path, ok := r.paths.Datasets[dataset]
	if !ok {
		return nil, report.Failf(check, "dataset %q not present in paths configuration", dataset)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, report.Failf(check, "opening dataset: %v", err)
	}
	defer f.Close()

	cr := datacheck.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, report.Failf(check, "reading dataset header: %v", err)
	}
	primary, secondary := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case r.runtime.SmokePrimaryVar:
			primary = i
		case r.runtime.SmokeSecondaryVar:
			secondary = i
		}
	}
	if primary < 0 || secondary < 0 {
		return nil, report.Failf(check, "dataset %q is missing smoke variables %q/%q",
			dataset, r.runtime.SmokePrimaryVar, r.runtime.SmokeSecondaryVar)
	}

	// Reservoir sampling keeps at most SmokeMaxRows valid rows with a
	// fixed seed, so repeated runs see the same slice.
	rng := rand.New(rand.NewSource(int64(r.runtime.SmokeRandomSeed)))
	var kept []contour.Sample
	rowsRead, rowsValid := 0, 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, report.Failf(check, "parse error at row %d: %v", rowsRead+1, err)
		}
		rowsRead++

		p, errP := strconv.ParseFloat(strings.TrimSpace(record[primary]), 64)
		s, errS := strconv.ParseFloat(strings.TrimSpace(record[secondary]), 64)
		if errP != nil || errS != nil || p <= 0 || s <= 0 {
			continue
		}
		rowsValid++
		if len(kept) < r.runtime.SmokeMaxRows {
			kept = append(kept, contour.Sample{p, s})
			continue
		}
		if j := rng.Intn(rowsValid); j < r.runtime.SmokeMaxRows {
			kept[j] = contour.Sample{p, s}
		}
	}
	if len(kept) == 0 {
		return nil, report.Fail(check, "no valid samples remain after preprocessing")
	}
	return kept, report.Pass(check).
		WithDetail("rows_read", rowsRead).
		WithDetail("rows_used", len(kept)).
		WithDetail("primary_var", r.runtime.SmokePrimaryVar).
		WithDetail("secondary_var", r.runtime.SmokeSecondaryVar)
}

// safeFit invokes the external library's fit capability, converting a panic
// inside the adapter into an error: the harness normalizes all library
// failures at this boundary.
func (r *Runner) safeFit(ctx context.Context, samples []contour.Sample, opts contour.FitOptions) (model contour.Model, err error) {
	defer func() {
		if p := recover(); p != nil {
			model, err = nil, fmt.Errorf("library panic during fit: %v", p)
		}
	}()
	return r.lib.Fit(ctx, samples, opts)
}

func (r *Runner) extractContours(ctx context.Context, model contour.Model) (result []contour.Contour, err error) {
	defer func() {
		if p := recover(); p != nil {
			result, err = nil, fmt.Errorf("library panic during contour extraction: %v", p)
		}
	}()
	for _, rp := range r.runtime.ReturnPeriodYears {
		coords, err := r.lib.Contour(ctx, model, rp, r.runtime.StateDurationHours, r.runtime.SmokeNPoints)
		if err != nil {
			return nil, err
		}
		if len(coords) == 0 {
			return nil, fmt.Errorf("library returned an empty contour for return period %d", rp)
		}
		result = append(result, contour.Contour{ReturnPeriodYears: rp, Coordinates: coords})
	}
	return result, nil
}

// writeArtifact persists the contour coordinates under output_dir with a
// unique, timestamped name. The write is temp-file-plus-rename so a failure
// at any point leaves no partial artifact.
func (r *Runner) writeArtifact(contours []contour.Contour) report.CheckResult {
	const check = "artifact"

	if err := os.MkdirAll(r.paths.OutputDir, 0o755); err != nil {
		return report.Failf(check, "creating output directory: %v", err)
	}

	stamp := r.now().UTC().Format("20060102T150405Z")
	id := r.newRunID()
	if len(id) > 8 {
		id = id[:8]
	}
	final := filepath.Join(r.paths.OutputDir, fmt.Sprintf("iform_contour_%s_%s.csv", stamp, id))

	tmp, err := os.CreateTemp(r.paths.OutputDir, ".iform_contour_*.tmp")
	if err != nil {
		return report.Failf(check, "creating artifact temp file: %v", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"return_period_years", r.runtime.SmokePrimaryVar, r.runtime.SmokeSecondaryVar}); err != nil {
		cleanup()
		return report.Failf(check, "writing artifact: %v", err)
	}
	rows := 0
	for _, c := range contours {
		rp := strconv.Itoa(c.ReturnPeriodYears)
		for _, coord := range c.Coordinates {
			row := []string{
				rp,
				strconv.FormatFloat(coord[0], 'g', -1, 64),
				strconv.FormatFloat(coord[1], 'g', -1, 64),
			}
			if err := w.Write(row); err != nil {
				cleanup()
				return report.Failf(check, "writing artifact: %v", err)
			}
			rows++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		cleanup()
		return report.Failf(check, "writing artifact: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return report.Failf(check, "closing artifact temp file: %v", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return report.Failf(check, "publishing artifact: %v", err)
	}

	info, err := os.Stat(final)
	if err != nil || info.Size() == 0 {
		return report.Failf(check, "artifact missing or empty after write: %s", final)
	}
	return report.Pass(check).
		WithDetail("path", final).
		WithDetail("bytes", info.Size()).
		WithDetail("rows", rows)
}

// Artifact returns the artifact path recorded in a finished smoke report,
// or empty when no artifact was produced.
func Artifact(rep *report.StageReport) string {
	for _, c := range rep.Checks {
		if c.Name == "artifact" && c.Status == report.StatusPass {
			if p, ok := c.Details["path"].(string); ok {
				return p
			}
		}
	}
	return ""
}
