package smoke

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanworks/preflight/internal/config"
	"github.com/oceanworks/preflight/internal/contour"
	"github.com/oceanworks/preflight/internal/report"
	"github.com/oceanworks/preflight/internal/testutil"
)

// fakeLibrary is an in-memory stand-in for the external statistics library.
// It records calls and produces a rectangular "contour" scaled by the
// return period, enough to exercise the full call chain.
type fakeLibrary struct {
	fitErr     error
	fitPanic   string
	contourErr error

	fitCalls     int
	contourCalls int
}

type fakeModel struct {
	samples int
}

func (l *fakeLibrary) Fit(ctx context.Context, samples []contour.Sample, opts contour.FitOptions) (contour.Model, error) {
	l.fitCalls++
	if l.fitPanic != "" {
		panic(l.fitPanic)
	}
	if l.fitErr != nil {
		return nil, l.fitErr
	}
	return &fakeModel{samples: len(samples)}, nil
}

func (l *fakeLibrary) Contour(ctx context.Context, model contour.Model, rp int, stateDurationHours float64, nPoints int) ([]contour.Sample, error) {
	l.contourCalls++
	if l.contourErr != nil {
		return nil, l.contourErr
	}
	scale := float64(rp)
	out := make([]contour.Sample, 0, nPoints)
	for i := 0; i < nPoints; i++ {
		out = append(out, contour.Sample{scale, scale * 2})
	}
	return out, nil
}

func fixtureRunner(t *testing.T, lib contour.Library) (*Runner, *testutil.Workspace) {
	t.Helper()

	ws := testutil.NewWorkspace(t, []string{"metocean"}, nil)
	testutil.WriteCSV(t, ws.Datasets["metocean"],
		[]string{"valid_time", "10米风速", "有义波高", "峰值波周期"},
		[][]string{
			{"2024-01-01 00:00:00", "7.5", "1.2", "8.4"},
			{"2024-01-01 01:00:00", "8.1", "1.4", "8.9"},
			{"2024-01-01 02:00:00", "bad", "1.3", "8.7"}, // dropped: non-numeric
			{"2024-01-01 03:00:00", "6.9", "-1.0", "8.1"}, // dropped: non-positive
			{"2024-01-01 04:00:00", "9.2", "1.8", "9.3"},
		})

	paths := &config.PathConfig{
		LibraryRoot: ws.LibraryRoot,
		InputDir:    ws.InputDir,
		OutputDir:   ws.OutputDir,
		Datasets:    ws.Datasets,
	}
	runtime := &config.RuntimeConfig{
		TimeZone:           "UTC",
		ReturnPeriodYears:  []int{1, 50},
		StateDurationHours: 3,
		SmokeDataset:       "metocean",
		SmokePrimaryVar:    "10米风速",
		SmokeSecondaryVar:  "有义波高",
		SmokeMaxRows:       100,
		SmokeRandomSeed:    42,
		SmokeNPoints:       4,
	}
	r := New(paths, runtime, lib)
	r.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	r.newRunID = func() string { return "0123456789abcdef" }
	return r, ws
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunHappyPathWritesArtifact(t *testing.T) {
	lib := &fakeLibrary{}
	r, ws := fixtureRunner(t, lib)

	rep := r.Run(context.Background())

	assert.Equal(t, report.StatusPass, rep.Status)
	assert.Equal(t, 1, lib.fitCalls)
	assert.Equal(t, 2, lib.contourCalls) // one per return period

	files := listFiles(t, ws.OutputDir)
	require.Len(t, files, 1)
	assert.Equal(t, "iform_contour_20240601T120000Z_01234567.csv", files[0])

	data, err := os.ReadFile(filepath.Join(ws.OutputDir, files[0]))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "return_period_years,10米风速,有义波高")
	assert.Contains(t, content, "50,50,100")

	// 3 valid samples survived preprocessing.
	load := rep.Checks[0]
	assert.Equal(t, "sample load", load.Name)
	assert.Equal(t, 3, load.Details["rows_used"])

	assert.Equal(t, filepath.Join(ws.OutputDir, files[0]), Artifact(rep))
}

func TestRunDoesNotTouchPreexistingArtifacts(t *testing.T) {
	lib := &fakeLibrary{}
	r, ws := fixtureRunner(t, lib)

	prior := filepath.Join(ws.OutputDir, "iform_contour_20240101T000000Z_deadbeef.csv")
	require.NoError(t, os.WriteFile(prior, []byte("prior run\n"), 0o644))

	rep := r.Run(context.Background())
	require.Equal(t, report.StatusPass, rep.Status)

	data, err := os.ReadFile(prior)
	require.NoError(t, err)
	assert.Equal(t, "prior run\n", string(data))
	assert.Len(t, listFiles(t, ws.OutputDir), 2)
}

func TestRunFitErrorIsNormalized(t *testing.T) {
	lib := &fakeLibrary{fitErr: errors.New("singular matrix in parameter estimation")}
	r, ws := fixtureRunner(t, lib)

	rep := r.Run(context.Background())

	assert.Equal(t, report.StatusFail, rep.Status)
	fit := rep.Checks[1]
	assert.Equal(t, "model fit", fit.Name)
	assert.Equal(t, report.StatusFail, fit.Status)
	assert.Contains(t, fit.Message, "smoke test failed")
	assert.Contains(t, fit.Message, "singular matrix")

	// Atomic write-or-absent: no artifact, not even a partial one.
	assert.Empty(t, listFiles(t, ws.OutputDir))
	assert.Empty(t, Artifact(rep))
}

func TestRunLibraryPanicIsNormalized(t *testing.T) {
	lib := &fakeLibrary{fitPanic: "index out of range"}
	r, ws := fixtureRunner(t, lib)

	rep := r.Run(context.Background())

	assert.Equal(t, report.StatusFail, rep.Status)
	assert.Contains(t, rep.Checks[1].Message, "library panic")
	assert.Empty(t, listFiles(t, ws.OutputDir))
}

func TestRunContourErrorSkipsArtifact(t *testing.T) {
	lib := &fakeLibrary{contourErr: errors.New("contour did not converge")}
	r, ws := fixtureRunner(t, lib)

	rep := r.Run(context.Background())

	assert.Equal(t, report.StatusFail, rep.Status)
	extraction := rep.Checks[2]
	assert.Equal(t, "contour extraction", extraction.Name)
	assert.Equal(t, report.StatusFail, extraction.Status)
	assert.Equal(t, report.StatusSkipped, rep.Checks[3].Status)
	assert.Empty(t, listFiles(t, ws.OutputDir))
}

func TestRunNoValidSamples(t *testing.T) {
	lib := &fakeLibrary{}
	r, ws := fixtureRunner(t, lib)
	testutil.WriteCSV(t, ws.Datasets["metocean"],
		[]string{"valid_time", "10米风速", "有义波高", "峰值波周期"},
		[][]string{{"2024-01-01 00:00:00", "-1", "0", "8.4"}})

	rep := r.Run(context.Background())

	assert.Equal(t, report.StatusFail, rep.Status)
	assert.Contains(t, rep.Checks[0].Message, "no valid samples")
	assert.Equal(t, 0, lib.fitCalls)
}

func TestRunMissingSmokeVariables(t *testing.T) {
	lib := &fakeLibrary{}
	r, ws := fixtureRunner(t, lib)
	testutil.WriteCSV(t, ws.Datasets["metocean"],
		[]string{"valid_time", "wind", "wave"},
		[][]string{{"2024-01-01 00:00:00", "7.5", "1.2"}})

	rep := r.Run(context.Background())

	assert.Equal(t, report.StatusFail, rep.Status)
	assert.Contains(t, rep.Checks[0].Message, "missing smoke variables")
}

func TestSamplingIsDeterministic(t *testing.T) {
	lib := &fakeLibrary{}
	r, ws := fixtureRunner(t, lib)

	// More valid rows than the budget forces sampling.
	rows := make([][]string, 0, 50)
	for i := 0; i < 50; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("2024-01-01 %02d:00:00", i%24),
			fmt.Sprintf("%d.5", i+1), "1.2", "8.4",
		})
	}
	testutil.WriteCSV(t, ws.Datasets["metocean"],
		[]string{"valid_time", "10米风速", "有义波高", "峰值波周期"}, rows)
	r.runtime.SmokeMaxRows = 10

	first, check := r.loadSamples()
	require.Equal(t, report.StatusPass, check.Status)
	second, _ := r.loadSamples()

	assert.Len(t, first, 10)
	assert.Equal(t, first, second)
	assert.Equal(t, 50, check.Details["rows_read"])
}
