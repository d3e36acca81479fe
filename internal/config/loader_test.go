package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeYAML(t *testing.T, dir, name string, doc any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func validPathsDoc(root string) map[string]any {
	return map[string]any{
		"library_root": filepath.Join(root, "statlib"),
		"input_dir":    filepath.Join(root, "data"),
		"output_dir":   filepath.Join(root, "out"),
		"datasets": map[string]string{
			"metocean": filepath.Join(root, "data", "metocean_result.csv"),
			"current":  filepath.Join(root, "data", "current.csv"),
		},
	}
}

func TestLoadPathsValid(t *testing.T) {
	dir := t.TempDir()
	file := writeYAML(t, dir, "paths.yaml", validPathsDoc(dir))

	cfg, err := LoadPaths(file)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "statlib"), cfg.LibraryRoot)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.OutputDir)
	assert.Len(t, cfg.Datasets, 2)
	assert.Equal(t, []string{"current", "metocean"}, cfg.DatasetNames())
}

func TestLoadPathsMissingKey(t *testing.T) {
	dir := t.TempDir()
	doc := validPathsDoc(dir)
	delete(doc, "output_dir")
	file := writeYAML(t, dir, "paths.yaml", doc)

	_, err := LoadPaths(file)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "output_dir")
}

func TestLoadPathsRelativePath(t *testing.T) {
	dir := t.TempDir()
	doc := validPathsDoc(dir)
	doc["input_dir"] = "relative/data"
	file := writeYAML(t, dir, "paths.yaml", doc)

	_, err := LoadPaths(file)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadPathsOutputCoincidesWithLibraryRoot(t *testing.T) {
	dir := t.TempDir()
	doc := validPathsDoc(dir)
	doc["output_dir"] = doc["library_root"]
	file := writeYAML(t, dir, "paths.yaml", doc)

	_, err := LoadPaths(file)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "output_dir", cfgErr.Field)
	assert.Contains(t, cfgErr.Message, "library_root")
}

func TestLoadPathsOutputCoincidesWithInputDir(t *testing.T) {
	dir := t.TempDir()
	doc := validPathsDoc(dir)
	doc["output_dir"] = doc["input_dir"]
	file := writeYAML(t, dir, "paths.yaml", doc)

	_, err := LoadPaths(file)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "output_dir", cfgErr.Field)
}

func TestLoadPathsFileMissing(t *testing.T) {
	_, err := LoadPaths(filepath.Join(t.TempDir(), "absent.yaml"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadPathsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paths.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t- not yaml"), 0o644))

	_, err := LoadPaths(path)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func validRuntimeDoc() map[string]any {
	return map[string]any{
		"time_zone":            "Asia/Shanghai",
		"return_period_years":  []int{1, 50, 100},
		"state_duration_hours": 3,
		"workflow_note":        "pre-flight only, no production analysis",
	}
}

func TestLoadRuntimeValidAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	file := writeYAML(t, dir, "runtime.yaml", validRuntimeDoc())

	cfg, err := LoadRuntime(file)
	require.NoError(t, err)

	assert.Equal(t, "Asia/Shanghai", cfg.TimeZone)
	assert.Equal(t, []int{1, 50, 100}, cfg.ReturnPeriodYears)
	assert.InDelta(t, 3.0, cfg.StateDurationHours, 1e-9)

	// Schema defaults for omitted smoke knobs.
	assert.Equal(t, "metocean", cfg.SmokeDataset)
	assert.Equal(t, "10米风速", cfg.SmokePrimaryVar)
	assert.Equal(t, "有义波高", cfg.SmokeSecondaryVar)
	assert.Equal(t, 2000, cfg.SmokeMaxRows)
	assert.Equal(t, 42, cfg.SmokeRandomSeed)
	assert.Equal(t, 100, cfg.SmokeNPoints)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())
}

func TestLoadRuntimeEmptyReturnPeriods(t *testing.T) {
	dir := t.TempDir()
	doc := validRuntimeDoc()
	doc["return_period_years"] = []int{}
	file := writeYAML(t, dir, "runtime.yaml", doc)

	_, err := LoadRuntime(file)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadRuntimeNonIncreasingReturnPeriods(t *testing.T) {
	dir := t.TempDir()
	doc := validRuntimeDoc()
	doc["return_period_years"] = []int{1, 50, 50}
	file := writeYAML(t, dir, "runtime.yaml", doc)

	_, err := LoadRuntime(file)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "return_period_years", cfgErr.Field)
	assert.Contains(t, cfgErr.Message, "strictly increasing")
}

func TestLoadRuntimeNegativeStateDuration(t *testing.T) {
	dir := t.TempDir()
	doc := validRuntimeDoc()
	doc["state_duration_hours"] = -1
	file := writeYAML(t, dir, "runtime.yaml", doc)

	_, err := LoadRuntime(file)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadRuntimeUnknownTimeZone(t *testing.T) {
	dir := t.TempDir()
	doc := validRuntimeDoc()
	doc["time_zone"] = "Atlantis/Nowhere"
	file := writeYAML(t, dir, "runtime.yaml", doc)

	_, err := LoadRuntime(file)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "time_zone", cfgErr.Field)
}
