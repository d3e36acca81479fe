// Package testutil provides fixture builders shared across the harness's
// test suites: BOM-prefixed CSV datasets and YAML configuration files laid
// out in temporary directories.
package testutil

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// utf8BOM is the byte order mark the upstream data exporter prefixes to
// every CSV file. Fixtures reproduce it so tests exercise the same decoding
// path as production data.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes a UTF-8-with-BOM CSV file with the given header and rows.
func WriteCSV(t *testing.T, path string, header []string, rows [][]string) {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		t.Fatalf("writing CSV header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("writing CSV rows: %v", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flushing CSV: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// WriteYAML marshals doc and writes it to path.
func WriteYAML(t *testing.T, path string, doc any) {
	t.Helper()

	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshaling YAML for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// Workspace is a self-contained fixture directory tree: a library root, an
// input directory holding datasets, and an output directory, plus the
// paths.yaml describing them.
type Workspace struct {
	Root        string
	LibraryRoot string
	InputDir    string
	OutputDir   string
	PathsFile   string
	Datasets    map[string]string
}

// NewWorkspace creates the standard fixture tree under t.TempDir() with the
// given dataset names registered (files are created by the caller via
// WriteCSV). Extra top-level keys for paths.yaml may be supplied through
// overrides.
func NewWorkspace(t *testing.T, datasetNames []string, overrides map[string]any) *Workspace {
	t.Helper()

	root := t.TempDir()
	ws := &Workspace{
		Root:        root,
		LibraryRoot: filepath.Join(root, "statlib"),
		InputDir:    filepath.Join(root, "data"),
		OutputDir:   filepath.Join(root, "out"),
		PathsFile:   filepath.Join(root, "paths.yaml"),
		Datasets:    make(map[string]string, len(datasetNames)),
	}
	for _, dir := range []string{ws.LibraryRoot, ws.InputDir, ws.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("creating %s: %v", dir, err)
		}
	}

	datasets := make(map[string]string, len(datasetNames))
	for _, name := range datasetNames {
		path := filepath.Join(ws.InputDir, name+".csv")
		ws.Datasets[name] = path
		datasets[name] = path
	}

	doc := map[string]any{
		"library_root": ws.LibraryRoot,
		"input_dir":    ws.InputDir,
		"output_dir":   ws.OutputDir,
		"datasets":     datasets,
	}
	for k, v := range overrides {
		doc[k] = v
	}
	WriteYAML(t, ws.PathsFile, doc)
	return ws
}

// WriteRuntime writes a runtime.yaml next to paths.yaml and returns its
// path. Overrides are merged over a minimal valid document.
func (w *Workspace) WriteRuntime(t *testing.T, overrides map[string]any) string {
	t.Helper()

	doc := map[string]any{
		"time_zone":            "UTC",
		"return_period_years":  []int{1, 50, 100},
		"state_duration_hours": 3,
	}
	for k, v := range overrides {
		doc[k] = v
	}
	path := filepath.Join(w.Root, "runtime.yaml")
	WriteYAML(t, path, doc)
	return path
}
