package datacheck

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Schema declares what a logical dataset must contain. Datasets without a
// registered schema still get structural checks, just no column semantics.
type Schema struct {
	// Required columns; full mode fails naming any that are absent.
	Required []string
	// Timestamp is the column whose values must be monotonically
	// non-decreasing in full mode. Empty for non-time-series datasets.
	Timestamp string
	// Numeric columns get null/non-numeric/min/max diagnostics in full mode.
	Numeric []string
}

// Column names follow the upstream data exporter verbatim, including the
// non-ASCII headers and the stray space in the current-speed column.
var builtinSchemas = map[string]Schema{
	"metocean": {
		Required:  []string{"valid_time", "10米风速", "有义波高", "峰值波周期"},
		Timestamp: "valid_time",
		Numeric:   []string{"10米风速", "有义波高", "峰值波周期"},
	},
	"current": {
		Required: []string{"index", "流速 （节）", "流向 - 去向"},
		Numeric:  []string{"流速 （节）", "流向 - 去向"},
	},
}

// SchemaFor returns the registered schema for a logical dataset name.
func SchemaFor(name string) (Schema, bool) {
	s, ok := builtinSchemas[name]
	return s, ok
}

// NumericStats summarizes one numeric column over a full pass.
type NumericStats struct {
	NACount         int      `json:"na_count"`
	NARate          float64  `json:"na_rate"`
	NonNumericCount int      `json:"non_numeric_count"`
	Min             *float64 `json:"min"`
	Max             *float64 `json:"max"`
}

// NewReader wraps r in a CSV reader that tolerates a UTF-8 byte order mark,
// which the upstream exporter writes on every file.
func NewReader(r io.Reader) *csv.Reader {
	return csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
}
