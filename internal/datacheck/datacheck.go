package datacheck

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oceanworks/preflight/internal/config"
	"github.com/oceanworks/preflight/internal/report"
)

// Mode selects the rigor of the data check.
type Mode string

const (
	ModeQuick Mode = "quick"
	ModeFull  Mode = "full"
)

// quickRecords bounds the number of data records quick mode reads after the
// header. Constant, so quick-mode cost does not scale with file size.
const quickRecords = 5

// timestampLayouts are tried in order when parsing time-series columns.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// Checker validates the datasets named by a PathConfig.
type Checker struct {
	paths *config.PathConfig
}

// New creates a Checker for the given path registry.
func New(paths *config.PathConfig) *Checker {
	return &Checker{paths: paths}
}

// Run executes gate 2 in the given mode. Datasets are visited in sorted
// name order so report ordering is deterministic.
func (c *Checker) Run(mode Mode) *report.StageReport {
	rep := report.NewStageReport(report.StageData)
	rep.Mode = string(mode)
	for _, name := range c.paths.DatasetNames() {
		rep.Add(c.checkDataset(name, c.paths.Datasets[name], mode)...)
	}
	rep.Finalize()
	return rep
}

func (c *Checker) checkDataset(name, path string, mode Mode) []report.CheckResult {
	fileCheck := name + ": file"

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return append([]report.CheckResult{
			report.Failf(fileCheck, "missing file: %s", path),
		}, skipContent(name, mode, "file check failed")...)
	case err != nil:
		return append([]report.CheckResult{
			report.Failf(fileCheck, "unreadable file: %v", err),
		}, skipContent(name, mode, "file check failed")...)
	case info.Size() == 0:
		return append([]report.CheckResult{
			report.Failf(fileCheck, "empty file: %s", path),
		}, skipContent(name, mode, "file check failed")...)
	}

	results := []report.CheckResult{
		report.Pass(fileCheck).WithDetail("bytes", info.Size()),
	}
	if mode == ModeQuick {
		return append(results, c.checkStructure(name, path))
	}
	return append(results, c.checkFull(name, path)...)
}

// skipContent mirrors the content-check names the mode would have emitted,
// so a broken file still yields a report of stable shape.
func skipContent(name string, mode Mode, reason string) []report.CheckResult {
	if mode == ModeQuick {
		return []report.CheckResult{report.Skip(name+": structure", reason)}
	}
	return []report.CheckResult{
		report.Skip(name+": columns", reason),
		report.Skip(name+": values", reason),
		report.Skip(name+": ordering", reason),
	}
}

// checkStructure reads the header plus at most quickRecords records and
// confirms the file parses as delimited text. Column semantics are not
// validated here.
func (c *Checker) checkStructure(name, path string) report.CheckResult {
	check := name + ": structure"

	f, err := os.Open(path)
	if err != nil {
		return report.Failf(check, "unreadable file: %v", err)
	}
	defer f.Close()

	r := NewReader(f)
	header, err := r.Read()
	if err != nil {
		return report.Failf(check, "not parseable as delimited text: %v", err)
	}
	records := 0
	for records < quickRecords {
		if _, err := r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return report.Failf(check, "not parseable as delimited text: %v", err)
		}
		records++
	}
	return report.Pass(check).
		WithDetail("columns", len(header)).
		WithDetail("records_read", records)
}

// checkFull parses the entire file and verifies the registered schema:
// column presence, nulls in required columns, and timestamp ordering.
func (c *Checker) checkFull(name, path string) []report.CheckResult {
	columnsCheck := name + ": columns"
	valuesCheck := name + ": values"
	orderingCheck := name + ": ordering"

	f, err := os.Open(path)
	if err != nil {
		fail := report.Failf(columnsCheck, "unreadable file: %v", err)
		return []report.CheckResult{fail,
			report.Skip(valuesCheck, "file unreadable"),
			report.Skip(orderingCheck, "file unreadable")}
	}
	defer f.Close()

	r := NewReader(f)
	header, err := r.Read()
	if err != nil {
		fail := report.Failf(columnsCheck, "not parseable as delimited text: %v", err)
		return []report.CheckResult{fail,
			report.Skip(valuesCheck, "header unparseable"),
			report.Skip(orderingCheck, "header unparseable")}
	}

	schema, known := SchemaFor(name)
	if !known {
		// No declared column semantics: a whole-file parse is the strongest
		// check available.
		rows, err := drain(r)
		if err != nil {
			return []report.CheckResult{report.Failf(columnsCheck, "not parseable as delimited text: %v", err)}
		}
		return []report.CheckResult{
			report.Skip(columnsCheck, "no schema registered for dataset").
				WithDetail("columns", len(header)).
				WithDetail("rows", rows),
		}
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}
	var missing []string
	for _, col := range schema.Required {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		fail := report.Failf(columnsCheck, "missing required columns: %s", strings.Join(missing, ", ")).
			WithDetail("missing_columns", missing)
		return []report.CheckResult{fail,
			report.Skip(valuesCheck, "required columns missing"),
			report.Skip(orderingCheck, "required columns missing")}
	}
	results := []report.CheckResult{
		report.Pass(columnsCheck).WithDetail("columns", len(header)),
	}

	stats := make(map[string]*NumericStats, len(schema.Numeric))
	for _, col := range schema.Numeric {
		stats[col] = &NumericStats{}
	}
	nullRows := make(map[string]int, len(schema.Required)) // column -> first null row

	tsIndex := -1
	if schema.Timestamp != "" {
		tsIndex = colIndex[schema.Timestamp]
	}
	var prevTS time.Time
	var haveTS bool
	orderingErr := ""

	rows := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail := report.Failf(valuesCheck, "parse error at row %d: %v", rows+1, err)
			return append(results, fail, report.Skip(orderingCheck, "parse error"))
		}
		rows++

		for _, col := range schema.Required {
			v := strings.TrimSpace(record[colIndex[col]])
			if v == "" {
				if _, seen := nullRows[col]; !seen {
					nullRows[col] = rows
				}
				if st, ok := stats[col]; ok {
					st.NACount++
				}
				continue
			}
			if st, ok := stats[col]; ok {
				x, err := strconv.ParseFloat(v, 64)
				if err != nil {
					st.NonNumericCount++
					continue
				}
				if st.Min == nil || x < *st.Min {
					v := x
					st.Min = &v
				}
				if st.Max == nil || x > *st.Max {
					v := x
					st.Max = &v
				}
			}
		}

		if tsIndex >= 0 && orderingErr == "" {
			raw := strings.TrimSpace(record[tsIndex])
			if raw == "" {
				continue // counted as a null above
			}
			ts, ok := parseTimestamp(raw)
			if !ok {
				orderingErr = fmt.Sprintf("unparseable timestamp %q at row %d", raw, rows)
				continue
			}
			if haveTS && ts.Before(prevTS) {
				orderingErr = fmt.Sprintf("timestamps out of order in column %s at row %d: %s precedes %s",
					schema.Timestamp, rows, ts.Format(time.RFC3339), prevTS.Format(time.RFC3339))
			}
			prevTS, haveTS = ts, true
		}
	}

	for _, st := range stats {
		if rows > 0 {
			st.NARate = float64(st.NACount) / float64(rows)
		}
	}

	values := report.Pass(valuesCheck)
	if len(nullRows) > 0 {
		var cols []string
		for _, col := range schema.Required {
			if row, ok := nullRows[col]; ok {
				cols = append(cols, fmt.Sprintf("%s (first at row %d)", col, row))
			}
		}
		values = report.Failf(valuesCheck, "null values in required columns: %s", strings.Join(cols, ", "))
	}
	values = values.WithDetail("rows", rows)
	for col, st := range stats {
		values = values.WithDetail(col, *st)
	}
	results = append(results, values)

	switch {
	case tsIndex < 0:
		results = append(results, report.Skip(orderingCheck, "dataset has no timestamp column"))
	case orderingErr != "":
		results = append(results, report.Fail(orderingCheck, orderingErr))
	default:
		results = append(results, report.Pass(orderingCheck).WithDetail("rows", rows))
	}
	return results
}

func drain(r *csv.Reader) (int, error) {
	rows := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows++
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
