// Package datacheck implements gate 2 of the pre-flight pipeline: dataset
// validation at two levels of rigor.
//
// Quick mode reads only the header and a constant number of records, so its
// cost is independent of file size; it certifies that a file exists, is
// non-empty, and parses as delimited text. Full mode reads the entire file
// and additionally verifies the dataset's registered column schema, null
// values in required columns, and timestamp ordering for time-series
// datasets. Datasets are checked independently: one broken file never
// prevents diagnostics for its siblings.
package datacheck
