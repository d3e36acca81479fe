// Package smoke implements gate 3 of the pre-flight pipeline: a minimal
// end-to-end invocation of the external library's model-fitting and
// contour-extraction capabilities over a bounded slice of validated input
// data, persisting the resulting contour coordinates as a uniquely named
// artifact under the output directory.
//
// The runner never propagates the library's error types: any failure during
// sample loading, fitting, extraction, or the artifact write is normalized
// into the harness's own CheckResult taxonomy. Artifact writes are atomic;
// a failed run leaves no partial file behind.
package smoke
