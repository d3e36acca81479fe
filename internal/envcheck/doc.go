// Package envcheck implements gate 1 of the pre-flight pipeline: certifying
// that the statistics library and its auxiliary modules are linked into the
// running binary and that the library resolves to the workspace copy under
// the configured library root rather than a stale module-cache copy.
package envcheck
