// Package testutil provides shared helpers for tests: a thread-safe log
// capture buffer and a harness that materializes an HCL workspace on disk and
// runs the full pipeline against it.
package testutil
