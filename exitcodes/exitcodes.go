// Package exitcodes defines the process exit codes.
package exitcodes

const (
	// Success means every test passed (or was legitimately skipped).
	Success = 0
	// TestFailure means at least one assertion failed.
	TestFailure = 1
	// RuntimeErr means the framework itself failed: bad configuration,
	// malformed catalog, panic outside a test body.
	RuntimeErr = 2
)
