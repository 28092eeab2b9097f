package assertions

import "sync/atomic"

// Counter is a concurrency-safe tally of assertion evaluations. Increments
// may come from any number of worker goroutines with no lost updates.
type Counter struct {
	n atomic.Uint64
}

// Inc records one assertion evaluation.
func (c *Counter) Inc() {
	c.n.Add(1)
}

// Count returns the current tally. It may be called while increments are in
// flight and returns a value consistent with some interleaving at the call.
func (c *Counter) Count() uint64 {
	return c.n.Load()
}

// Reset zeroes the tally. The runner resets the process counter at the start
// of each run, so reported counts are per-run, not per-process-lifetime.
func (c *Counter) Reset() {
	c.n.Store(0)
}

// process is the process-wide counter fed by every T, pass or fail.
var process Counter

// Count returns the process-wide assertion tally.
func Count() uint64 {
	return process.Count()
}

// Reset zeroes the process-wide tally.
func Reset() {
	process.Reset()
}
