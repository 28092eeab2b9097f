package types

import (
	"time"

	"github.com/sebfabre/ktf/assertions"
)

// TestStatus represents the possible states of a test execution.
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusSkip  TestStatus = "skip"
	TestStatusError TestStatus = "error"
)

// Context is the opaque per-test auxiliary object bound to a handle under a
// unique name. Bodies of unbound tests receive a nil Context.
type Context struct {
	Name  string
	Value any
}

// TestFunc is a test body. ctx is nil when the test is not bound to a handle
// or the handle has no contexts.
type TestFunc func(t *assertions.T, ctx *Context)

// TestMetadata describes one registered test.
type TestMetadata struct {
	Name   string
	Handle string // owning handle name; empty for the global catalog
	Func   TestFunc
}

// TestResult captures the outcome of a single test invocation. A test bound
// to a handle with K contexts yields K results, one per context.
type TestResult struct {
	Metadata TestMetadata
	Context  string // context name, empty when the body ran without one
	Status   TestStatus
	Failures []assertions.Failure
	Err      error // runtime error (panic), not an assertion failure
	Duration time.Duration
}

// DisplayName returns the test name qualified by its context, if any.
func (tr *TestResult) DisplayName() string {
	if tr.Context == "" {
		return tr.Metadata.Name
	}
	return tr.Metadata.Name + ":" + tr.Context
}

// Stats tracks test statistics at each aggregation level.
type Stats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	Errored   int
	StartTime time.Time
	EndTime   time.Time
}

// Record tallies one result.
func (s *Stats) Record(status TestStatus) {
	s.Total++
	switch status {
	case TestStatusPass:
		s.Passed++
	case TestStatusFail:
		s.Failed++
	case TestStatusSkip:
		s.Skipped++
	case TestStatusError:
		s.Errored++
	}
}

// Merge folds other into s, keeping the widest time window.
func (s *Stats) Merge(other Stats) {
	s.Total += other.Total
	s.Passed += other.Passed
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.Errored += other.Errored
	if s.StartTime.IsZero() || (!other.StartTime.IsZero() && other.StartTime.Before(s.StartTime)) {
		s.StartTime = other.StartTime
	}
	if other.EndTime.After(s.EndTime) {
		s.EndTime = other.EndTime
	}
}

// Status derives the aggregate status: any failure or runtime error makes the
// aggregate fail; everything skipped (or nothing run) is a skip, which keeps
// a skipped group distinguishable from a passing one with zero assertions.
func (s *Stats) Status() TestStatus {
	if s.Failed > 0 || s.Errored > 0 {
		return TestStatusFail
	}
	if s.Total == 0 || s.Skipped == s.Total {
		return TestStatusSkip
	}
	return TestStatusPass
}
