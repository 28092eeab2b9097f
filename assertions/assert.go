// Package assertions provides the recorder handed to test bodies and the
// process-wide assertion counter. Expect variants record and continue;
// Assert variants record and abort the current body via runtime.Goexit, so
// the runner (which executes bodies on their own goroutine) regains control
// and deferred cleanup still runs.
package assertions

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Failure describes one failed assertion.
type Failure struct {
	Fatal bool
	Msg   string
}

func (f Failure) String() string {
	if f.Fatal {
		return "assert: " + f.Msg
	}
	return "expect: " + f.Msg
}

// T is the per-test recorder. Recording is mutex-guarded: worker goroutines
// spawned by a test body may assert on the spawning test's T.
type T struct {
	name string
	log  log.Logger

	mu       sync.Mutex
	failed   bool
	failures []Failure
}

// NewT creates a recorder for the named test.
func NewT(name string, logger log.Logger) *T {
	if logger == nil {
		logger = log.New()
	}
	return &T{name: name, log: logger}
}

// Name returns the test name the recorder was created for.
func (t *T) Name() string {
	return t.name
}

// Logf emits a log line attributed to the test.
func (t *T) Logf(format string, args ...any) {
	t.log.Info(fmt.Sprintf(format, args...), "test", t.name)
}

// record tallies one evaluation (pass or fail) on the process counter and,
// on failure, marks the test failed. Fatal failures abort the calling
// goroutine.
func (t *T) record(ok bool, fatal bool, format string, args ...any) bool {
	process.Inc()
	if ok {
		return true
	}
	f := Failure{Fatal: fatal, Msg: fmt.Sprintf(format, args...)}
	t.mu.Lock()
	t.failed = true
	t.failures = append(t.failures, f)
	t.mu.Unlock()
	t.log.Warn("assertion failed", "test", t.name, "fatal", fatal, "msg", f.Msg)
	if fatal {
		runtime.Goexit()
	}
	return false
}

// Expect records a non-fatal assertion; execution continues either way.
func (t *T) Expect(cond bool, format string, args ...any) bool {
	return t.record(cond, false, format, args...)
}

// ExpectEqual records a non-fatal equality assertion.
func (t *T) ExpectEqual(want, got any) bool {
	return t.record(equal(want, got), false, "expected %v, got %v", want, got)
}

// ExpectNotNil records a non-fatal non-nil assertion.
func (t *T) ExpectNotNil(v any) bool {
	return t.record(!isNil(v), false, "expected non-nil value")
}

// ExpectNoError records a non-fatal no-error assertion.
func (t *T) ExpectNoError(err error) bool {
	return t.record(err == nil, false, "unexpected error: %v", err)
}

// Assert records a fatal assertion; on failure the test body is aborted and
// control transfers to its deferred cleanup.
func (t *T) Assert(cond bool, format string, args ...any) {
	t.record(cond, true, format, args...)
}

// AssertEqual records a fatal equality assertion.
func (t *T) AssertEqual(want, got any) {
	t.record(equal(want, got), true, "expected %v, got %v", want, got)
}

// AssertNotNil records a fatal non-nil assertion.
func (t *T) AssertNotNil(v any) {
	t.record(!isNil(v), true, "expected non-nil value")
}

// AssertNoError records a fatal no-error assertion.
func (t *T) AssertNoError(err error) {
	t.record(err == nil, true, "unexpected error: %v", err)
}

// Failed reports whether any assertion on t has failed.
func (t *T) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// Failures returns a copy of the recorded failures.
func (t *T) Failures() []Failure {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Failure, len(t.failures))
	copy(out, t.failures)
	return out
}

func equal(want, got any) bool {
	if want == nil || got == nil {
		return want == got
	}
	return reflect.DeepEqual(want, got)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
