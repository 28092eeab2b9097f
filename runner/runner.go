// Package runner dispatches the registered catalog: each test bound to a
// handle runs once per bound context (or once with no context), version
// mismatches skip the body entirely, and per-test outcomes roll up into
// handle and run aggregates.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sebfabre/ktf/assertions"
	"github.com/sebfabre/ktf/registry"
	"github.com/sebfabre/ktf/types"
)

// HandleResult captures aggregated results for one handle.
type HandleResult struct {
	Name     string
	Version  string
	Tests    []*types.TestResult
	Status   types.TestStatus
	Duration time.Duration
	Stats    types.Stats
}

// RunnerResult captures the complete test run results.
type RunnerResult struct {
	Handles    map[string]*HandleResult
	Global     []*types.TestResult // tests bound to no handle
	Status     types.TestStatus
	Duration   time.Duration
	Stats      types.Stats
	RunID      string
	Assertions uint64 // process-wide assertion tally for this run
}

// String returns a one-line summary of the run.
func (r *RunnerResult) String() string {
	return fmt.Sprintf("run %s: %s (%d tests: %d passed, %d failed, %d skipped, %d assertions in %.1fs)",
		r.RunID, r.Status, r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Skipped,
		r.Assertions, r.Duration.Seconds())
}

// TestRunner defines the interface for running the registered catalog.
type TestRunner interface {
	RunAllTests(ctx context.Context) (*RunnerResult, error)
	RunTest(ctx context.Context, meta types.TestMetadata, tctx *types.Context) *types.TestResult
}

// Config holds configuration for creating a new runner.
type Config struct {
	Registry     *registry.Registry
	Log          log.Logger
	TargetHandle string // run only this handle; empty runs everything
}

type runner struct {
	registry     *registry.Registry
	log          log.Logger
	targetHandle string
	runID        string
	tracer       trace.Tracer
}

// NewTestRunner creates a new test runner instance.
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.TargetHandle != "" {
		if _, ok := cfg.Registry.Handle(cfg.TargetHandle); !ok {
			return nil, fmt.Errorf("target handle %q not registered", cfg.TargetHandle)
		}
	}

	return &runner{
		registry:     cfg.Registry,
		log:          cfg.Log,
		targetHandle: cfg.TargetHandle,
		tracer:       otel.Tracer("test runner"),
	}, nil
}

// RunAllTests implements the TestRunner interface. The process-wide
// assertion counter is reset at the start of the run, so the reported tally
// covers exactly this run.
func (r *runner) RunAllTests(ctx context.Context) (*RunnerResult, error) {
	r.runID = uuid.New().String()
	defer func() { r.runID = "" }()

	assertions.Reset()

	start := time.Now()
	r.log.Debug("Running all tests", "run_id", r.runID)

	ctx, span := r.tracer.Start(ctx, "test run")
	defer span.End()

	result := &RunnerResult{
		Handles: make(map[string]*HandleResult),
		Stats:   types.Stats{StartTime: start},
		RunID:   r.runID,
	}

	r.registry.ForEachHandle(func(h *registry.Handle) bool {
		if r.targetHandle != "" && h.Name() != r.targetHandle {
			return true
		}
		hr := r.processHandle(ctx, h)
		result.Handles[h.Name()] = hr
		result.Stats.Merge(hr.Stats)
		return true
	})

	if r.targetHandle == "" {
		for _, meta := range r.registry.GlobalTests() {
			tr := r.RunTest(ctx, meta, nil)
			result.Global = append(result.Global, tr)
			result.Stats.Record(tr.Status)
		}
	}

	result.Duration = time.Since(start)
	result.Stats.EndTime = time.Now()
	result.Status = result.Stats.Status()
	result.Assertions = assertions.Count()

	r.log.Info("Test run completed",
		"run_id", r.runID,
		"status", result.Status,
		"tests", result.Stats.Total,
		"assertions", result.Assertions)
	return result, nil
}

// processHandle dispatches every test bound to h. On a version mismatch each
// bound test is recorded as skipped without invoking its body.
func (r *runner) processHandle(ctx context.Context, h *registry.Handle) *HandleResult {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("handle %s", h.Name()))
	defer span.End()

	start := time.Now()
	hr := &HandleResult{
		Name:    h.Name(),
		Version: h.Version(),
		Stats:   types.Stats{StartTime: start},
	}

	versionOK := h.VersionOK(r.registry.Version())
	if !versionOK {
		r.log.Warn("Handle version mismatch, skipping its tests",
			"handle", h.Name(), "declared", h.Version(), "running", r.registry.Version())
	}

	contexts := h.Contexts()
	for _, meta := range h.Tests() {
		if !versionOK {
			tr := &types.TestResult{Metadata: meta, Status: types.TestStatusSkip}
			hr.Tests = append(hr.Tests, tr)
			hr.Stats.Record(tr.Status)
			continue
		}
		if len(contexts) == 0 {
			tr := r.RunTest(ctx, meta, nil)
			hr.Tests = append(hr.Tests, tr)
			hr.Stats.Record(tr.Status)
			continue
		}
		// One invocation per context, in container traversal order.
		for i := range contexts {
			tr := r.RunTest(ctx, meta, &contexts[i])
			hr.Tests = append(hr.Tests, tr)
			hr.Stats.Record(tr.Status)
		}
	}

	hr.Duration = time.Since(start)
	hr.Stats.EndTime = time.Now()
	hr.Status = hr.Stats.Status()
	return hr
}

// RunTest executes a single invocation of meta's body with tctx. The body
// runs on its own goroutine so a fatal assertion aborts only the body, and a
// panic is recovered and recorded as a runtime error rather than a failure.
func (r *runner) RunTest(ctx context.Context, meta types.TestMetadata, tctx *types.Context) *types.TestResult {
	_, span := r.tracer.Start(ctx, fmt.Sprintf("test %s", meta.Name))
	defer span.End()

	tr := &types.TestResult{Metadata: meta}
	if tctx != nil {
		tr.Context = tctx.Name
	}

	t := assertions.NewT(meta.Name, r.log)
	start := time.Now()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if rec := recover(); rec != nil {
				tr.Err = fmt.Errorf("panic: %v", rec)
			}
		}()
		meta.Func(t, tctx)
	}()
	<-done

	tr.Duration = time.Since(start)
	tr.Failures = t.Failures()
	switch {
	case tr.Err != nil:
		tr.Status = types.TestStatusError
	case t.Failed():
		tr.Status = types.TestStatusFail
	default:
		tr.Status = types.TestStatusPass
	}

	r.log.Debug("Test finished",
		"test", tr.DisplayName(), "status", tr.Status, "duration", tr.Duration)
	return tr
}
