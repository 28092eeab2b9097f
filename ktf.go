// Package ktf wires the registry, runner and reporting together into a
// long-running (or run-once) test service.
package ktf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sebfabre/ktf/exitcodes"
	"github.com/sebfabre/ktf/metrics"
	"github.com/sebfabre/ktf/registry"
	"github.com/sebfabre/ktf/reporting"
	"github.com/sebfabre/ktf/runner"
	"github.com/sebfabre/ktf/types"
)

// Service runs the registered test catalog, immediately on Start and then
// periodically at the configured interval.
type Service struct {
	ctx      context.Context
	config   *Config
	version  string
	registry *registry.Registry
	runner   runner.TestRunner
	sink     *reporting.TextSummarySink
	result   *runner.RunnerResult

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Service, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating service with config",
		"catalogFile", config.CatalogFile,
		"targetHandle", config.TargetHandle,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	reg, err := registry.New(registry.Config{
		Log:         config.Log,
		CatalogFile: config.CatalogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	return &Service{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		sink:             reporting.NewTextSummarySink(config.ReportDir),
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Registry returns the service's registry so callers can bind tests and
// contexts before Start.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Start runs the tests periodically at the configured interval.
func (s *Service) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			s.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	s.ctx = ctx
	s.done = make(chan struct{})
	s.running.Store(true)

	// The runner is created here rather than in New so it sees every test
	// bound between New and Start.
	testRunner, err := runner.NewTestRunner(runner.Config{
		Registry:     s.registry,
		Log:          s.config.Log,
		TargetHandle: s.config.TargetHandle,
	})
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create test runner: %w", err).Error(), exitcodes.RuntimeErr)
	}
	s.runner = testRunner

	if s.config.RunOnce {
		s.config.Log.Info("Starting ktf in run-once mode", "tests", s.registry.TestCount())
	} else {
		s.config.Log.Info("Starting ktf in continuous mode", "interval", s.config.RunInterval, "tests", s.registry.TestCount())
	}

	// Run tests immediately on startup
	err = s.runTests()
	if err != nil {
		// For runtime errors (like panics or configuration issues), return exit code 2
		s.config.Log.Error("Runtime error running tests", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	// If in run-once mode, trigger shutdown and return
	if s.config.RunOnce {
		s.config.Log.Info("Tests completed, exiting (run-once mode)")

		if s.result != nil && s.result.Status == types.TestStatusFail {
			s.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
			return NewTestFailureError(s.result.String())
		}

		// Only need to call this when we're in run-once mode and all tests passed
		go func() {
			s.shutdownCallback(nil)
		}()
		return nil
	}

	// Start a goroutine for periodic test execution
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.config.Log.Debug("Starting periodic test runner goroutine", "interval", s.config.RunInterval)

		for {
			select {
			case <-time.After(s.config.RunInterval):
				if !s.running.Load() {
					s.config.Log.Debug("Service stopped, exiting periodic test runner")
					return
				}

				s.config.Log.Info("Running periodic tests")
				if err := s.runTests(); err != nil {
					s.config.Log.Error("Error running periodic tests", "error", err)
				}

			case <-s.done:
				s.config.Log.Debug("Done signal received, stopping periodic test runner")
				return

			case <-ctx.Done():
				s.config.Log.Debug("Context canceled, stopping periodic test runner")
				s.running.Store(false)
				return
			}
		}
	}()
	s.config.Log.Debug("ktf started successfully")
	return nil
}

// runTests runs all tests and processes the results
func (s *Service) runTests() error {
	s.config.Log.Info("Running all tests...")
	result, err := s.runner.RunAllTests(s.ctx)
	if err != nil {
		// This is a runtime error (not a test failure)
		s.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}
	s.result = result

	s.printResultsTable(result)
	fmt.Println(s.result.String())

	metrics.RecordRun(
		result.RunID,
		string(result.Status),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Assertions,
		result.Duration,
	)
	for name, hr := range result.Handles {
		for _, tr := range hr.Tests {
			metrics.RecordTest(result.RunID, name, tr.DisplayName(), tr.Status)
		}
	}
	for _, tr := range result.Global {
		metrics.RecordTest(result.RunID, "", tr.DisplayName(), tr.Status)
	}

	if s.config.ReportDir != "" {
		if err := s.sink.WriteRun(result); err != nil {
			s.config.Log.Error("Failed to write run report", "error", err)
			metrics.RecordErrorDetails("report write failed", err)
		}
	}

	s.config.Log.Info("Test run completed", "run_id", result.RunID, "status", s.result.Status)
	return nil
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.config.Log.Info("Stopping ktf")

	if !s.running.Load() {
		s.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	// Update running state first to prevent new test runs
	s.running.Store(false)

	s.config.Log.Debug("Sending done signal to goroutines")
	close(s.done)

	s.registry.Cleanup()

	s.config.Log.Info("ktf stopped successfully")
	return nil
}

// Stopped returns true if the service is stopped.
func (s *Service) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (s *Service) WaitForShutdown(ctx context.Context) error {
	s.config.Log.Debug("Waiting for all goroutines to terminate")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.config.Log.Debug("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		s.config.Log.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
