package ktf

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebfabre/ktf/assertions"
	"github.com/sebfabre/ktf/types"
)

func quietLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func TestRunOnceAllPass(t *testing.T) {
	cfg := &Config{
		ReportDir: t.TempDir(),
		RunOnce:   true,
		Log:       quietLogger(),
	}

	shutdown := make(chan error, 1)
	svc, err := New(context.Background(), cfg, "v0.9.0", func(err error) { shutdown <- err })
	require.NoError(t, err)

	svc.Registry().BindTest(nil, "always_passes", func(tt *assertions.T, _ *types.Context) {
		tt.Expect(true, "fine")
	})

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, <-shutdown)

	// One report directory per run.
	entries, err := os.ReadDir(cfg.ReportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunOnceFailureReturnsTestFailure(t *testing.T) {
	cfg := &Config{
		ReportDir: t.TempDir(),
		RunOnce:   true,
		Log:       quietLogger(),
	}

	svc, err := New(context.Background(), cfg, "v0.9.0", func(error) {})
	require.NoError(t, err)

	svc.Registry().BindTest(nil, "always_fails", func(tt *assertions.T, _ *types.Context) {
		tt.Expect(false, "broken on purpose")
	})

	err = svc.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
}

func TestContinuousModeStopsCleanly(t *testing.T) {
	cfg := &Config{
		ReportDir:   t.TempDir(),
		RunInterval: 20 * time.Millisecond,
		Log:         quietLogger(),
	}

	svc, err := New(context.Background(), cfg, "v0.9.0", func(error) {})
	require.NoError(t, err)

	svc.Registry().BindTest(nil, "always_passes", func(tt *assertions.T, _ *types.Context) {
		tt.Expect(true, "fine")
	})

	require.NoError(t, svc.Start(context.Background()))
	assert.False(t, svc.Stopped())

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, svc.Stop(context.Background()))
	assert.True(t, svc.Stopped())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.WaitForShutdown(ctx))

	// Stop is idempotent.
	require.NoError(t, svc.Stop(context.Background()))
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "v0.9.0", func(error) {})
	assert.Error(t, err)
}
