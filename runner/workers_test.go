package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sebfabre/ktf/assertions"
)

func TestWorkerFatalAbortsOnlyTheWorker(t *testing.T) {
	tt := assertions.NewT("spawner", nil)

	reachedAfterFatal := false
	w := NewWorker("doomed", tt, func(wt *assertions.T) {
		wt.Assert(false, "fatal in worker")
		reachedAfterFatal = true
	})
	w.Run()
	w.WaitCompleted()

	assert.False(t, reachedAfterFatal, "fatal assertion ends the worker")
	assert.True(t, tt.Failed(), "failure lands on the spawning test")
}

func TestWorkerRunsToCompletion(t *testing.T) {
	tt := assertions.NewT("spawner", nil)

	ran := false
	w := NewWorker("fine", tt, func(wt *assertions.T) {
		ran = true
	})
	assert.Equal(t, "fine", w.Name())
	w.Run()
	w.WaitCompleted()

	assert.True(t, ran)
	assert.False(t, tt.Failed())
}
