package runner

import (
	"github.com/sebfabre/ktf/assertions"
)

// Worker is an independently scheduled unit of work spawned from a test
// body. Assertions made by the worker record against the spawning test's
// recorder; a fatal assertion aborts only the worker's goroutine, whose
// completion is still signalled through deferred cleanup.
type Worker struct {
	name string
	t    *assertions.T
	fn   func(t *assertions.T)
	done chan struct{}
}

// NewWorker binds fn to the spawning test's recorder.
func NewWorker(name string, t *assertions.T, fn func(t *assertions.T)) *Worker {
	return &Worker{
		name: name,
		t:    t,
		fn:   fn,
		done: make(chan struct{}),
	}
}

// Name returns the worker name.
func (w *Worker) Name() string {
	return w.name
}

// Run starts the worker. Each worker runs to completion exactly once.
func (w *Worker) Run() {
	go func() {
		defer close(w.done)
		w.fn(w.t)
	}()
}

// WaitCompleted blocks until the worker has signalled completion.
func (w *Worker) WaitCompleted() {
	<-w.done
}
