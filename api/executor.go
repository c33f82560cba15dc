// Package api
// Author: momentics
//
// Worker pool contract for running message requests off the event loop.

package api

// Executor runs request processors on worker goroutines. Tasks must not
// mutate connection state; they post their completion back to the loop.
type Executor interface {
	// Submit queues task. It fails with ErrExecutorClosed after Close.
	Submit(task func()) error

	// NumWorkers returns the worker capacity.
	NumWorkers() int

	// Resize changes the worker capacity; running tasks are not interrupted.
	Resize(newCount int)

	// Close waits for running tasks and rejects new ones.
	Close() error
}
