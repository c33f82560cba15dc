// File: internal/concurrency/executor.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches request processing across a bounded goroutine pool.
// Tasks never touch connection state directly; they post back to the
// owning EventLoop.

package concurrency

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/momentics/hioload-io/api"
)

const closeTimeout = 5 * time.Second

// Executor implements api.Executor on an ants pool.
type Executor struct {
	pool     *ants.Pool
	preAlloc bool
	l        *slog.Logger

	// statistics
	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	panics         atomic.Int64
}

var _ api.Executor = (*Executor)(nil)

// NewExecutor creates an Executor with numWorkers workers.
// If numWorkers <= 0, defaults to runtime.NumCPU().
func NewExecutor(numWorkers int, preAlloc bool, l *slog.Logger) (*Executor, error) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if l == nil {
		l = slog.Default()
	}
	e := &Executor{preAlloc: preAlloc, l: l}
	p, err := ants.NewPool(numWorkers,
		ants.WithPreAlloc(preAlloc),
		ants.WithLogger(antsLogger{l}),
		ants.WithPanicHandler(func(r any) {
			e.panics.Add(1)
			l.Error("executor task panicked", "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	e.pool = p
	return e, nil
}

// Submit enqueues a task, blocking while every worker is busy.
func (e *Executor) Submit(task func()) error {
	if task == nil {
		return api.ErrInvalidArgument
	}
	e.totalTasks.Add(1)
	err := e.pool.Submit(func() {
		defer e.completedTasks.Add(1)
		task()
	})
	if err != nil {
		e.totalTasks.Add(-1)
		if errors.Is(err, ants.ErrPoolClosed) {
			return api.ErrExecutorClosed
		}
		return fmt.Errorf("submit task: %w", err)
	}
	return nil
}

// NumWorkers returns the pool capacity.
func (e *Executor) NumWorkers() int {
	return e.pool.Cap()
}

// Resize adjusts the capacity. Pools created with preallocation keep their
// original size.
func (e *Executor) Resize(newCount int) {
	if newCount <= 0 || e.preAlloc {
		return
	}
	e.pool.Tune(newCount)
}

// Close waits for running tasks up to a fixed timeout and releases workers.
func (e *Executor) Close() error {
	if e.pool.IsClosed() {
		return nil
	}
	if err := e.pool.ReleaseTimeout(closeTimeout); err != nil {
		return fmt.Errorf("release worker pool: %w", err)
	}
	return nil
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	completed := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": completed,
		"pending_tasks":   total - completed,
		"panics":          e.panics.Load(),
		"running":         int64(e.pool.Running()),
		"num_workers":     int64(e.NumWorkers()),
	}
}

type antsLogger struct {
	l *slog.Logger
}

func (a antsLogger) Printf(format string, args ...any) {
	a.l.Warn(fmt.Sprintf(format, args...), "component", "executor")
}
