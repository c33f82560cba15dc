// File: internal/concurrency/eventloop.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoop runs posted closures one at a time on a single goroutine.
// Connections bind to one loop; any mutation requested from another
// goroutine is posted here instead of taking locks on every field.
// The backlog is unbounded so a post from a worker never drops work.

package concurrency

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-io/api"
)

// EventLoop executes closures in FIFO order.
type EventLoop struct {
	mu        sync.Mutex
	backlog   *queue.Queue // of func()
	wake      chan struct{}
	batchSize int

	quitCh   chan struct{}
	quitOnce sync.Once
	doneCh   chan struct{}
	running  atomic.Bool
	closed   atomic.Bool
	executed atomic.Int64

	l *slog.Logger
}

// NewEventLoop creates a loop executing at most batchSize closures between
// checks of the quit signal.
func NewEventLoop(batchSize int, l *slog.Logger) *EventLoop {
	if batchSize <= 0 {
		batchSize = 64
	}
	if l == nil {
		l = slog.Default()
	}
	return &EventLoop{
		backlog:   queue.New(),
		wake:      make(chan struct{}, 1),
		batchSize: batchSize,
		quitCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		l:         l,
	}
}

// Post enqueues fn for execution on the loop goroutine.
func (el *EventLoop) Post(fn func()) error {
	if fn == nil {
		return api.ErrInvalidArgument
	}
	el.mu.Lock()
	if el.closed.Load() {
		el.mu.Unlock()
		return api.ErrLoopClosed
	}
	el.backlog.Add(fn)
	el.mu.Unlock()

	select {
	case el.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of closures waiting to run.
func (el *EventLoop) Pending() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.backlog.Length()
}

// Executed returns the number of closures run so far.
func (el *EventLoop) Executed() int64 {
	return el.executed.Load()
}

func (el *EventLoop) pop() (func(), bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.backlog.Length() == 0 {
		return nil, false
	}
	return el.backlog.Remove().(func()), true
}

func (el *EventLoop) runBatch(limit int) int {
	n := 0
	for limit <= 0 || n < limit {
		fn, ok := el.pop()
		if !ok {
			break
		}
		el.exec(fn)
		n++
	}
	return n
}

func (el *EventLoop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			el.l.Error("event loop task panicked", "panic", r)
		}
		el.executed.Add(1)
	}()
	fn()
}

// RunPending drains the backlog on the calling goroutine. It is meant for
// loops that are driven manually and does nothing while Run is active.
func (el *EventLoop) RunPending() int {
	if el.running.Load() {
		return 0
	}
	return el.runBatch(0)
}

// Run executes closures until Stop is called or ctx is done. Closures still
// queued when the loop stops are executed before Run returns.
func (el *EventLoop) Run(ctx context.Context) error {
	if !el.running.CompareAndSwap(false, true) {
		return nil
	}
	defer func() {
		el.closed.Store(true)
		el.runBatch(0)
		el.running.Store(false)
		close(el.doneCh)
	}()

	for {
		if el.runBatch(el.batchSize) > 0 {
			select {
			case <-el.quitCh:
				return nil
			default:
				continue
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-el.quitCh:
			return nil
		case <-el.wake:
		}
	}
}

// Stop signals Run to exit and waits for it. Further posts fail with
// api.ErrLoopClosed.
func (el *EventLoop) Stop() {
	el.mu.Lock()
	el.closed.Store(true)
	el.mu.Unlock()
	el.quitOnce.Do(func() { close(el.quitCh) })

	if el.running.Load() {
		<-el.doneCh
	}
}
