// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer scheduler on an injectable clock. When bound to an EventLoop the
// callback runs on that loop, so timer firing is serialized with every
// other mutation of the connection.

package concurrency

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/momentics/hioload-io/api"
)

const (
	timerArmed int32 = iota
	timerFired
	timerCanceled
)

// Scheduler implements api.Scheduler.
type Scheduler struct {
	clock clock.Clock
	loop  *EventLoop
	l     *slog.Logger
}

var _ api.Scheduler = (*Scheduler)(nil)

// NewScheduler creates a scheduler. A nil clock uses the wall clock and a
// nil loop runs callbacks on the timer goroutine.
func NewScheduler(clk clock.Clock, loop *EventLoop, l *slog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if l == nil {
		l = slog.Default()
	}
	return &Scheduler{clock: clk, loop: loop, l: l}
}

// Bind returns a scheduler sharing the clock whose callbacks run on loop.
func (s *Scheduler) Bind(loop *EventLoop) *Scheduler {
	return &Scheduler{clock: s.clock, loop: loop, l: s.l}
}

// Schedule runs fn once after delay unless canceled first.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) (api.Cancelable, error) {
	if fn == nil {
		return nil, api.ErrInvalidArgument
	}
	t := &timerTask{fn: fn, done: make(chan struct{})}
	t.timer = s.clock.AfterFunc(delay, func() {
		if s.loop == nil {
			t.fire()
			return
		}
		if err := s.loop.Post(t.fire); err != nil {
			s.l.Warn("drop timer callback", "err", err)
		}
	})
	return t, nil
}

// Cancel cancels c; it fails with api.ErrNotFound when c already ran or was
// canceled.
func (s *Scheduler) Cancel(c api.Cancelable) error {
	if c == nil || !c.Cancel() {
		return api.ErrNotFound
	}
	return nil
}

// Now returns the scheduler clock time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Clock exposes the underlying clock.
func (s *Scheduler) Clock() clock.Clock {
	return s.clock
}

type timerTask struct {
	timer *clock.Timer
	fn    func()
	state atomic.Int32
	done  chan struct{}
}

func (t *timerTask) fire() {
	if !t.state.CompareAndSwap(timerArmed, timerFired) {
		return
	}
	defer close(t.done)
	t.fn()
}

// Cancel prevents a callback that has not started yet, including one
// already posted to the loop.
func (t *timerTask) Cancel() bool {
	if !t.state.CompareAndSwap(timerArmed, timerCanceled) {
		return false
	}
	t.timer.Stop()
	close(t.done)
	return true
}

func (t *timerTask) Done() <-chan struct{} {
	return t.done
}
