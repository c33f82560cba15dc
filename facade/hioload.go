// File: facade/hioload.go
// Unified facade layer for hioload-io library.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HioloadIO aggregates the core components behind a single facade: chunk
// pool, worker executor, event loops with their timer scheduler, metrics,
// debug probes and the configuration store. It creates connections,
// dispatches message requests to workers and applies runtime reloads.

package facade

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-io/api"
	"github.com/momentics/hioload-io/control"
	"github.com/momentics/hioload-io/internal/concurrency"
	"github.com/momentics/hioload-io/internal/registry"
	"github.com/momentics/hioload-io/lifecycle"
	"github.com/momentics/hioload-io/pool"
)

// RequestProcessor handles one message request on a worker goroutine and
// returns the response bytes. It must not touch the message or the
// connection; completion is posted back to the connection loop.
type RequestProcessor func(r *lifecycle.Request) ([]byte, error)

// Option customizes New.
type Option func(*options)

type options struct {
	clock    clock.Clock
	logger   *slog.Logger
	registry prometheus.Registerer
	hooks    lifecycle.RequestHooks
}

// WithClock drives session timeouts from clk.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithLogger overrides the logger built from the log config.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers metrics on reg. Without it metrics are off
// unless metrics.enabled is set, in which case the default registerer is used.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithHooks installs request completion hooks on every connection.
func WithHooks(h lifecycle.RequestHooks) Option {
	return func(o *options) { o.hooks = h }
}

// HioloadIO is the main facade type.
// It implements api.GracefulShutdown to allow unified shutdown logic.
type HioloadIO struct {
	store    *control.ConfigStore
	chunks   *pool.ChunkPool
	executor *concurrency.Executor
	loops    []*concurrency.EventLoop
	sched    *concurrency.Scheduler
	metrics  *control.Metrics
	probes   *control.DebugProbes
	hooks    lifecycle.RequestHooks
	l        *slog.Logger

	mu    sync.Mutex
	conns *registry.Registry[*lifecycle.Connection]
	next  atomic.Uint64

	started  bool
	stopped  bool
	orphans  []func()
	drained  bool
	cancel   context.CancelFunc
	group    *errgroup.Group
	shutOnce sync.Once
	shutErr  error
}

// Ensure compliance with api.GracefulShutdown.
var _ api.GracefulShutdown = (*HioloadIO)(nil)

// New constructs the facade. A nil cfg uses control.DefaultConfig.
func New(cfg *control.Config, opts ...Option) (*HioloadIO, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, fn := range opts {
		fn(o)
	}
	if o.logger == nil {
		o.logger = control.NewLogger(cfg.Log, nil)
	}
	if o.registry == nil && cfg.Metrics.Enabled {
		o.registry = prometheus.DefaultRegisterer
	}

	h := &HioloadIO{
		store:  control.NewConfigStore(cfg),
		chunks: pool.NewChunkPool(cfg.Arena.MaxBytes),
		probes: control.NewDebugProbes(),
		hooks:  o.hooks,
		l:      o.logger,
		conns:  registry.New[*lifecycle.Connection](cfg.Loops * 4),
	}

	if o.registry != nil {
		m, err := control.NewMetrics(o.registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		h.metrics = m
	}

	exec, err := concurrency.NewExecutor(cfg.Executor.Workers, cfg.Executor.PreAlloc, h.l.With("component", "executor"))
	if err != nil {
		return nil, err
	}
	h.executor = exec

	h.loops = make([]*concurrency.EventLoop, cfg.Loops)
	for i := range h.loops {
		h.loops[i] = concurrency.NewEventLoop(cfg.LoopBatch, h.l.With("loop", i))
	}
	h.sched = concurrency.NewScheduler(o.clock, nil, h.l)

	control.RegisterRuntimeProbes(h.probes, h.chunks)
	h.probes.RegisterProbe("engine.stats", func() any { return h.Stats() })
	h.probes.RegisterProbe("executor", func() any { return h.executor.Stats() })

	h.store.OnReload(h.applyReload)
	return h, nil
}

// Start runs the event loops until ctx is done or Shutdown is called.
// Subsequent calls have no effect.
func (h *HioloadIO) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return api.ErrLoopClosed
	}
	if h.started {
		return nil
	}
	ctx, h.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, el := range h.loops {
		g.Go(func() error { return el.Run(gctx) })
	}
	h.group = g
	h.started = true
	h.l.Info("engine started", "loops", len(h.loops), "workers", h.executor.NumWorkers())
	return nil
}

// NewConnection creates a connection bound to the next loop in round robin.
// The connection is owned by that loop; use its Post for every mutation.
func (h *HioloadIO) NewConnection() (*lifecycle.Connection, error) {
	h.mu.Lock()
	stopped := h.stopped
	h.mu.Unlock()
	if stopped {
		return nil, api.ErrConnectionClosed
	}

	cfg := h.store.Snapshot()
	el := h.loops[int(h.next.Add(1)-1)%len(h.loops)]
	c, err := lifecycle.NewConnection(lifecycle.ConnConfig{
		DefaultMessageSize: cfg.Message.DefaultSize,
		DefaultTimeout:     cfg.Session.DefaultTimeout,
		Pool:               h.chunks,
		Loop:               el,
		Scheduler:          h.sched.Bind(el),
		Hooks:              h.hooks,
		Logger:             h.l,
		Metrics:            h.metrics,
		OnTeardown:         h.forget,
	})
	if err != nil {
		return nil, err
	}
	h.conns.Put(c.ID(), c)
	return c, nil
}

func (h *HioloadIO) forget(c *lifecycle.Connection) {
	h.conns.Delete(c.ID())
}

// Connections returns the number of connections not yet torn down.
func (h *HioloadIO) Connections() int {
	return h.conns.Len()
}

// Dispatch runs every pending request of m on the executor. Each request
// holds one message reference while in flight; the reference is dropped
// when its response buffer is flushed or discarded. Must run on the loop
// owning m.
func (h *HioloadIO) Dispatch(m *lifecycle.Message, proc RequestProcessor) error {
	c := m.Connection()
	var errs error
	for _, r := range m.Pending() {
		m.Retain()
		err := h.executor.Submit(func() {
			out, perr := h.process(proc, r)
			if err := c.Post(func() { h.finish(m, r, out, perr) }); err != nil {
				// no loop will flush a response; only reclaim
				h.adopt(c, func() { h.finish(m, r, nil, perr) }, err)
			}
		})
		if err != nil {
			m.Destroy(false)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// process runs proc, turning a panic into a request error so the
// completion still reaches the loop.
func (h *HioloadIO) process(proc RequestProcessor, r *lifecycle.Request) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			h.l.Error("request processor panic", "req", r.ID, "panic", p)
			out, err = nil, api.NewError(api.ErrCodeInternal, fmt.Sprintf("processor panic: %v", p))
		}
	}()
	return proc(r)
}

// adopt keeps a completion whose loop is gone. Shutdown runs adopted
// completions once every loop has stopped; later ones run at once, one at
// a time under mu.
func (h *HioloadIO) adopt(c *lifecycle.Connection, done func(), err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.drained {
		done()
		return
	}
	h.orphans = append(h.orphans, done)
	h.l.Debug("request completion deferred to shutdown", "conn", c.ID(), "err", err)
}

func (h *HioloadIO) finish(m *lifecycle.Message, r *lifecycle.Request, out []byte, err error) {
	if err != nil {
		r.RetCode = int(api.CodeOf(err))
		h.l.Debug("request failed", "req", r.ID, "err", err)
	}
	m.Complete(r)
	c := m.Connection()
	if len(out) == 0 || c.Closed() {
		m.Destroy(false)
		return
	}
	r.Out = out
	c.Output().Push(&lifecycle.OutBuffer{
		Data:      out,
		Owner:     m.Arena().ID(),
		OnRelease: m.OnBufferRelease,
	})
}

// Submit dispatches a task to the executor pool for asynchronous execution.
func (h *HioloadIO) Submit(task func()) error {
	return h.executor.Submit(task)
}

// Reload validates and applies cfg. Worker count and default message size
// take effect immediately; other values apply to new connections.
func (h *HioloadIO) Reload(cfg *control.Config) error {
	return h.store.Update(cfg)
}

func (h *HioloadIO) applyReload(old, cur *control.Config) {
	if old.Executor.Workers != cur.Executor.Workers {
		h.executor.Resize(cur.Executor.Workers)
	}
	if old.Message.DefaultSize != cur.Message.DefaultSize {
		for _, c := range h.conns.Snapshot() {
			c.SetDefaultMessageSize(cur.Message.DefaultSize)
		}
	}
	h.l.Info("config reloaded", "workers", h.executor.NumWorkers(), "message_size", cur.Message.DefaultSize)
}

// Config returns the current configuration snapshot.
func (h *HioloadIO) Config() *control.Config {
	return h.store.Snapshot()
}

// GetDebugAPI returns the probe registry.
func (h *HioloadIO) GetDebugAPI() api.Debug {
	return h.probes
}

// GetScheduler exposes the timer scheduler.
func (h *HioloadIO) GetScheduler() api.Scheduler {
	return h.sched
}

// GetExecutor exposes the worker pool.
func (h *HioloadIO) GetExecutor() api.Executor {
	return h.executor
}

// ChunkPool returns the pool backing every arena.
func (h *HioloadIO) ChunkPool() *pool.ChunkPool {
	return h.chunks
}

// Stats reports engine-wide counters.
func (h *HioloadIO) Stats() api.Stats {
	ps := h.chunks.Stats()
	pending := 0
	for _, el := range h.loops {
		pending += el.Pending()
	}
	return api.Stats{
		Connections:      h.Connections(),
		LiveArenas:       pool.LiveArenas(),
		ChunksInUse:      ps.InUse,
		BytesInUse:       ps.InUseBytes,
		Workers:          h.executor.NumWorkers(),
		PendingLoopTasks: pending,
	}
}

// Shutdown drains the executor, closes every connection on its loop,
// stops the loops and reports every failure. It runs once.
func (h *HioloadIO) Shutdown() error {
	h.shutOnce.Do(func() { h.shutErr = h.shutdown() })
	return h.shutErr
}

func (h *HioloadIO) shutdown() error {
	h.mu.Lock()
	h.stopped = true
	started := h.started
	h.mu.Unlock()
	conns := h.conns.Snapshot()

	err := h.executor.Close()

	var emu sync.Mutex
	for _, c := range conns {
		if perr := c.Post(func() {
			cerr := c.Close()
			emu.Lock()
			err = multierr.Append(err, cerr)
			emu.Unlock()
		}); perr != nil {
			emu.Lock()
			err = multierr.Append(err, fmt.Errorf("close connection %s: %w", c.ID(), perr))
			emu.Unlock()
		}
	}

	for _, el := range h.loops {
		el.Stop()
		if !started {
			el.RunPending()
		}
	}
	if started {
		h.cancel()
		emu.Lock()
		err = multierr.Append(err, h.group.Wait())
		emu.Unlock()
	}

	// loops are gone: completions that missed them run here
	h.mu.Lock()
	for _, done := range h.orphans {
		done()
	}
	h.orphans, h.drained = nil, true
	h.mu.Unlock()
	h.l.Info("engine stopped")
	return err
}
