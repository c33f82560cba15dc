// File: lifecycle/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection state the message and session lifecycles hang off: message
// list, pending-session list with its packet id index, outstanding counter,
// output queue, loop and timer.

package lifecycle

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/momentics/hioload-io/api"
	"github.com/momentics/hioload-io/control"
	"github.com/momentics/hioload-io/internal/concurrency"
	"github.com/momentics/hioload-io/internal/list"
	"github.com/momentics/hioload-io/pool"
)

// RequestHooks are the request completion notifications of a connection.
type RequestHooks struct {
	// ServerDone runs once per message request, after it left its list.
	ServerDone func(r *Request)
	// ClientDone runs once per session, when it leaves the pending list.
	ClientDone func(r *Request)
}

// ConnConfig configures a Connection. Zero fields take defaults.
type ConnConfig struct {
	DefaultMessageSize int
	DefaultTimeout     time.Duration
	Pool               *pool.ChunkPool
	Loop               *concurrency.EventLoop
	Scheduler          api.Scheduler
	Hooks              RequestHooks
	Logger             *slog.Logger
	Metrics            *control.Metrics
	// OnTeardown runs once, after Close, when no session is outstanding.
	OnTeardown func(c *Connection)
}

// Connection is owned by its event loop.
type Connection struct {
	id    uuid.UUID
	pool  *pool.ChunkPool
	loop  *concurrency.EventLoop
	sched api.Scheduler
	hooks RequestHooks

	// arena reference count is the outstanding-session counter plus one
	// for the open connection itself.
	arena *pool.Arena

	defaultSize    atomic.Int64
	defaultTimeout time.Duration

	messages list.List[*Message]
	sessions list.List[*Session]
	byID     map[uint64]*Session
	nextID   uint64
	out      *OutputQueue

	closed     bool
	tornDown   atomic.Bool
	onTeardown func(*Connection)

	l       *slog.Logger
	metrics *control.Metrics
}

// NewConnection creates an open connection.
func NewConnection(cfg ConnConfig) (*Connection, error) {
	if cfg.DefaultMessageSize <= 0 {
		cfg.DefaultMessageSize = control.DefaultConfig().Message.DefaultSize
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = control.DefaultConfig().Session.DefaultTimeout
	}
	if cfg.Pool == nil {
		cfg.Pool = pool.DefaultChunkPool()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Loop == nil {
		cfg.Loop = concurrency.NewEventLoop(0, cfg.Logger)
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = concurrency.NewScheduler(nil, cfg.Loop, cfg.Logger)
	}
	if cfg.Hooks.ServerDone == nil {
		cfg.Hooks.ServerDone = func(*Request) {}
	}
	if cfg.Hooks.ClientDone == nil {
		cfg.Hooks.ClientDone = func(*Request) {}
	}

	arena, err := cfg.Pool.NewArena(pool.Alignment)
	if err != nil {
		return nil, fmt.Errorf("connection arena: %w", err)
	}
	arena.SetRef(1)

	id := uuid.New()
	c := &Connection{
		id:             id,
		pool:           cfg.Pool,
		loop:           cfg.Loop,
		sched:          cfg.Scheduler,
		hooks:          cfg.Hooks,
		arena:          arena,
		defaultTimeout: cfg.DefaultTimeout,
		byID:           make(map[uint64]*Session),
		out:            NewOutputQueue(),
		onTeardown:     cfg.OnTeardown,
		l:              cfg.Logger.With("conn", id.String()),
		metrics:        cfg.Metrics,
	}
	c.defaultSize.Store(int64(cfg.DefaultMessageSize))
	return c, nil
}

// ID returns the connection id.
func (c *Connection) ID() uuid.UUID { return c.id }

// Loop returns the owning event loop.
func (c *Connection) Loop() *concurrency.EventLoop { return c.loop }

// Output returns the output queue.
func (c *Connection) Output() *OutputQueue { return c.out }

// Messages returns the linked messages in order.
func (c *Connection) Messages() []*Message { return c.messages.Values() }

// PendingSessions returns the sessions awaiting a reply, oldest first.
func (c *Connection) PendingSessions() []*Session { return c.sessions.Values() }

// Outstanding returns the number of pending sessions.
func (c *Connection) Outstanding() int { return c.sessions.Len() }

// Closed reports whether Close has run.
func (c *Connection) Closed() bool { return c.closed }

// TornDown reports whether the connection arena has been reclaimed.
func (c *Connection) TornDown() bool { return c.tornDown.Load() }

// DefaultMessageSize returns the arena size of new messages.
func (c *Connection) DefaultMessageSize() int { return int(c.defaultSize.Load()) }

// SetDefaultMessageSize changes the size for messages created afterwards.
func (c *Connection) SetDefaultMessageSize(n int) {
	if n > 0 {
		c.defaultSize.Store(int64(n))
	}
}

// Post runs fn on the connection loop.
func (c *Connection) Post(fn func()) error {
	return c.loop.Post(fn)
}

// Send queues s on the connection: it assigns the packet id, links the
// session into the pending list, queues data behind a position marker and
// arms the timeout. A zero timeout uses the session or connection default.
func (c *Connection) Send(s *Session, timeout time.Duration, data ...[]byte) error {
	if c.closed {
		return api.ErrConnectionClosed
	}
	if s.State() != api.SessionIdle || s.Destroyed() {
		return fmt.Errorf("session in state %s: %w", s.State(), api.ErrInvalidArgument)
	}
	if timeout <= 0 {
		timeout = s.timeout
	}
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	c.nextID++
	id := c.nextID
	t, err := c.sched.Schedule(timeout, func() {
		if err := s.Process(true); err != nil {
			s.l.Warn("session timeout handler failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("arm session timer: %w", err)
	}

	s.req.ID = id
	s.conn = c
	s.timeout = timeout
	s.l = c.l.With("session", id)
	if s.metrics == nil {
		s.metrics = c.metrics
	}

	owner := s.arena.ID()
	s.out = c.out
	s.mark = c.out.Mark(owner)
	for _, d := range data {
		c.out.Push(&OutBuffer{Data: d, Owner: owner})
	}

	c.sessions.PushBack(&s.node)
	c.byID[id] = s
	c.arena.Retain()
	s.state.Store(int32(api.SessionPending))
	s.timer = t
	c.metrics.SessionSent()
	s.l.Debug("session sent", "timeout", timeout, "buffers", len(data))
	return nil
}

// Reply matches payload to the pending session id and delivers it.
// A session already finalized by its timeout yields ErrNotFound.
func (c *Connection) Reply(id uint64, payload []byte) error {
	s, ok := c.byID[id]
	if !ok || !s.detach() {
		return api.Wrap(api.ErrCodeNotFound, api.ErrNotFound, "no pending session").
			WithContext("session", id)
	}
	if payload == nil {
		payload = []byte{}
	}
	s.req.In = payload
	return s.Process(false)
}

// Close finalizes every pending session as abandoned, destroys every
// linked message, discards the output queue and drops the connection's own
// reference. Teardown runs once no session is outstanding.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	for _, s := range c.sessions.Values() {
		err = multierr.Append(err, s.Process(true))
	}
	for _, m := range c.messages.Values() {
		m.Destroy(true)
	}
	if n := c.out.Discard(); n > 0 {
		c.l.Debug("discarded unsent output", "buffers", n)
	}
	c.releaseOutstanding()
	return err
}

func (c *Connection) releaseOutstanding() {
	if !c.arena.Release() {
		return
	}
	if !c.tornDown.CompareAndSwap(false, true) {
		return
	}
	if c.onTeardown != nil {
		c.onTeardown(c)
	}
	c.arena.Free()
	c.l.Debug("connection torn down")
}

func (c *Connection) requestDone(r *Request) {
	c.hooks.ServerDone(r)
	c.metrics.RequestFinished()
}
