// File: lifecycle/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session is one outbound call awaiting a reply or a timeout. It owns a
// single-owner arena holding its header and payload and embeds exactly one
// Request.

package lifecycle

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/momentics/hioload-io/api"
	"github.com/momentics/hioload-io/control"
	"github.com/momentics/hioload-io/internal/list"
	"github.com/momentics/hioload-io/pool"
)

var sessionHeaderSize = int(unsafe.Sizeof(Session{}))

// Handler receives the outcome of a session.
//
// OnComplete runs once per session, with r.In set to the reply or nil on
// timeout. After OnComplete the session belongs to the handler, which
// calls Destroy when done with it. OnAbandon runs from Destroy.
type Handler interface {
	OnComplete(r *Request) error
	OnAbandon(r *Request)
}

// HandlerFunc adapts a function to a Handler without abandon cleanup.
type HandlerFunc func(r *Request) error

func (f HandlerFunc) OnComplete(r *Request) error { return f(r) }
func (f HandlerFunc) OnAbandon(*Request)          {}

// SessionOption customizes a session.
type SessionOption func(*Session)

// WithSessionPool allocates the session arena from p.
func WithSessionPool(p *pool.ChunkPool) SessionOption {
	return func(s *Session) { s.pool = p }
}

// WithSessionLogger sets the logger used before the session is sent.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.l = l }
}

// WithSessionMetrics sets the collectors used before the session is sent.
func WithSessionMetrics(m *control.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// Session tracks one outstanding call.
type Session struct {
	pool    *pool.ChunkPool
	arena   *pool.Arena
	req     Request
	payload []byte

	conn    *Connection
	node    list.Node[*Session]
	timer   api.Cancelable
	timeout time.Duration
	handler Handler

	async bool
	// msg is a weak message reference held while async. The session owns
	// exactly one arena reference on it, given back by Destroy.
	msg *Message

	out  *OutputQueue
	mark *OutBuffer

	state     atomic.Int32
	delivered atomic.Bool
	destroyed atomic.Bool

	l       *slog.Logger
	metrics *control.Metrics
}

// NewSession creates a session whose arena holds payloadSize zeroed bytes.
func NewSession(payloadSize int, opts ...SessionOption) (*Session, error) {
	if payloadSize < 0 {
		return nil, fmt.Errorf("session payload %d: %w", payloadSize, api.ErrInvalidArgument)
	}
	s := &Session{pool: pool.DefaultChunkPool(), l: slog.Default()}
	for _, o := range opts {
		o(s)
	}

	arena, err := s.pool.NewArena(sessionHeaderSize + payloadSize)
	if err != nil {
		s.metrics.AllocFailed("session")
		return nil, fmt.Errorf("session arena: %w", err)
	}
	// sizing only: payload starts where an in-arena header would end
	if _, err := arena.Calloc(sessionHeaderSize); err != nil {
		arena.Free()
		s.metrics.AllocFailed("session")
		return nil, fmt.Errorf("session header: %w", err)
	}
	if payloadSize > 0 {
		if s.payload, err = arena.Calloc(payloadSize); err != nil {
			arena.Free()
			s.metrics.AllocFailed("session")
			return nil, fmt.Errorf("session payload: %w", err)
		}
	}
	arena.SetRef(1)
	s.arena = arena
	s.req.sess = s
	s.req.Out = s.payload
	s.req.node.Value = &s.req
	s.node.Value = s
	s.state.Store(int32(api.SessionIdle))
	return s, nil
}

// Arena returns the session arena.
func (s *Session) Arena() *pool.Arena { return s.arena }

// Request returns the embedded request.
func (s *Session) Request() *Request { return &s.req }

// ID returns the packet id assigned by Send; zero before.
func (s *Session) ID() uint64 { return s.req.ID }

// Payload returns the payload carved from the session arena.
func (s *Session) Payload() []byte { return s.payload }

// State returns the current lifecycle state.
func (s *Session) State() api.SessionState { return api.SessionState(s.state.Load()) }

// Connection returns the connection the session was sent on, if any.
func (s *Session) Connection() *Connection { return s.conn }

// SetHandler sets the delivery target.
func (s *Session) SetHandler(h Handler) { s.handler = h }

// SetTimeout overrides the connection default timeout for Send.
func (s *Session) SetTimeout(d time.Duration) { s.timeout = d }

// Timeout returns the configured timeout.
func (s *Session) Timeout() time.Duration { return s.timeout }

// Async reports whether the session carries a message reference.
func (s *Session) Async() bool { return s.async }

// SetAsync marks the session async and, when m is not nil, keeps m alive
// until Destroy by taking one arena reference on it.
func (s *Session) SetAsync(m *Message) {
	s.async = true
	if m != nil && s.msg == nil {
		m.Retain()
		s.msg = m
	}
}

// AsyncMessage returns the weak message reference.
func (s *Session) AsyncMessage() *Message { return s.msg }

// Destroyed reports whether Destroy has run.
func (s *Session) Destroyed() bool { return s.destroyed.Load() }

// Destroy abandons the session and frees its arena. Only the first call
// has an effect. A session still pending is detached first.
func (s *Session) Destroy() {
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}
	if s.detach() && s.req.In == nil {
		s.purgeOutput()
	}
	if s.handler != nil {
		s.handler.OnAbandon(&s.req)
	}
	if s.async && s.msg != nil {
		m := s.msg
		s.msg = nil
		if m.arena.Freed() {
			s.l.Warn("async message already reclaimed", "session", s.req.ID, "arena", m.arena.ID())
		} else {
			m.Destroy(false)
		}
	}
	s.state.Store(int32(api.SessionGone))
	if s.arena.Release() {
		s.arena.Free()
	}
}
