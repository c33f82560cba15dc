// File: lifecycle/message.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Message is one inbound read unit. Its arena holds the message header,
// the input buffer and the requests parsed out of it; all of them are
// reclaimed together when the arena reference count drops to zero.

package lifecycle

import (
	"fmt"
	"unsafe"

	"github.com/momentics/hioload-io/api"
	"github.com/momentics/hioload-io/internal/list"
	"github.com/momentics/hioload-io/pool"
)

var (
	messageHeaderSize = int(unsafe.Sizeof(Message{}))
	requestHeaderSize = int(unsafe.Sizeof(Request{}))
)

// Message owns an arena, an input buffer and two ordered request lists.
type Message struct {
	conn   *Connection
	arena  *pool.Arena
	status api.MessageStatus
	input  []byte

	pending   list.List[*Request]
	completed list.List[*Request]
	requests  int

	node list.Node[*Message]
}

// NewMessage creates a message on c and links it at the tail of the
// connection's message list. Nothing is linked when an allocation fails.
func NewMessage(c *Connection) (*Message, error) {
	arena, err := c.pool.NewArena(c.DefaultMessageSize())
	if err != nil {
		c.metrics.AllocFailed("message")
		return nil, fmt.Errorf("message arena: %w", err)
	}
	// Message lives on the heap; the header bytes are only reserved so that
	// input is sized as the chunk space left after a header.
	if _, err := arena.Alloc(messageHeaderSize); err != nil {
		arena.Free()
		c.metrics.AllocFailed("message")
		return nil, fmt.Errorf("message header: %w", err)
	}
	size := arena.Avail()
	if size <= 0 {
		size = pool.Alignment
	}
	input, err := arena.Alloc(size)
	if err != nil {
		arena.Free()
		c.metrics.AllocFailed("message")
		return nil, fmt.Errorf("message input: %w", err)
	}

	m := &Message{
		conn:   c,
		arena:  arena,
		status: api.MessageActive,
		input:  input,
	}
	m.node.Value = m
	arena.SetRef(1)
	c.messages.PushBack(&m.node)
	c.metrics.MessageCreated()
	return m, nil
}

// Connection returns the owning connection.
func (m *Message) Connection() *Connection { return m.conn }

// Arena returns the backing arena.
func (m *Message) Arena() *pool.Arena { return m.arena }

// Status returns the lifecycle status.
func (m *Message) Status() api.MessageStatus { return m.status }

// Input returns the input buffer; nil once the message is reclaimed.
func (m *Message) Input() []byte { return m.input }

// RequestCount returns the number of requests created on the message.
func (m *Message) RequestCount() int { return m.requests }

// Linked reports whether the message is in its connection's list.
func (m *Message) Linked() bool { return m.node.Linked() }

// Pending returns the pending requests in order.
func (m *Message) Pending() []*Request { return m.pending.Values() }

// Completed returns the completed requests in order.
func (m *Message) Completed() []*Request { return m.completed.Values() }

// NewRequest carves a request with an outSize byte response buffer from the
// message arena and appends it to the pending list.
func (m *Message) NewRequest(outSize int) (*Request, error) {
	if m.status != api.MessageActive {
		return nil, fmt.Errorf("message %d is %s: %w", m.arena.ID(), m.status, api.ErrInvalidArgument)
	}
	if _, err := m.arena.Alloc(requestHeaderSize); err != nil {
		m.conn.metrics.AllocFailed("request")
		return nil, fmt.Errorf("request header: %w", err)
	}
	r := &Request{msg: m}
	if outSize > 0 {
		out, err := m.arena.Alloc(outSize)
		if err != nil {
			m.conn.metrics.AllocFailed("request")
			return nil, fmt.Errorf("request buffer: %w", err)
		}
		r.Out = out
	}
	m.AddRequest(r)
	return r, nil
}

// AddRequest appends r to the pending list. It does not take an arena
// reference; callers that let r outlive the message creator call Retain.
func (m *Message) AddRequest(r *Request) {
	r.msg = m
	r.node.Value = r
	m.pending.PushBack(&r.node)
	m.requests++
}

// Complete moves r from the pending to the completed list. It reports
// false when r was not pending.
func (m *Message) Complete(r *Request) bool {
	if !m.pending.Remove(&r.node) {
		return false
	}
	m.completed.PushBack(&r.node)
	return true
}

// Retain adds an arena owner, typically a request in flight on a worker.
func (m *Message) Retain() {
	m.arena.Retain()
}

// Destroy drops one owner. An explicit destroy also marks the message as
// dying and unlinks it so the connection never iterates it again. The
// creator's reference is dropped by the first explicit destroy only, so a
// creator destroying after Connection.Close is a no-op. The caller that
// drops the last owner resolves every outstanding request, pending ones
// first, and frees the arena.
func (m *Message) Destroy(explicit bool) {
	c := m.conn
	if explicit {
		if m.status == api.MessageDestroying {
			return
		}
		m.status = api.MessageDestroying
		c.messages.Remove(&m.node)
	}
	if !m.arena.Release() {
		return
	}

	done := func(n *list.Node[*Request]) { c.requestDone(n.Value) }
	m.pending.Drain(done)
	m.completed.Drain(done)

	c.messages.Remove(&m.node)
	m.input = nil
	m.arena.Free()
	c.metrics.MessageDestroyed()
	c.l.Debug("message reclaimed", "arena", m.arena.ID(), "requests", m.requests)
}

// OnBufferRelease is the OutBuffer release callback for buffers whose
// bytes live in the message arena.
func (m *Message) OnBufferRelease(*OutBuffer) {
	m.Destroy(false)
}
