// File: lifecycle/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package lifecycle

import (
	"github.com/momentics/hioload-io/internal/list"
	"github.com/momentics/hioload-io/pool"
)

// Request correlates one call with its answer. It is borrowed from the
// arena of the Message or Session that created it and belongs to at most
// one request list at a time.
type Request struct {
	msg  *Message
	sess *Session

	// ID is the packet id used to match a reply.
	ID uint64
	// In holds the received payload: the inbound request on the server
	// side, the reply on the client side. A nil In on a session means no
	// reply arrived.
	In []byte
	// Out holds the outbound payload.
	Out     []byte
	RetCode int
	Args    any

	node list.Node[*Request]
}

// Message returns the owning message on the server side.
func (r *Request) Message() (*Message, bool) {
	return r.msg, r.msg != nil
}

// Session returns the owning session on the client side.
func (r *Request) Session() (*Session, bool) {
	return r.sess, r.sess != nil
}

// Arena returns the arena backing the request.
func (r *Request) Arena() *pool.Arena {
	switch {
	case r.msg != nil:
		return r.msg.arena
	case r.sess != nil:
		return r.sess.arena
	}
	return nil
}

// Linked reports whether the request sits in a pending or completed list.
func (r *Request) Linked() bool {
	return r.node.Linked()
}
