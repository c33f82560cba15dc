// File: lifecycle/outqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared FIFO of pending output buffers. Buffers carry the ID of the arena
// that owns their bytes, so a timing-out session can drop its own
// unsent buffers without disturbing anyone else's.

package lifecycle

import "github.com/momentics/hioload-io/internal/list"

// OutBuffer is one queued write.
type OutBuffer struct {
	Data []byte
	// Owner is the ID of the arena backing Data.
	Owner uint64
	// OnRelease runs once the buffer has been written or discarded.
	OnRelease func(*OutBuffer)

	marker bool
	node   list.Node[*OutBuffer]
}

// Queued reports whether the buffer is still waiting in a queue.
func (b *OutBuffer) Queued() bool {
	return b.node.Linked()
}

// OutputQueue is owned by the connection loop.
type OutputQueue struct {
	bufs list.List[*OutBuffer]
}

// NewOutputQueue returns an empty queue.
func NewOutputQueue() *OutputQueue {
	return &OutputQueue{}
}

// Push appends b at the tail.
func (q *OutputQueue) Push(b *OutBuffer) {
	b.node.Value = b
	q.bufs.PushBack(&b.node)
}

// Mark appends an empty position marker for owner. Purge starts right after it.
func (q *OutputQueue) Mark(owner uint64) *OutBuffer {
	m := &OutBuffer{Owner: owner, marker: true}
	q.Push(m)
	return m
}

// Purge removes the contiguous run of buffers tagged with owner that
// follows mark, stopping at the first buffer of another owner. When mark
// was already flushed the run starts at the head. The marker itself is
// removed as well. It returns the number of data buffers dropped.
func (q *OutputQueue) Purge(mark *OutBuffer, owner uint64) int {
	var n *list.Node[*OutBuffer]
	if q.bufs.Contains(&mark.node) {
		n = mark.node.Next()
		q.bufs.Remove(&mark.node)
	} else {
		n = q.bufs.Front()
	}
	purged := 0
	for n != nil && n.Value.Owner == owner {
		next := n.Next()
		b := n.Value
		q.bufs.Remove(n)
		if !b.marker {
			purged++
			b.release()
		}
		n = next
	}
	return purged
}

// Flush writes buffers from the head until the queue is empty or write
// fails. The failing buffer stays queued. Markers are dropped silently.
func (q *OutputQueue) Flush(write func([]byte) error) (int, error) {
	written := 0
	for n := q.bufs.Front(); n != nil; n = q.bufs.Front() {
		b := n.Value
		if !b.marker {
			if err := write(b.Data); err != nil {
				return written, err
			}
			written++
		}
		q.bufs.Remove(n)
		if !b.marker {
			b.release()
		}
	}
	return written, nil
}

// Discard drops every buffer without writing it.
func (q *OutputQueue) Discard() int {
	n := 0
	q.bufs.Drain(func(node *list.Node[*OutBuffer]) {
		if b := node.Value; !b.marker {
			n++
			b.release()
		}
	})
	return n
}

// Len counts queued data buffers.
func (q *OutputQueue) Len() int {
	n := 0
	for _, b := range q.bufs.Values() {
		if !b.marker {
			n++
		}
	}
	return n
}

// Buffers returns queued data buffers in order.
func (q *OutputQueue) Buffers() []*OutBuffer {
	out := make([]*OutBuffer, 0, q.bufs.Len())
	for _, b := range q.bufs.Values() {
		if !b.marker {
			out = append(out, b)
		}
	}
	return out
}

func (b *OutBuffer) release() {
	if fn := b.OnRelease; fn != nil {
		b.OnRelease = nil
		fn(b)
	}
}
