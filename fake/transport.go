// Package fake
// Author: momentics <momentics@gmail.com>
//
// Writer records what an output queue flushes.

package fake

import (
	"sync"

	"github.com/momentics/hioload-io/api"
)

// Writer is a fake sink for OutputQueue.Flush.
type Writer struct {
	mu        sync.Mutex
	written   [][]byte
	closed    bool
	failAfter int
	sendError error
}

// NewWriter creates a writer accepting every write.
func NewWriter() *Writer {
	return &Writer{failAfter: -1}
}

// Write records a copy of b.
func (w *Writer) Write(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return api.ErrConnectionClosed
	}
	if w.failAfter == 0 {
		return w.sendError
	}
	if w.failAfter > 0 {
		w.failAfter--
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	w.written = append(w.written, cp)
	return nil
}

// FailAfter makes writes fail with err once n more writes succeeded.
func (w *Writer) FailAfter(n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failAfter = n
	w.sendError = err
}

// Written returns recorded writes in order.
func (w *Writer) Written() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]byte, len(w.written))
	copy(out, w.written)
	return out
}

// Close makes subsequent writes fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
