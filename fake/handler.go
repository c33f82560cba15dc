// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import (
	"sync"

	"github.com/momentics/hioload-io/lifecycle"
)

// Handler is a recording lifecycle.Handler.
type Handler struct {
	mu        sync.Mutex
	completed []Completion
	abandoned int
	err       error
	destroy   bool
}

// Completion is one recorded delivery.
type Completion struct {
	ID      uint64
	Replied bool
	Reply   []byte
}

// NewHandler creates a handler returning err from OnComplete. With
// destroy set it destroys the session after recording, like a typical
// caller does.
func NewHandler(err error, destroy bool) *Handler {
	return &Handler{err: err, destroy: destroy}
}

func (h *Handler) OnComplete(r *lifecycle.Request) error {
	h.mu.Lock()
	c := Completion{ID: r.ID, Replied: r.In != nil}
	if r.In != nil {
		c.Reply = append([]byte(nil), r.In...)
	}
	h.completed = append(h.completed, c)
	err := h.err
	h.mu.Unlock()

	if s, ok := r.Session(); ok && h.destroy {
		s.Destroy()
	}
	return err
}

func (h *Handler) OnAbandon(*lifecycle.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.abandoned++
}

// Completions returns recorded deliveries.
func (h *Handler) Completions() []Completion {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Completion(nil), h.completed...)
}

// Abandoned returns the number of OnAbandon calls.
func (h *Handler) Abandoned() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.abandoned
}
