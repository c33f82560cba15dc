// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import (
	"sync"

	"github.com/momentics/hioload-io/lifecycle"
)

// Hooks records request completion notifications.
type Hooks struct {
	mu         sync.Mutex
	serverDone []*lifecycle.Request
	clientDone []*lifecycle.Request
	serverSeen map[*lifecycle.Request]int
	linked     int
}

// NewHooks creates an empty recorder.
func NewHooks() *Hooks {
	return &Hooks{serverSeen: make(map[*lifecycle.Request]int)}
}

// RequestHooks returns hooks wired to the recorder. ServerDone also
// records whether the request was still linked, which must never happen.
func (h *Hooks) RequestHooks() lifecycle.RequestHooks {
	return lifecycle.RequestHooks{
		ServerDone: func(r *lifecycle.Request) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.serverDone = append(h.serverDone, r)
			h.serverSeen[r]++
			if r.Linked() {
				h.linked++
			}
		},
		ClientDone: func(r *lifecycle.Request) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.clientDone = append(h.clientDone, r)
		},
	}
}

// ServerDone returns server-side notifications in delivery order.
func (h *Hooks) ServerDone() []*lifecycle.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*lifecycle.Request(nil), h.serverDone...)
}

// ClientDone returns client-side notifications in delivery order.
func (h *Hooks) ClientDone() []*lifecycle.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*lifecycle.Request(nil), h.clientDone...)
}

// ServerDoneCount returns how many times r was notified.
func (h *Hooks) ServerDoneCount(r *lifecycle.Request) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.serverSeen[r]
}

// NotifiedWhileLinked counts notifications for requests still in a list.
func (h *Hooks) NotifiedWhileLinked() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.linked
}
