// File: pool/arena.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Arena is a growable bump allocator with an atomic reference count.
// Everything carved from an arena is reclaimed together by Free.
//
// Only Retain and Release are safe for concurrent use. Allocation must
// happen before the arena is shared with other owners.

package pool

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-io/api"
)

const wordAlign = 8

var (
	arenaSeq   atomic.Uint64
	liveArenas atomic.Int64
)

// LiveArenas returns the number of arenas created and not yet freed.
func LiveArenas() int64 {
	return liveArenas.Load()
}

// Arena owns a list of chunks and a reference count.
type Arena struct {
	_   cpu.CacheLinePad
	ref atomic.Int32
	_   cpu.CacheLinePad

	id        uint64
	pool      *ChunkPool
	chunkSize int
	chunks    [][]byte
	cur       []byte
	last      int // offset of the next free byte in cur
	size      int // high-water mark of bytes handed out
	freed     atomic.Bool
}

// NewArena creates an arena on the default chunk pool.
func NewArena(size int) (*Arena, error) {
	return DefaultChunkPool().NewArena(size)
}

// NewArena creates an arena whose first chunk holds at least size bytes.
// The reference count starts at zero; the creating owner sets it.
func (p *ChunkPool) NewArena(size int) (*Arena, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arena size %d: %w", size, api.ErrInvalidArgument)
	}
	chunk, err := p.Get(size)
	if err != nil {
		return nil, err
	}
	a := &Arena{
		id:        arenaSeq.Add(1),
		pool:      p,
		chunkSize: len(chunk),
		chunks:    [][]byte{chunk},
		cur:       chunk,
	}
	liveArenas.Add(1)
	return a, nil
}

// ID is unique per arena and never reused; it tags output buffers and
// validates weak references.
func (a *Arena) ID() uint64 {
	return a.id
}

// Alloc carves n bytes, growing the region by a new chunk when needed.
// The returned memory is not zeroed when the chunk was recycled.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if a.freed.Load() {
		return nil, fmt.Errorf("arena %d: alloc after free: %w", a.id, api.ErrInvalidArgument)
	}
	if n <= 0 {
		return nil, fmt.Errorf("alloc %d bytes: %w", n, api.ErrInvalidArgument)
	}
	aligned := (n + wordAlign - 1) &^ (wordAlign - 1)
	if a.last+aligned > len(a.cur) {
		if err := a.grow(aligned); err != nil {
			return nil, err
		}
	}
	b := a.cur[a.last : a.last+n : a.last+n]
	a.last += aligned
	a.size += aligned
	return b, nil
}

// Calloc is Alloc with zeroed memory.
func (a *Arena) Calloc(n int) ([]byte, error) {
	b, err := a.Alloc(n)
	if err != nil {
		return nil, err
	}
	clear(b)
	return b, nil
}

func (a *Arena) grow(need int) error {
	size := a.chunkSize
	if need > size {
		size = need
	}
	chunk, err := a.pool.Get(size)
	if err != nil {
		return fmt.Errorf("arena %d grow: %w", a.id, err)
	}
	a.chunks = append(a.chunks, chunk)
	a.cur = chunk
	a.last = 0
	return nil
}

// Avail returns the free bytes left in the current chunk.
func (a *Arena) Avail() int {
	return len(a.cur) - a.last
}

// Size returns the number of bytes handed out, including alignment.
func (a *Arena) Size() int {
	return a.size
}

// Chunks returns the number of chunks backing the region.
func (a *Arena) Chunks() int {
	return len(a.chunks)
}

// SetRef initializes the reference count for the creating owner.
func (a *Arena) SetRef(n int32) {
	a.ref.Store(n)
}

// Ref returns the current reference count.
func (a *Arena) Ref() int32 {
	return a.ref.Load()
}

// Retain adds an owner.
func (a *Arena) Retain() int32 {
	return a.ref.Add(1)
}

// Release drops an owner and reports whether this call took the count to
// zero. The caller observing true is responsible for Free.
func (a *Arena) Release() bool {
	n := a.ref.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("pool: arena %d released more times than retained", a.id))
	}
	return n == 0
}

// Free returns every chunk to the pool. Only the first call has an effect.
func (a *Arena) Free() bool {
	if !a.freed.CompareAndSwap(false, true) {
		return false
	}
	for _, c := range a.chunks {
		a.pool.Put(c)
	}
	a.chunks = nil
	a.cur = nil
	a.last = 0
	liveArenas.Add(-1)
	return true
}

// Freed reports whether Free has run.
func (a *Arena) Freed() bool {
	return a.freed.Load()
}
