// File: pool/chunk.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed chunk pool with an optional byte budget. Chunks back arena
// regions; a budget overrun is reported as api.ErrOutOfMemory.

package pool

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-io/api"
)

const (
	// Alignment is the arena allocation unit and the smallest chunk class.
	Alignment = 512

	minClassShift = 9  // 512 B
	maxClassShift = 26 // 64 MiB
	numClasses    = maxClassShift - minClassShift + 1
)

// ChunkPool recycles []byte chunks by power-of-two size class.
// Chunks larger than the biggest class are allocated exactly and left to the GC.
type ChunkPool struct {
	classes  [numClasses]*SyncPool[*[]byte]
	maxBytes int64

	inUseBytes atomic.Int64
	totalAlloc atomic.Int64
	totalFree  atomic.Int64
}

var _ api.ChunkPool = (*ChunkPool)(nil)

// NewChunkPool creates a pool. maxBytes <= 0 disables the budget.
func NewChunkPool(maxBytes int64) *ChunkPool {
	p := &ChunkPool{maxBytes: maxBytes}
	for i := range p.classes {
		size := 1 << (minClassShift + i)
		p.classes[i] = NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		})
	}
	return p
}

var (
	defaultOnce sync.Once
	defaultPool *ChunkPool
)

// DefaultChunkPool returns a process-wide unbounded ChunkPool so all arenas
// created without an explicit pool share the same size classes.
func DefaultChunkPool() *ChunkPool {
	defaultOnce.Do(func() {
		defaultPool = NewChunkPool(0)
	})
	return defaultPool
}

// classOf returns the class index for size, or -1 for oversized chunks.
func classOf(size int) int {
	if size <= Alignment {
		return 0
	}
	shift := bits.Len(uint(size - 1))
	if shift > maxClassShift {
		return -1
	}
	return shift - minClassShift
}

// ClassSize returns the capacity of the chunk that Get(size) hands out.
func ClassSize(size int) int {
	c := classOf(size)
	if c < 0 {
		return size
	}
	return 1 << (minClassShift + c)
}

// Get returns a chunk with len == ClassSize(size).
func (p *ChunkPool) Get(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size %d: %w", size, api.ErrInvalidArgument)
	}
	n := int64(ClassSize(size))
	if !p.reserve(n) {
		return nil, fmt.Errorf("chunk of %d bytes exceeds budget %d: %w", n, p.maxBytes, api.ErrOutOfMemory)
	}
	p.totalAlloc.Add(1)

	c := classOf(size)
	if c < 0 {
		return make([]byte, n), nil
	}
	bp := p.classes[c].Get()
	return (*bp)[:n], nil
}

func (p *ChunkPool) reserve(n int64) bool {
	if p.maxBytes <= 0 {
		p.inUseBytes.Add(n)
		return true
	}
	for {
		cur := p.inUseBytes.Load()
		if cur+n > p.maxBytes {
			return false
		}
		if p.inUseBytes.CompareAndSwap(cur, cur+n) {
			return true
		}
	}
}

// Put returns a chunk obtained from Get.
func (p *ChunkPool) Put(b []byte) {
	if b == nil {
		return
	}
	n := cap(b)
	p.inUseBytes.Add(-int64(n))
	p.totalFree.Add(1)

	c := classOf(n)
	if c < 0 || 1<<(minClassShift+c) != n {
		return
	}
	b = b[:n]
	p.classes[c].Put(&b)
}

// Stats reports chunk accounting.
func (p *ChunkPool) Stats() api.BufferPoolStats {
	alloc := p.totalAlloc.Load()
	free := p.totalFree.Load()
	return api.BufferPoolStats{
		TotalAlloc: alloc,
		TotalFree:  free,
		InUse:      alloc - free,
		InUseBytes: p.inUseBytes.Load(),
	}
}

// Fresh returns the number of chunks allocated from the heap rather than
// recycled.
func (p *ChunkPool) Fresh() int64 {
	var n int64
	for _, c := range p.classes {
		n += c.Created()
	}
	return n
}
