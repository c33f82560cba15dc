// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync"
	"sync/atomic"
)

// SyncPool is a typed sync.Pool that counts fresh allocations, so chunk
// reuse can be observed.
type SyncPool[T any] struct {
	pool    sync.Pool
	created atomic.Int64
}

// NewSyncPool creates a pool whose misses are served by creator.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	sp := &SyncPool[T]{}
	sp.pool.New = func() any {
		sp.created.Add(1)
		return creator()
	}
	return sp
}

func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
	sp.pool.Put(obj)
}

// Created returns how many objects the creator produced.
func (sp *SyncPool[T]) Created() int64 {
	return sp.created.Load()
}
