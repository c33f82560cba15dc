// File: internal/registry/registry.go
// Package registry
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sharded, thread-safe index of live objects keyed by UUID.

package registry

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// Registry maps ids to values across power-of-two shards.
type Registry[V any] struct {
	shards []*shard[V]
	mask   uint32
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[uuid.UUID]V
}

// New constructs a registry with at least shardCount shards.
func New[V any](shardCount int) *Registry[V] {
	if shardCount <= 0 {
		shardCount = 16
	}
	// power-of-two shards for bitmasking
	n := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*shard[V], n)
	for i := range shards {
		shards[i] = &shard[V]{items: make(map[uuid.UUID]V)}
	}
	return &Registry[V]{shards: shards, mask: n - 1}
}

func (r *Registry[V]) shard(id uuid.UUID) *shard[V] {
	return r.shards[fnv32(id)&r.mask]
}

// Put stores v under id and reports whether id was new.
func (r *Registry[V]) Put(id uuid.UUID, v V) bool {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, exists := sh.items[id]
	sh.items[id] = v
	return !exists
}

// Get fetches the value for id.
func (r *Registry[V]) Get(id uuid.UUID) (V, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.items[id]
	return v, ok
}

// Delete removes id and reports whether it was present.
func (r *Registry[V]) Delete(id uuid.UUID) bool {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.items[id]; !ok {
		return false
	}
	delete(sh.items, id)
	return true
}

// Len counts stored values.
func (r *Registry[V]) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// Snapshot returns every stored value. Values are collected under the
// shard locks and returned without them, so callers may mutate the registry.
func (r *Registry[V]) Snapshot() []V {
	out := make([]V, 0, r.Len())
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, v := range sh.items {
			out = append(out, v)
		}
		sh.mu.RUnlock()
	}
	return out
}

func fnv32(id uuid.UUID) uint32 {
	h := fnv.New32a()
	h.Write(id[:])
	return h.Sum32()
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
