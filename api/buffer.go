// Package api
// Author: momentics
//
// Chunk pooling contract backing arena regions.

package api

// ChunkPool abstracts recycling of fixed size-class byte chunks.
type ChunkPool interface {
	// Get returns a chunk of at least size bytes.
	Get(size int) ([]byte, error)

	// Put returns a chunk to the pool; the chunk must not be used afterwards.
	Put(b []byte)

	// Stats exposes resource/accounting metrics for observability.
	Stats() BufferPoolStats
}

// BufferPoolStats aggregates chunk allocation/reuse stats.
type BufferPoolStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
	InUseBytes int64
}
