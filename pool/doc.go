// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-io.
// Implements size-classed chunk recycling and refcounted arenas: every
// message and session owns one Arena, and the arena's release path is the
// single reclamation point for everything carved from it.
// See chunk.go and arena.go for implementation details.
package pool
