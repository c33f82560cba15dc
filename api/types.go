// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// MessageStatus enumerates the state of an inbound message.
type MessageStatus int

const (
	MessageActive MessageStatus = iota
	MessageDestroying
)

func (s MessageStatus) String() string {
	switch s {
	case MessageActive:
		return "active"
	case MessageDestroying:
		return "destroying"
	default:
		return "unknown"
	}
}

// SessionState enumerates the state of an outbound session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionPending
	SessionFinalizing
	SessionGone
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionPending:
		return "pending"
	case SessionFinalizing:
		return "finalizing"
	case SessionGone:
		return "gone"
	default:
		return "unknown"
	}
}

// Stats provides a standard layout for engine statistics reporting.
type Stats struct {
	Connections      int
	LiveArenas       int64
	ChunksInUse      int64
	BytesInUse       int64
	Workers          int
	PendingLoopTasks int
}
