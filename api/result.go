// Package api
// Author: momentics@gmail.com
//
// Cancellation of scheduled operations.

package api

// Cancelable is any operation that may be canceled.
type Cancelable interface {
	// Cancel attempts to abort the operation. It reports whether the call
	// prevented the operation from running.
	Cancel() bool
	// Done signals completion/cancellation.
	Done() <-chan struct{}
}
