// Package api
// Author: momentics
//
// Scheduler contract for timed callbacks driving session timeouts.

package api

import "time"

// Scheduler abstracts timer scheduling for event loops.
type Scheduler interface {
	// Schedule arranges for fn to run after delay.
	Schedule(delay time.Duration, fn func()) (Cancelable, error)

	// Cancel cancels a previously scheduled callback.
	Cancel(c Cancelable) error

	// Now returns the scheduler's notion of current time.
	Now() time.Time
}
