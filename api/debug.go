// Package api
// Author: momentics
//
// Probe registry contract used to inspect live arenas, chunk pools and
// loop backlogs.

package api

// Debug collects named probes. Each probe is a closure evaluated on every
// dump, so values reflect the engine at call time.
type Debug interface {
	// DumpState evaluates every probe and returns the results by name.
	DumpState() map[string]any

	// RegisterProbe adds or replaces the probe called name.
	RegisterProbe(name string, fn func() any)

	// UnregisterProbe removes the probe called name, if any.
	UnregisterProbe(name string)

	// Names lists registered probes in sorted order.
	Names() []string
}
