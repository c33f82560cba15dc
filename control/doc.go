// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, logging, metrics, tracing and debug introspection layer
// of hioload-io.
//
// Provides:
//   - YAML configuration with defaults, validation and atomic snapshots
//   - Reload listeners for runtime-tunable values
//   - slog logger construction
//   - Prometheus collectors for the message/session lifecycle
//   - Probe registration and state export
package control
