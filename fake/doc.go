// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake collaborators for testing and development: a recording output
// writer, recording request hooks and session handlers, and a slog sink.
// Every fake is safe for concurrent use.
package fake
