// control/tracing.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/momentics/hioload-io"

// Tracer returns the tracer of the globally registered provider.
// Without an installed SDK every span is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
