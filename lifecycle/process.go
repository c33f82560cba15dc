// File: lifecycle/process.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session finalize protocol. Reply delivery and timeout both funnel into
// Process; exactly one of them detaches the session and delivers it.

package lifecycle

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-io/api"
	"github.com/momentics/hioload-io/control"
)

// Process finalizes the session. With stop set it first cancels the
// timer, leaves the pending list, runs the client completion hook and
// drops the connection's outstanding reference; a caller that loses this
// race returns nil without side effects. Without a reply, unsent output
// buffers of the session are purged. The handler result is returned.
func (s *Session) Process(stop bool) error {
	if stop && !s.detach() {
		return nil
	}
	if !s.delivered.CompareAndSwap(false, true) {
		return nil
	}

	_, span := control.Tracer().Start(context.Background(), "session.process",
		trace.WithAttributes(
			attribute.Int64("session.id", int64(s.req.ID)),
			attribute.Bool("session.stop", stop),
			attribute.Bool("session.replied", s.req.In != nil),
		))
	defer span.End()

	if s.req.In == nil {
		if n := s.purgeOutput(); n > 0 {
			span.SetAttributes(attribute.Int("session.purged", n))
		}
	}

	if s.handler == nil {
		err := api.Wrap(api.ErrCodeMisconfigured, api.ErrMisconfiguredSession, "session finalized without handler").
			WithContext("session", s.req.ID).
			WithContext("arena", s.arena.ID())
		s.l.Error("misconfigured session", "session", s.req.ID, "arena", s.arena.ID())
		s.metrics.SessionFinished(control.OutcomeMisconfigured)
		span.RecordError(err)
		span.SetStatus(codes.Error, "misconfigured")
		s.Destroy()
		return err
	}

	outcome := control.OutcomeReplied
	if s.req.In == nil {
		outcome = control.OutcomeTimeout
	}
	err := s.handler.OnComplete(&s.req)
	if err != nil {
		outcome = control.OutcomeHandlerError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.metrics.SessionFinished(outcome)
	return err
}

// detach moves a pending or idle session to finalizing. Only the winner
// touches the connection.
func (s *Session) detach() bool {
	if !s.state.CompareAndSwap(int32(api.SessionPending), int32(api.SessionFinalizing)) &&
		!s.state.CompareAndSwap(int32(api.SessionIdle), int32(api.SessionFinalizing)) {
		return false
	}
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
	c := s.conn
	if c == nil || !c.sessions.Remove(&s.node) {
		return true
	}
	delete(c.byID, s.req.ID)
	c.hooks.ClientDone(&s.req)
	c.releaseOutstanding()
	return true
}

// purgeOutput drops the unsent buffers of the session and detaches it
// from the output queue.
func (s *Session) purgeOutput() int {
	if s.out == nil || s.mark == nil {
		return 0
	}
	n := s.out.Purge(s.mark, s.arena.ID())
	s.out, s.mark = nil, nil
	s.metrics.OutputPurged(n)
	return n
}
