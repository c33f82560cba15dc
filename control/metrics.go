// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the message and session lifecycle.
// A nil *Metrics is valid and records nothing.

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-io/pool"
)

const metricsNamespace = "hioload"

// Session outcomes.
const (
	OutcomeReplied       = "replied"
	OutcomeTimeout       = "timeout"
	OutcomeMisconfigured = "misconfigured"
	OutcomeHandlerError  = "handler_error"
)

// Metrics groups lifecycle counters.
type Metrics struct {
	messagesCreated   prometheus.Counter
	messagesDestroyed prometheus.Counter
	requestsFinished  prometheus.Counter
	sessionsCreated   prometheus.Counter
	sessionsFinished  *prometheus.CounterVec
	outputPurged      prometheus.Counter
	allocFailures     *prometheus.CounterVec
	liveArenas        prometheus.GaugeFunc
}

// NewMetrics creates and registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messagesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "message", Name: "created_total",
			Help: "Messages created.",
		}),
		messagesDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "message", Name: "destroyed_total",
			Help: "Messages whose arena was reclaimed.",
		}),
		requestsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "request", Name: "finished_total",
			Help: "Request finished notifications delivered.",
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "session", Name: "sent_total",
			Help: "Sessions sent on a connection.",
		}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "session", Name: "finished_total",
			Help: "Sessions finalized, by outcome.",
		}, []string{"outcome"}),
		outputPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "output", Name: "purged_total",
			Help: "Unsent output buffers dropped on session timeout.",
		}),
		allocFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "arena", Name: "alloc_failures_total",
			Help: "Arena allocation failures, by object kind.",
		}, []string{"kind"}),
		liveArenas: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "arena", Name: "live",
			Help: "Arenas created and not yet freed.",
		}, func() float64 { return float64(pool.LiveArenas()) }),
	}
	for _, c := range []prometheus.Collector{
		m.messagesCreated, m.messagesDestroyed, m.requestsFinished,
		m.sessionsCreated, m.sessionsFinished, m.outputPurged,
		m.allocFailures, m.liveArenas,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) MessageCreated() {
	if m != nil {
		m.messagesCreated.Inc()
	}
}

func (m *Metrics) MessageDestroyed() {
	if m != nil {
		m.messagesDestroyed.Inc()
	}
}

func (m *Metrics) RequestFinished() {
	if m != nil {
		m.requestsFinished.Inc()
	}
}

func (m *Metrics) SessionSent() {
	if m != nil {
		m.sessionsCreated.Inc()
	}
}

// SessionFinished counts a finalized session under outcome.
func (m *Metrics) SessionFinished(outcome string) {
	if m != nil {
		m.sessionsFinished.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) OutputPurged(n int) {
	if m != nil && n > 0 {
		m.outputPurged.Add(float64(n))
	}
}

func (m *Metrics) AllocFailed(kind string) {
	if m != nil {
		m.allocFailures.WithLabelValues(kind).Inc()
	}
}

// SessionsFinished exposes the outcome vector for inspection.
func (m *Metrics) SessionsFinished() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.sessionsFinished
}
