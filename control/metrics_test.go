package control

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.MessageCreated()
	m.MessageCreated()
	m.MessageDestroyed()
	m.RequestFinished()
	m.SessionSent()
	m.SessionFinished(OutcomeTimeout)
	m.SessionFinished(OutcomeMisconfigured)
	m.OutputPurged(3)
	m.OutputPurged(0)
	m.AllocFailed("message")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesDestroyed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsFinished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsFinished().WithLabelValues(OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsFinished().WithLabelValues(OutcomeMisconfigured)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.outputPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocFailures.WithLabelValues("message")))
}

func TestMetricsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageCreated()
		m.MessageDestroyed()
		m.RequestFinished()
		m.SessionSent()
		m.SessionFinished(OutcomeReplied)
		m.OutputPurged(1)
		m.AllocFailed("session")
	})
	assert.Nil(t, m.SessionsFinished())
}
