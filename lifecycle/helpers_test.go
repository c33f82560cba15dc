package lifecycle_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-io/control"
	"github.com/momentics/hioload-io/fake"
	"github.com/momentics/hioload-io/internal/concurrency"
	"github.com/momentics/hioload-io/lifecycle"
	"github.com/momentics/hioload-io/pool"
)

type harness struct {
	conn      *lifecycle.Connection
	loop      *concurrency.EventLoop
	clk       *clock.Mock
	hooks     *fake.Hooks
	pool      *pool.ChunkPool
	metrics   *control.Metrics
	logs      *fake.LogSink
	teardowns int
}

func newHarness(t *testing.T, mutate ...func(*lifecycle.ConnConfig)) *harness {
	t.Helper()
	h := &harness{
		loop:  concurrency.NewEventLoop(16, nil),
		clk:   clock.NewMock(),
		hooks: fake.NewHooks(),
		pool:  pool.NewChunkPool(0),
	}
	var logger *slog.Logger
	h.logs, logger = fake.NewLogSink()

	m, err := control.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	h.metrics = m

	cfg := lifecycle.ConnConfig{
		DefaultMessageSize: 4096,
		DefaultTimeout:     time.Second,
		Pool:               h.pool,
		Loop:               h.loop,
		Scheduler:          concurrency.NewScheduler(h.clk, h.loop, logger),
		Hooks:              h.hooks.RequestHooks(),
		Logger:             logger,
		Metrics:            m,
		OnTeardown:         func(*lifecycle.Connection) { h.teardowns++ },
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	h.conn, err = lifecycle.NewConnection(cfg)
	require.NoError(t, err)
	return h
}

// advance moves the clock and runs the timer callbacks it posted.
func (h *harness) advance(t *testing.T, d time.Duration, want int) {
	t.Helper()
	h.clk.Add(d)
	require.Eventually(t, func() bool { return h.loop.Pending() >= want }, time.Second, time.Millisecond)
	h.loop.RunPending()
}

func (h *harness) session(t *testing.T, payload int, hd lifecycle.Handler) *lifecycle.Session {
	t.Helper()
	s, err := lifecycle.NewSession(payload, lifecycle.WithSessionPool(h.pool))
	require.NoError(t, err)
	if hd != nil {
		s.SetHandler(hd)
	}
	return s
}
