// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-io/control"
	"github.com/momentics/hioload-io/facade"
	"github.com/momentics/hioload-io/lifecycle"
)

type simOptions struct {
	connections int
	messages    int
	requests    int
	sessions    int
	replyRatio  float64
	timeout     time.Duration
	metricsAddr string
	seed        int64
}

type simSummary struct {
	Connections       int   `json:"connections"`
	Messages          int64 `json:"messages"`
	RequestsFinished  int64 `json:"requests_finished"`
	SessionsReplied   int64 `json:"sessions_replied"`
	SessionsTimedOut  int64 `json:"sessions_timed_out"`
	BuffersWritten    int64 `json:"buffers_written"`
	LiveArenasAtClose int64 `json:"live_arenas_at_close"`
	ElapsedMillis     int64 `json:"elapsed_ms"`
}

func simulateCmd() *cobra.Command {
	o := &simOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive synthetic messages and sessions through the engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if o.metricsAddr != "" {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Addr = o.metricsAddr
			}
			sum, err := runSimulation(cmd.Context(), cfg, o)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.connections, "connections", 4, "Number of connections")
	f.IntVar(&o.messages, "messages", 100, "Messages per connection")
	f.IntVar(&o.requests, "requests", 3, "Requests per message")
	f.IntVar(&o.sessions, "sessions", 100, "Outbound sessions per connection")
	f.Float64Var(&o.replyRatio, "reply-ratio", 0.8, "Fraction of sessions that receive a reply")
	f.DurationVar(&o.timeout, "timeout", 50*time.Millisecond, "Session timeout")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.Int64Var(&o.seed, "seed", 1, "Random seed")
	return cmd
}

// simHandler counts session outcomes and destroys each session.
type simHandler struct {
	replied, timedOut *atomic.Int64
	done              chan<- struct{}
}

func (h simHandler) OnComplete(r *lifecycle.Request) error {
	if r.In != nil {
		h.replied.Add(1)
	} else {
		h.timedOut.Add(1)
	}
	if s, ok := r.Session(); ok {
		s.Destroy()
	}
	h.done <- struct{}{}
	return nil
}

func (simHandler) OnAbandon(*lifecycle.Request) {}

func runSimulation(ctx context.Context, cfg *control.Config, o *simOptions) (*simSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout <= 0 {
		return nil, fmt.Errorf("session timeout must be positive, got %s", o.timeout)
	}
	start := time.Now()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var finished atomic.Int64
	engine, err := facade.New(cfg,
		facade.WithRegisterer(reg),
		facade.WithHooks(lifecycle.RequestHooks{
			ServerDone: func(*lifecycle.Request) { finished.Add(1) },
		}),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
	}

	if err := engine.Start(gctx); err != nil {
		return nil, err
	}

	var (
		messages, written atomic.Int64
		replied, timedOut atomic.Int64
	)
	work := errgroup.Group{}
	for i := 0; i < o.connections; i++ {
		seed := o.seed + int64(i)
		work.Go(func() error {
			c, err := engine.NewConnection()
			if err != nil {
				return err
			}
			done := make(chan struct{}, o.sessions)
			h := simHandler{replied: &replied, timedOut: &timedOut, done: done}
			rng := rand.New(rand.NewSource(seed))

			for j := 0; j < o.messages; j++ {
				if err := post(c, func() error {
					m, err := lifecycle.NewMessage(c)
					if err != nil {
						return err
					}
					messages.Add(1)
					for k := 0; k < o.requests; k++ {
						r, err := m.NewRequest(0)
						if err != nil {
							m.Destroy(true)
							return err
						}
						r.In = m.Input()[:min(16, len(m.Input()))]
					}
					err = engine.Dispatch(m, func(r *lifecycle.Request) ([]byte, error) {
						return append([]byte("ok:"), r.In[:4]...), nil
					})
					m.Destroy(true)
					return err
				}); err != nil {
					return err
				}
			}

			for j := 0; j < o.sessions; j++ {
				reply := rng.Float64() < o.replyRatio
				if err := post(c, func() error {
					s, err := lifecycle.NewSession(32, lifecycle.WithSessionPool(engine.ChunkPool()))
					if err != nil {
						return err
					}
					s.SetHandler(h)
					if err := c.Send(s, o.timeout, s.Payload()); err != nil {
						s.Destroy()
						return err
					}
					if reply {
						id := s.ID()
						return c.Post(func() { _ = c.Reply(id, []byte("pong")) })
					}
					return nil
				}); err != nil {
					return err
				}
			}

			ticker := time.NewTicker(max(o.timeout/4, time.Millisecond))
			defer ticker.Stop()
			for got := 0; got < o.sessions; {
				select {
				case <-done:
					got++
				case <-ticker.C:
					_ = post(c, func() error {
						n, err := c.Output().Flush(func([]byte) error { return nil })
						written.Add(int64(n))
						return err
					})
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return post(c, func() error {
				n, err := c.Output().Flush(func([]byte) error { return nil })
				written.Add(int64(n))
				return err
			})
		})
	}

	werr := work.Wait()
	live := engine.Stats().LiveArenas
	serr := engine.Shutdown()
	cancel()
	gerr := g.Wait()
	if err := multierr.Combine(werr, serr, gerr); err != nil {
		return nil, err
	}
	return &simSummary{
		Connections:       o.connections,
		Messages:          messages.Load(),
		RequestsFinished:  finished.Load(),
		SessionsReplied:   replied.Load(),
		SessionsTimedOut:  timedOut.Load(),
		BuffersWritten:    written.Load(),
		LiveArenasAtClose: live,
		ElapsedMillis:     time.Since(start).Milliseconds(),
	}, nil
}

// post runs fn on the connection loop and waits for its result.
func post(c *lifecycle.Connection, fn func() error) error {
	res := make(chan error, 1)
	if err := c.Post(func() { res <- fn() }); err != nil {
		return err
	}
	return <-res
}
