// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-io components.

package benchmarks

import (
	"testing"
	"time"

	"github.com/momentics/hioload-io/control"
	"github.com/momentics/hioload-io/facade"
	"github.com/momentics/hioload-io/internal/concurrency"
	"github.com/momentics/hioload-io/lifecycle"
	"github.com/momentics/hioload-io/pool"
)

// BenchmarkArenaLifecycle measures create, carve, free of a message-sized arena.
func BenchmarkArenaLifecycle(b *testing.B) {
	p := pool.NewChunkPool(0)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a, err := p.NewArena(4096)
			if err != nil {
				b.Fatal(err)
			}
			if _, err := a.Alloc(256); err != nil {
				b.Fatal(err)
			}
			a.SetRef(1)
			if a.Release() {
				a.Free()
			}
		}
	})
}

// BenchmarkMessageLifecycle creates a message with three requests and
// destroys it explicitly.
func BenchmarkMessageLifecycle(b *testing.B) {
	c, err := lifecycle.NewConnection(lifecycle.ConnConfig{
		Pool:   pool.NewChunkPool(0),
		Logger: control.NopLogger(),
	})
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m, err := lifecycle.NewMessage(c)
		if err != nil {
			b.Fatal(err)
		}
		for j := 0; j < 3; j++ {
			if _, err := m.NewRequest(0); err != nil {
				b.Fatal(err)
			}
		}
		m.Destroy(true)
	}
}

// BenchmarkSessionRoundTrip sends a session and delivers its reply.
func BenchmarkSessionRoundTrip(b *testing.B) {
	p := pool.NewChunkPool(0)
	c, err := lifecycle.NewConnection(lifecycle.ConnConfig{
		Pool:   p,
		Logger: control.NopLogger(),
	})
	if err != nil {
		b.Fatal(err)
	}
	h := lifecycle.HandlerFunc(func(r *lifecycle.Request) error {
		s, _ := r.Session()
		s.Destroy()
		return nil
	})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, err := lifecycle.NewSession(64, lifecycle.WithSessionPool(p))
		if err != nil {
			b.Fatal(err)
		}
		s.SetHandler(h)
		if err := c.Send(s, time.Minute, s.Payload()); err != nil {
			b.Fatal(err)
		}
		if err := c.Reply(s.ID(), s.Payload()); err != nil {
			b.Fatal(err)
		}
		c.Output().Discard()
	}
}

// BenchmarkEventLoopPost measures cross-goroutine posting throughput.
func BenchmarkEventLoopPost(b *testing.B) {
	el := concurrency.NewEventLoop(64, control.NopLogger())
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := el.Post(func() {}); err != nil {
				b.Fatal(err)
			}
		}
	})
	el.RunPending()
}

// BenchmarkFacadeIntegration tests end-to-end facade submission.
func BenchmarkFacadeIntegration(b *testing.B) {
	cfg := control.DefaultConfig()
	cfg.Executor.Workers = 4
	h, err := facade.New(cfg, facade.WithLogger(control.NopLogger()))
	if err != nil {
		b.Fatal(err)
	}
	defer h.Shutdown()

	done := make(chan struct{}, b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := h.Submit(func() { done <- struct{}{} }); err != nil {
			b.Fatal(err)
		}
	}
	for i := 0; i < b.N; i++ {
		<-done
	}
}
