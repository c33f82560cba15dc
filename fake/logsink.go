// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import (
	"context"
	"log/slog"
	"sync"
)

// LogSink is a slog.Handler that keeps every record.
type LogSink struct {
	mu      *sync.Mutex
	records *[]slog.Record
	attrs   []slog.Attr
}

// NewLogSink returns a sink and a logger writing to it.
func NewLogSink() (*LogSink, *slog.Logger) {
	s := &LogSink{mu: &sync.Mutex{}, records: &[]slog.Record{}}
	return s, slog.New(s)
}

func (s *LogSink) Enabled(context.Context, slog.Level) bool { return true }

func (s *LogSink) Handle(_ context.Context, r slog.Record) error {
	r = r.Clone()
	r.AddAttrs(s.attrs...)
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.records = append(*s.records, r)
	return nil
}

func (s *LogSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogSink{
		mu:      s.mu,
		records: s.records,
		attrs:   append(append([]slog.Attr(nil), s.attrs...), attrs...),
	}
}

// WithGroup is not needed by the engine; groups are flattened.
func (s *LogSink) WithGroup(string) slog.Handler { return s }

// Count returns the number of records at level whose message is msg.
// An empty msg matches every message.
func (s *LogSink) Count(level slog.Level, msg string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range *s.records {
		if r.Level == level && (msg == "" || r.Message == msg) {
			n++
		}
	}
	return n
}
