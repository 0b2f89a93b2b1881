// Package tracing times the stages of a request. A Trace lives in the
// request context; stages opened with Start attach to it and the finished
// trace is logged at debug level and rendered as a Server-Timing header.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type ctxKey struct{}

type scope struct {
	trace  *Trace
	parent int
}

// Trace collects the spans of one request.
type Trace struct {
	ID    string
	Name  string
	start time.Time

	mu    sync.Mutex
	spans []*Span
}

// Span is one timed stage. Methods on a nil Span are no-ops, so stages can
// be instrumented unconditionally.
type Span struct {
	Name   string
	Parent int // index of the enclosing span, -1 for top level
	Start  time.Time

	mu    sync.Mutex
	dur   time.Duration
	attrs []any
}

// New starts a trace and returns a context carrying it.
func New(ctx context.Context, name, id string) (context.Context, *Trace) {
	t := &Trace{ID: id, Name: name, start: time.Now()}
	return context.WithValue(ctx, ctxKey{}, scope{trace: t, parent: -1}), t
}

// Start opens a span under the innermost span in ctx. Without a trace in
// ctx it returns ctx unchanged and a nil Span.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	sc, ok := ctx.Value(ctxKey{}).(scope)
	if !ok {
		return ctx, nil
	}
	s := &Span{Name: name, Parent: sc.parent, Start: time.Now()}
	t := sc.trace
	t.mu.Lock()
	t.spans = append(t.spans, s)
	idx := len(t.spans) - 1
	t.mu.Unlock()
	return context.WithValue(ctx, ctxKey{}, scope{trace: t, parent: idx}), s
}

// FromContext returns the trace carried by ctx, if any.
func FromContext(ctx context.Context) *Trace {
	sc, _ := ctx.Value(ctxKey{}).(scope)
	return sc.trace
}

// Set attaches an attribute that is logged with the span.
func (s *Span) Set(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End fixes the span's duration. Only the first call counts.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.dur == 0 {
		s.dur = time.Since(s.Start)
	}
	s.mu.Unlock()
}

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dur
}

// Spans returns a snapshot of the spans started so far, in start order.
func (t *Trace) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Span(nil), t.spans...)
}

// ServerTiming renders the ended spans as a Server-Timing header value,
// with a trailing "total" entry for the trace itself.
func (t *Trace) ServerTiming() string {
	var b strings.Builder
	for _, s := range t.Spans() {
		d := s.Duration()
		if d == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s;dur=%.3f, ", metricName(s.Name), ms(d))
	}
	fmt.Fprintf(&b, "total;dur=%.3f", ms(time.Since(t.start)))
	return b.String()
}

// Log writes one debug line per span with its depth in the tree.
func (t *Trace) Log(logger *slog.Logger) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	spans := t.Spans()
	for _, s := range spans {
		depth := 0
		for p := s.Parent; p >= 0; p = spans[p].Parent {
			depth++
		}
		s.mu.Lock()
		args := append([]any{
			"trace_id", t.ID,
			"trace", t.Name,
			"span", s.Name,
			"depth", depth,
			"duration_ms", ms(s.dur),
		}, s.attrs...)
		s.mu.Unlock()
		logger.Debug("span", args...)
	}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// metricName maps a span name onto the header's token charset.
func metricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
