// Package collector batches analytics events before publishing them to
// Kafka, trading a little latency for far fewer broker round trips.
package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/kafka"
)

// maxBacklog is how many batches a failing broker may leave unsent before
// the oldest events are dropped.
const maxBacklog = 3

// BatchCollector publishes events in batches of up to size, or whatever
// has accumulated every interval. A single goroutine owns the buffer.
type BatchCollector struct {
	analytics.Counters
	producer analytics.Publisher
	size     int
	interval time.Duration
	in       chan any
	logger   *slog.Logger
	done     chan struct{}
}

func NewBatchCollector(producer analytics.Publisher, size int, interval time.Duration) *BatchCollector {
	if size <= 0 {
		size = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &BatchCollector{
		producer: producer,
		size:     size,
		interval: interval,
		in:       make(chan any, size*maxBacklog),
		logger:   slog.Default().With("component", "analytics-batcher"),
		done:     make(chan struct{}),
	}
}

// Track queues event without blocking; a full queue drops it.
func (b *BatchCollector) Track(event any) {
	select {
	case b.in <- event:
		b.Pending(1)
	default:
		b.Dropped(1)
	}
}

// Start runs the batching loop until ctx is cancelled. Whatever is
// buffered at that point gets one final publish attempt.
func (b *BatchCollector) Start(ctx context.Context) {
	go b.loop(ctx)
	b.logger.Info("batching analytics events", "size", b.size, "interval", b.interval)
}

// Close waits for the loop started by Start to exit.
func (b *BatchCollector) Close() { <-b.done }

func (b *BatchCollector) loop(ctx context.Context) {
	defer close(b.done)
	tick := time.NewTicker(b.interval)
	defer tick.Stop()

	buf := make([]kafka.Event, 0, b.size)
	for {
		select {
		case ev := <-b.in:
			buf = append(buf, analytics.Message(ev))
			// Only on reaching size; a backlog left by a failed flush waits
			// for the next tick.
			if len(buf) == b.size {
				buf = b.flush(ctx, buf)
			}
		case <-tick.C:
			buf = b.flush(ctx, buf)
		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case ev := <-b.in:
					buf = append(buf, analytics.Message(ev))
				default:
					drained = true
				}
			}
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if rest := b.flush(fctx, buf); len(rest) > 0 {
				b.Dropped(len(rest))
				b.Pending(-len(rest))
			}
			cancel()
			return
		}
	}
}

// flush publishes buf and returns what is still unsent: nothing on
// success, or buf trimmed to the backlog limit on failure.
func (b *BatchCollector) flush(ctx context.Context, buf []kafka.Event) []kafka.Event {
	if len(buf) == 0 {
		return buf
	}
	if err := b.producer.PublishBatch(ctx, buf); err != nil {
		b.Failed(len(buf))
		if limit := b.size * maxBacklog; len(buf) > limit {
			over := len(buf) - limit
			b.Dropped(over)
			b.Pending(-over)
			buf = append(buf[:0], buf[over:]...)
		}
		b.logger.Warn("analytics batch not published, keeping for retry", "events", len(buf), "error", err)
		return buf
	}
	b.Published(len(buf))
	b.Pending(-len(buf))
	return make([]kafka.Event, 0, b.size)
}
