package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/kafka"
)

// Publisher is the Kafka producer surface the collectors need.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorStats counts what happened to tracked events.
type CollectorStats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int64 `json:"pending"`
}

// Counters is shared bookkeeping for collectors.
type Counters struct {
	published, failed, dropped, pending atomic.Int64
}

func (c *Counters) Published(n int) { c.published.Add(int64(n)) }
func (c *Counters) Failed(n int)    { c.failed.Add(int64(n)) }
func (c *Counters) Dropped(n int)   { c.dropped.Add(int64(n)) }
func (c *Counters) Pending(n int)   { c.pending.Add(int64(n)) }

func (c *Counters) Stats() CollectorStats {
	return CollectorStats{
		Published: c.published.Load(),
		Failed:    c.failed.Load(),
		Dropped:   c.dropped.Load(),
		Pending:   c.pending.Load(),
	}
}

// Message wraps a tracked event for the analytics topic.
func Message(event any) kafka.Event {
	return kafka.Event{Key: Key(event), Type: string(TypeOf(event)), Value: event}
}

// drainTimeout bounds publishing of queued events after shutdown.
const drainTimeout = 5 * time.Second

// Collector publishes events one at a time. Track never blocks: events
// beyond the queue capacity are dropped and counted.
type Collector struct {
	Counters
	producer Publisher
	queue    chan any
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(producer Publisher, queueSize int) *Collector {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &Collector{
		producer: producer,
		queue:    make(chan any, queueSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start publishes queued events in the background until ctx is cancelled
// or Close is called, then drains what is left.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case ev, ok := <-c.queue:
				if !ok {
					return
				}
				c.publish(ctx, ev)
			case <-ctx.Done():
				c.drain()
				return
			}
		}
	}()
}

func (c *Collector) Track(event any) {
	select {
	case c.queue <- event:
		c.Pending(1)
	default:
		c.Dropped(1)
	}
}

// Close stops accepting events and waits for the queue to empty. Start
// must have been called.
func (c *Collector) Close() {
	close(c.queue)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event any) {
	c.Pending(-1)
	if err := c.producer.Publish(ctx, Message(event)); err != nil {
		c.Failed(1)
		c.logger.Warn("analytics event not published", "type", TypeOf(event), "error", err)
		return
	}
	c.Published(1)
}

func (c *Collector) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev, ok := <-c.queue:
			if !ok {
				return
			}
			c.publish(ctx, ev)
		default:
			return
		}
	}
}
