package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/resilience"
)

// Handler processes one message. A returned error triggers redelivery.
type Handler func(ctx context.Context, msg Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerStats struct {
	Handled     int64 `json:"handled"`
	Dropped     int64 `json:"dropped"`
	FetchErrors int64 `json:"fetch_errors"`
	LastOffset  int64 `json:"last_offset"`
}

type ConsumerOption func(*Consumer)

// WithRedelivery sets how often a failing message is retried before it is
// committed and counted as dropped.
func WithRedelivery(b resilience.Backoff) ConsumerOption {
	return func(c *Consumer) { c.redeliver = b }
}

// Consumer reads one topic as part of a consumer group. Offsets are
// committed after the handler succeeds or the message is dropped, so a
// poison message never blocks its partition.
type Consumer struct {
	topic     string
	reader    messageReader
	handler   Handler
	redeliver resilience.Backoff
	logger    *slog.Logger

	handled     atomic.Int64
	dropped     atomic.Int64
	fetchErrors atomic.Int64
	lastOffset  atomic.Int64
}

func NewConsumer(cfg config.KafkaConfig, topic string, h Handler, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, h, opts...)
}

func newConsumer(r messageReader, topic string, h Handler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		topic:     topic,
		reader:    r,
		handler:   h,
		redeliver: resilience.Backoff{Attempts: 3, Initial: 200 * time.Millisecond, Max: 5 * time.Second},
		logger:    slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastOffset.Store(-1)
	return c
}

// Run consumes until ctx is cancelled and then closes the reader. It
// returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Info("consuming")
	failures := 0
	for {
		km, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.fetchErrors.Add(1)
			failures++
			wait := c.redeliver.Delay(min(failures, 8))
			c.logger.Error("fetch failed", "error", err, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		failures = 0

		msg := fromKafka(km)
		err = resilience.Retry(ctx, "handle "+c.topic, c.redeliver, func(ctx context.Context) error {
			return c.handler(ctx, msg)
		})
		switch {
		case err == nil:
			c.handled.Add(1)
		case ctx.Err() != nil:
			// Left uncommitted; the group redelivers it after restart.
			return nil
		default:
			c.dropped.Add(1)
			c.logger.Error("dropping message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", msg.Key,
				"type", msg.Type,
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, km); err != nil {
			c.logger.Warn("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		c.lastOffset.Store(msg.Offset)
	}
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Handled:     c.handled.Load(),
		Dropped:     c.dropped.Load(),
		FetchErrors: c.fetchErrors.Load(),
		LastOffset:  c.lastOffset.Load(),
	}
}
