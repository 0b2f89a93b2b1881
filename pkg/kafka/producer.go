package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ProducerStats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}

// Producer writes events to one topic. Writes are synchronous: Publish
// returns once the brokers acknowledged the batch.
type Producer struct {
	topic     string
	writer    messageWriter
	logger    *slog.Logger
	published atomic.Int64
	failed    atomic.Int64
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 20 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		topic:  topic,
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func (p *Producer) Publish(ctx context.Context, e Event) error {
	return p.PublishBatch(ctx, []Event{e})
}

// PublishBatch encodes every event before writing any, so an unencodable
// event fails the whole batch without a partial write.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		m, err := toKafka(e)
		if err != nil {
			p.failed.Add(int64(len(events)))
			return err
		}
		msgs[i] = m
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.failed.Add(int64(len(msgs)))
		p.logger.Warn("write failed", "events", len(msgs), "error", err)
		return fmt.Errorf("publishing %d events to %s: %w", len(msgs), p.topic, err)
	}
	p.published.Add(int64(len(msgs)))
	return nil
}

func (p *Producer) Stats() ProducerStats {
	return ProducerStats{Published: p.published.Load(), Failed: p.failed.Load()}
}

// Close flushes buffered writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
