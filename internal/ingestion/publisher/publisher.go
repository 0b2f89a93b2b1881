// Package publisher persists record writes to the SQL store and hands them
// to the index, through Kafka when a producer is configured.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/kafka"
)

// Writer is the write side of the SQL record store.
type Writer interface {
	PutTasks(ctx context.Context, tasks ...records.Task) error
	PutTeamMembers(ctx context.Context, members ...records.TeamMember) error
	PutLegislation(ctx context.Context, refs ...records.LegislationReference) error
	Delete(ctx context.Context, rt records.Type, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher coordinates record persistence and index delivery.
type Publisher struct {
	writer   Writer
	producer EventPublisher
	index    consumer.Index
	logger   *slog.Logger
}

// New creates a Publisher. producer may be nil, in which case events are
// applied to index directly.
func New(writer Writer, producer EventPublisher, index consumer.Index) *Publisher {
	return &Publisher{
		writer:   writer,
		producer: producer,
		index:    index,
		logger:   slog.Default().With("component", "record-publisher"),
	}
}

// Submit persists ev and delivers it to the index. The event must already
// be validated. A failed Kafka publish falls back to applying the event
// in-process so the index never lags behind the store.
func (p *Publisher) Submit(ctx context.Context, ev consumer.RecordEvent) (*ingestion.Response, error) {
	rt, err := records.ParseType(ev.RecordType)
	if err != nil {
		return nil, err
	}
	if err := p.persist(ctx, rt, ev); err != nil {
		return nil, fmt.Errorf("persisting %s %s: %w", rt, ev.Key, err)
	}

	resp := &ingestion.Response{Op: ev.Op, RecordType: string(rt), Key: ev.Key}
	if p.producer != nil {
		err := p.producer.Publish(ctx, kafka.Event{Key: string(rt) + ":" + ev.Key, Type: ev.MessageType(), Value: ev})
		if err == nil {
			resp.Status = ingestion.StatusAccepted
			return resp, nil
		}
		p.logger.Error("failed to publish record event, applying in-process",
			"record_type", rt, "key", ev.Key, "error", err)
	}

	if err := consumer.Apply(p.index, ev); err != nil {
		return nil, err
	}
	if err := p.index.Save(); err != nil {
		p.logger.Error("failed to persist index after record write", "error", err)
	}
	resp.Status = ingestion.StatusApplied
	return resp, nil
}

func (p *Publisher) persist(ctx context.Context, rt records.Type, ev consumer.RecordEvent) error {
	if ev.Op == consumer.OpDelete {
		return p.writer.Delete(ctx, rt, ev.Key)
	}
	switch rt {
	case records.TypeTask:
		return p.writer.PutTasks(ctx, *ev.Task)
	case records.TypeTeam:
		return p.writer.PutTeamMembers(ctx, *ev.Member)
	default:
		return p.writer.PutLegislation(ctx, *ev.Legislation)
	}
}
