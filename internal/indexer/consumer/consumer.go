// Package consumer reads record change events from Kafka and applies them
// to the search index.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/kafka"
)

// Event operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// RecordEvent is published whenever a record is created, updated or
// deleted. Upserts carry the record matching RecordType.
type RecordEvent struct {
	Op          string                        `json:"op"`
	RecordType  string                        `json:"record_type"`
	Key         string                        `json:"key"`
	Task        *records.Task                 `json:"task,omitempty"`
	Member      *records.TeamMember           `json:"member,omitempty"`
	Legislation *records.LegislationReference `json:"legislation,omitempty"`
}

// MessageType is the kafka event-type header value for ev.
func (ev RecordEvent) MessageType() string { return "record." + ev.Op }

// Index is the part of the indexer Manager the consumer drives.
type Index interface {
	IndexTask(records.Task) error
	IndexTeamMember(records.TeamMember) error
	IndexLegislation(records.LegislationReference) error
	Remove(rt records.Type, key string)
	Save() error
}

// IndexConsumer wraps a Kafka consumer to drive index updates.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Run(ctx)
}

// HandleMessage returns a MessageHandler applying record events to idx and
// persisting the snapshot afterwards. Undecodable or invalid events are
// logged and acknowledged so they do not block the partition.
func HandleMessage(idx Index) kafka.Handler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := kafka.Decode[RecordEvent](msg.Value)
		if err != nil {
			logger.Error("failed to decode record event", "error", err, "key", msg.Key, "offset", msg.Offset)
			return nil
		}
		if err := Apply(idx, event); err != nil {
			if errors.Is(err, apperrors.ErrMalformedRecord) ||
				errors.Is(err, apperrors.ErrUnknownRecordType) ||
				errors.Is(err, apperrors.ErrInvalidInput) {
				logger.Warn("dropping record event", "op", event.Op, "record_type", event.RecordType, "key", event.Key, "error", err)
				return nil
			}
			return err
		}
		if err := idx.Save(); err != nil {
			logger.Error("failed to persist index after event", "error", err)
		}
		logger.Debug("record event applied", "op", event.Op, "record_type", event.RecordType, "key", event.Key)
		return nil
	}
}

// Apply performs one event against idx.
func Apply(idx Index, ev RecordEvent) error {
	rt, err := records.ParseType(ev.RecordType)
	if err != nil {
		return err
	}
	switch ev.Op {
	case OpDelete:
		if ev.Key == "" {
			return fmt.Errorf("%w: delete event without key", apperrors.ErrInvalidInput)
		}
		idx.Remove(rt, ev.Key)
		return nil
	case OpUpsert:
	default:
		return fmt.Errorf("%w: unknown op %q", apperrors.ErrInvalidInput, ev.Op)
	}

	switch rt {
	case records.TypeTask:
		if ev.Task == nil {
			return missing(rt)
		}
		return idx.IndexTask(*ev.Task)
	case records.TypeTeam:
		if ev.Member == nil {
			return missing(rt)
		}
		return idx.IndexTeamMember(*ev.Member)
	default:
		if ev.Legislation == nil {
			return missing(rt)
		}
		return idx.IndexLegislation(*ev.Legislation)
	}
}

func missing(rt records.Type) error {
	return fmt.Errorf("%w: upsert event carries no %s record", apperrors.ErrMalformedRecord, rt)
}
