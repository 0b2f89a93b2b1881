// Package kafka carries record-change and analytics events over Kafka
// using segmentio/kafka-go. Values are JSON; the event type travels in a
// header so consumers can dispatch without decoding the body twice.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header names set on every produced message.
const (
	HeaderType        = "event-type"
	HeaderContentType = "content-type"
)

// Event is what producers publish. Key picks the partition, Type is
// copied into HeaderType and Value is marshalled as JSON.
type Event struct {
	Key   string
	Type  string
	Value any
}

// Message is a consumed record as handlers see it.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Type      string
	Value     []byte
	Time      time.Time
}

func fromKafka(m kafka.Message) Message {
	out := Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       string(m.Key),
		Value:     m.Value,
		Time:      m.Time,
	}
	for _, h := range m.Headers {
		if h.Key == HeaderType {
			out.Type = string(h.Value)
		}
	}
	return out
}

func toKafka(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding %s event %q: %w", e.Type, e.Key, err)
	}
	return kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderType, Value: []byte(e.Type)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}, nil
}

// Decode unmarshals a message body into T.
func Decode[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding kafka message: %w", err)
	}
	return v, nil
}

// Ping succeeds when any broker answers a metadata request.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	var d kafka.Dialer
	var errs []error
	for _, addr := range brokers {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, err = conn.Brokers()
		conn.Close()
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("kafka: no broker reachable: %w", errors.Join(errs...))
}
