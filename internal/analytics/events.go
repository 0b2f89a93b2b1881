// Package analytics collects search and index events, publishes them to
// Kafka and aggregates them into query statistics.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventZeroResult EventType = "zero_result"
	EventIndex      EventType = "index_record"
	EventRebuild    EventType = "index_rebuild"
)

type SearchEvent struct {
	Type           EventType `json:"type"`
	Query          string    `json:"query"`
	ProcessedQuery string    `json:"processed_query"`
	Scope          string    `json:"scope"`
	Operator       string    `json:"operator"`
	TotalHits      int       `json:"total_hits"`
	Returned       int       `json:"returned"`
	LatencyMs      int64     `json:"latency_ms"`
	CacheHit       bool      `json:"cache_hit"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id,omitempty"`
}

type IndexEvent struct {
	Type       EventType `json:"type"`
	Op         string    `json:"op"`
	RecordType string    `json:"record_type"`
	Key        string    `json:"key,omitempty"`
	Records    int       `json:"records"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// TypeOf reports the type carried by a search or index event, or "" for
// anything else.
func TypeOf(event any) EventType {
	switch e := event.(type) {
	case SearchEvent:
		return e.Type
	case *SearchEvent:
		return e.Type
	case IndexEvent:
		return e.Type
	case *IndexEvent:
		return e.Type
	}
	return ""
}

// Key is the Kafka partition key for an event.
func Key(event any) string {
	switch e := event.(type) {
	case SearchEvent:
		return string(e.Type)
	case IndexEvent:
		return e.RecordType
	}
	return "analytics"
}

// Tracker accepts events without blocking.
type Tracker interface {
	Track(event any)
}

// Fanout tracks every event on each of its trackers.
type Fanout []Tracker

func (f Fanout) Track(event any) {
	for _, t := range f {
		if t != nil {
			t.Track(event)
		}
	}
}
