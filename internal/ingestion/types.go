// Package ingestion accepts record writes over HTTP, persists them to the
// SQL record store and forwards them to the index as record change events.
package ingestion

// Delivery statuses reported to callers.
const (
	// StatusAccepted means the event was published to Kafka and the index
	// will apply it asynchronously.
	StatusAccepted = "accepted"
	// StatusApplied means the index already reflects the change.
	StatusApplied = "applied"
)

// Response is returned to the caller after a record write is handled.
type Response struct {
	Op         string `json:"op"`
	RecordType string `json:"record_type"`
	Key        string `json:"key"`
	Status     string `json:"status"`
}
