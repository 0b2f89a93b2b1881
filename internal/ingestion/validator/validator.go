// Package validator checks record change events before they are persisted
// and returns per-field error details.
package validator

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
)

const (
	maxKeyLength   = 255
	maxTitleLength = 1024
	maxTextLength  = 1 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

// StatusCode reports 422: the request was well-formed JSON but the record
// is not acceptable.
func (e *ValidationError) StatusCode() int { return http.StatusUnprocessableEntity }

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateEvent checks the op, record type and key of ev and, for upserts,
// the identifying fields and sizes of the carried record.
func ValidateEvent(ev consumer.RecordEvent) error {
	errs := make(map[string]string)

	switch ev.Op {
	case consumer.OpUpsert, consumer.OpDelete:
	default:
		errs["op"] = fmt.Sprintf("op must be %q or %q", consumer.OpUpsert, consumer.OpDelete)
	}
	rt, err := records.ParseType(ev.RecordType)
	if err != nil {
		errs["record_type"] = "record_type must be task, team or legislation"
	}
	checkLength(errs, "key", ev.Key, maxKeyLength, true)

	if ev.Op == consumer.OpUpsert && err == nil {
		switch rt {
		case records.TypeTask:
			if ev.Task == nil {
				errs["task"] = "task is required"
				break
			}
			checkLength(errs, "title", ev.Task.Title, maxTitleLength, true)
			checkLength(errs, "description", ev.Task.Description, maxTextLength, false)
			checkKey(errs, ev.Key, ev.Task.Key)
		case records.TypeTeam:
			if ev.Member == nil {
				errs["member"] = "member is required"
				break
			}
			checkLength(errs, "name", ev.Member.Name, maxTitleLength, true)
			checkKey(errs, ev.Key, ev.Member.Email)
		case records.TypeLegislation:
			if ev.Legislation == nil {
				errs["legislation"] = "legislation is required"
				break
			}
			checkLength(errs, "title", ev.Legislation.Title, maxTitleLength, true)
			checkLength(errs, "description", ev.Legislation.Description, maxTextLength, false)
			checkKey(errs, ev.Key, ev.Legislation.Code)
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func checkLength(errs map[string]string, field, value string, maxLen int, required bool) {
	value = strings.TrimSpace(value)
	switch {
	case required && value == "":
		errs[field] = field + " is required"
	case len(value) > maxLen:
		errs[field] = fmt.Sprintf("%s must be at most %d characters", field, maxLen)
	}
}

// checkKey rejects a record whose own key disagrees with the event key.
func checkKey(errs map[string]string, eventKey, recordKey string) {
	if eventKey != "" && recordKey != eventKey {
		errs["key"] = fmt.Sprintf("key %q does not match record key %q", eventKey, recordKey)
	}
}
