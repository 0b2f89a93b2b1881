package search

import (
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
)

// Task boost factors. They compose multiplicatively.
const (
	BoostCritical   = 1.5
	BoostHigh       = 1.2
	BoostOverdue    = 1.3
	BoostTitleMatch = 2.0
	BoostLastWeek   = 1.2
	BoostLastMonth  = 1.1
)

// boostTask rescales a task result's relevance from its data payload.
func boostTask(r *indexer.SearchResult, queryText string, now time.Time) {
	score := r.RelevanceScore
	switch str(r.Data["priority"]) {
	case "Critical":
		score *= BoostCritical
	case "High":
		score *= BoostHigh
	}
	if overdue, _ := r.Data["is_overdue"].(bool); overdue {
		score *= BoostOverdue
	}
	if strings.Contains(strings.ToLower(str(r.Data["title"])), strings.ToLower(queryText)) {
		score *= BoostTitleMatch
	}
	if created, ok := parseCreated(str(r.Data["created_date"])); ok {
		days := int(now.Sub(created).Hours() / 24)
		switch {
		case days < 7:
			score *= BoostLastWeek
		case days < 30:
			score *= BoostLastMonth
		}
	}
	r.RelevanceScore = score
}

func parseCreated(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(records.DateTimeLayout, s, time.Local); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(records.DateLayout, s, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
