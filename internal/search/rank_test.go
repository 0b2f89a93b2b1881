package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
)

func keys(rs []indexer.SearchResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.RecordKey
	}
	return out
}

func TestBoostTask(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	tests := []struct {
		name string
		data map[string]any
		want float64
	}{
		{"no boosts", map[string]any{"priority": "Low", "title": "x", "created_date": "2023-01-01"}, 1},
		{"critical", map[string]any{"priority": "Critical"}, 1.5},
		{"high overdue", map[string]any{"priority": "High", "is_overdue": true}, 1.2 * 1.3},
		{"title match", map[string]any{"title": "Annual GDPR Audit"}, 2},
		{"last week datetime", map[string]any{"created_date": "2024-06-12 09:00:00"}, 1.2},
		{"last month date", map[string]any{"created_date": "2024-06-01"}, 1.1},
		{"bad date", map[string]any{"created_date": "yesterday"}, 1},
		{"all", map[string]any{
			"priority": "Critical", "is_overdue": true, "title": "GDPR audit", "created_date": "2024-06-14",
		}, 1.5 * 1.3 * 2 * 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := indexer.SearchResult{RelevanceScore: 1, Data: tt.data}
			boostTask(&r, "gdpr audit", now)
			assert.InDelta(t, tt.want, r.RelevanceScore, 1e-9)
		})
	}
}

func TestSortByPriority(t *testing.T) {
	results := func() []indexer.SearchResult {
		return []indexer.SearchResult{
			{RecordKey: "critical", Data: map[string]any{"priority": "Critical"}},
			{RecordKey: "missing", Data: map[string]any{}},
			{RecordKey: "weird", Data: map[string]any{"priority": "Someday"}},
			{RecordKey: "high", Data: map[string]any{"priority": "High"}},
			{RecordKey: "blank", Data: map[string]any{"priority": ""}},
			{RecordKey: "number", Data: map[string]any{"priority": 2}},
		}
	}
	desc := results()
	sortResults(desc, SortPriority, "desc")
	assert.Equal(t, []string{"critical", "high", "missing", "number", "weird", "blank"}, keys(desc))

	asc := results()
	sortResults(asc, SortPriority, "asc")
	assert.Equal(t, []string{"weird", "blank", "missing", "number", "high", "critical"}, keys(asc))
}

func TestSortStableAndKeys(t *testing.T) {
	rs := []indexer.SearchResult{
		{RecordKey: "a", Title: "beta", RelevanceScore: 1, Data: map[string]any{"created_date": "2024-01-02"}},
		{RecordKey: "b", Title: "Alpha", RelevanceScore: 2, Data: map[string]any{"created_date": "2024-01-01"}},
		{RecordKey: "c", Title: "gamma", RelevanceScore: 1, Data: map[string]any{"created_date": "2024-01-03"}},
	}
	sortResults(rs, SortRelevance, "desc")
	assert.Equal(t, []string{"b", "a", "c"}, keys(rs))

	sortResults(rs, SortTitle, "asc")
	assert.Equal(t, []string{"b", "a", "c"}, keys(rs))

	sortResults(rs, SortDate, "desc")
	assert.Equal(t, []string{"c", "a", "b"}, keys(rs))

	sortResults(rs, "unknown", "asc")
	assert.Equal(t, []string{"c", "a", "b"}, keys(rs))
}

func TestPaginate(t *testing.T) {
	rs := []indexer.SearchResult{{RecordKey: "1"}, {RecordKey: "2"}, {RecordKey: "3"}}
	assert.Equal(t, []string{"2", "3"}, keys(paginate(rs, 1, 5)))
	assert.Equal(t, []string{"1"}, keys(paginate(rs, 0, 1)))
	assert.Empty(t, paginate(rs, 3, 1))
	assert.NotNil(t, paginate(nil, 0, 10))
}
