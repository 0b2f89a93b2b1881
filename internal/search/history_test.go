package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryIsBoundedFIFO(t *testing.T) {
	h := NewHistory(3)
	at := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		h.Add(Query{Text: fmt.Sprintf("q%d", i), Scope: ScopeAll}, i, at)
	}
	require.Equal(t, 3, h.Len())
	entries := h.Recent(0)
	assert.Equal(t, "q3", entries[0].Query)
	assert.Equal(t, "q5", entries[2].Query)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)

	assert.Len(t, h.Recent(2), 2)
	assert.Equal(t, "q4", h.Recent(2)[0].Query)

	h.Clear()
	assert.Zero(t, h.Len())
}

func TestHistoryRecordsFilters(t *testing.T) {
	h := NewHistory(0)
	e := h.Add(Query{Text: "gdpr", Scope: ScopeTasks, Filters: []Filter{
		{Field: "priority", Operator: FilterIn, Value: []string{"High"}},
	}}, 2, time.Now())
	assert.Equal(t, []FilterLog{{Field: "priority", Operator: "in", Value: "[High]"}}, e.Filters)
}

func TestHistoryStatistics(t *testing.T) {
	h := NewHistory(100)
	at := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	h.Add(Query{Text: "gdpr", Scope: ScopeAll}, 2, at)
	h.Add(Query{Text: "audit", Scope: ScopeTasks}, 1, at)
	h.Add(Query{Text: "gdpr", Scope: ScopeTasks}, 1, at)

	st := h.Statistics()
	assert.Equal(t, 3, st.TotalSearches)
	assert.Equal(t, []QueryCount{{Query: "gdpr", Count: 2}, {Query: "audit", Count: 1}}, st.PopularQueries)
	assert.Equal(t, map[Scope]int{ScopeAll: 1, ScopeTasks: 2}, st.SearchByScope)
	assert.InDelta(t, 1.3, st.AverageResults, 1e-9)
	require.Len(t, st.RecentSearches, 3)
	assert.Equal(t, RecentSearch{Query: "gdpr", Timestamp: "2024-06-15 10:00:00", Results: 1}, st.RecentSearches[2])

	empty := NewHistory(1).Statistics()
	assert.Zero(t, empty.TotalSearches)
	assert.NotNil(t, empty.PopularQueries)
}
