package search

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistorySize caps the search history when none is configured.
const DefaultHistorySize = 1000

// FilterLog is a filter as recorded in history.
type FilterLog struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// HistoryEntry records one executed search.
type HistoryEntry struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Query       string      `json:"query"`
	Scope       Scope       `json:"scope"`
	Filters     []FilterLog `json:"filters"`
	ResultCount int         `json:"result_count"`
}

// History is a bounded FIFO of searches.
type History struct {
	mu      sync.Mutex
	cap     int
	entries []HistoryEntry
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{cap: capacity}
}

func (h *History) Add(q Query, resultCount int, at time.Time) HistoryEntry {
	logs := make([]FilterLog, 0, len(q.Filters))
	for _, f := range q.Filters {
		logs = append(logs, FilterLog{Field: f.Field, Operator: f.Operator, Value: fmt.Sprint(f.Value)})
	}
	e := HistoryEntry{
		ID:          uuid.NewString(),
		Timestamp:   at,
		Query:       q.Text,
		Scope:       q.Scope,
		Filters:     logs,
		ResultCount: resultCount,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.cap; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
	return e
}

// Recent returns up to n of the newest entries, oldest first. n <= 0
// returns all.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := 0
	if n > 0 && len(h.entries) > n {
		start = len(h.entries) - n
	}
	return append([]HistoryEntry(nil), h.entries[start:]...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// QueryCount is a query and how often it was searched.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// RecentSearch summarises a history entry.
type RecentSearch struct {
	Query     string `json:"query"`
	Timestamp string `json:"timestamp"`
	Results   int    `json:"results"`
}

// Statistics summarises search usage.
type Statistics struct {
	TotalSearches  int            `json:"total_searches"`
	PopularQueries []QueryCount   `json:"popular_queries"`
	SearchByScope  map[Scope]int  `json:"search_by_scope"`
	AverageResults float64        `json:"average_results"`
	RecentSearches []RecentSearch `json:"recent_searches"`
}

// Statistics reports the top ten queries, per-scope counts, the mean
// result count and the last ten searches.
func (h *History) Statistics() Statistics {
	entries := h.Recent(0)
	st := Statistics{
		TotalSearches:  len(entries),
		PopularQueries: []QueryCount{},
		SearchByScope:  map[Scope]int{},
		RecentSearches: []RecentSearch{},
	}
	if len(entries) == 0 {
		return st
	}

	counts := map[string]int{}
	var order []string
	total := 0
	for _, e := range entries {
		if counts[e.Query] == 0 {
			order = append(order, e.Query)
		}
		counts[e.Query]++
		st.SearchByScope[e.Scope]++
		total += e.ResultCount
	}
	for _, q := range order {
		st.PopularQueries = append(st.PopularQueries, QueryCount{Query: q, Count: counts[q]})
	}
	sort.SliceStable(st.PopularQueries, func(i, j int) bool {
		return st.PopularQueries[i].Count > st.PopularQueries[j].Count
	})
	if len(st.PopularQueries) > 10 {
		st.PopularQueries = st.PopularQueries[:10]
	}

	avg := float64(total) / float64(len(entries))
	st.AverageResults = float64(int(avg*10+0.5)) / 10

	start := max(len(entries)-10, 0)
	for _, e := range entries[start:] {
		st.RecentSearches = append(st.RecentSearches, RecentSearch{
			Query:     e.Query,
			Timestamp: e.Timestamp.Format("2006-01-02 15:04:05"),
			Results:   e.ResultCount,
		})
	}
	return st
}
