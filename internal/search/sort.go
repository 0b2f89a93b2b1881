package search

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
)

var priorityRank = map[string]int{
	"Critical": 0,
	"High":     1,
	"Medium":   2,
	"Low":      3,
}

// rankOf defaults a missing or non-string priority to Low. An empty or
// unrecognised priority ranks after Low.
func rankOf(r indexer.SearchResult) int {
	p, ok := r.Data["priority"].(string)
	if !ok {
		p = "Low"
	}
	if n, ok := priorityRank[p]; ok {
		return n
	}
	return len(priorityRank)
}

// sortResults orders results stably. Descending priority puts the most
// urgent first. Unknown sort keys keep the incoming order.
func sortResults(results []indexer.SearchResult, sortBy, order string) {
	desc := order != "asc"
	var less func(a, b indexer.SearchResult) bool
	switch sortBy {
	case SortRelevance:
		less = func(a, b indexer.SearchResult) bool { return a.RelevanceScore < b.RelevanceScore }
	case SortDate:
		less = func(a, b indexer.SearchResult) bool { return str(a.Data["created_date"]) < str(b.Data["created_date"]) }
	case SortTitle:
		less = func(a, b indexer.SearchResult) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case SortPriority:
		less = func(a, b indexer.SearchResult) bool { return rankOf(a) > rankOf(b) }
	default:
		return
	}
	sort.SliceStable(results, func(i, j int) bool {
		if desc {
			return less(results[j], results[i])
		}
		return less(results[i], results[j])
	})
}

// paginate slices results; the caller counts the total beforehand.
func paginate(results []indexer.SearchResult, offset, limit int) []indexer.SearchResult {
	if offset >= len(results) {
		return []indexer.SearchResult{}
	}
	end := len(results)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return results[offset:end]
}
