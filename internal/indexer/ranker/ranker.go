// Package ranker turns per-record match counts into normalised relevance
// scores and orders candidates deterministically.
package ranker

import "sort"

// Scored is a candidate record with its relevance score in (0, 1].
type Scored struct {
	RecordType string  `json:"record_type"`
	Key        string  `json:"key"`
	Score      float64 `json:"score"`
	Matches    int     `json:"matches"`
}

// Normalize divides each count by the largest count in counts. Records
// with no matches are dropped.
func Normalize(recordType string, counts map[string]int) []Scored {
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return nil
	}
	out := make([]Scored, 0, len(counts))
	for key, n := range counts {
		if n <= 0 {
			continue
		}
		out = append(out, Scored{
			RecordType: recordType,
			Key:        key,
			Score:      float64(n) / float64(max),
			Matches:    n,
		})
	}
	return out
}

// Less orders by descending score, then record type, then key.
func Less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.RecordType != b.RecordType {
		return a.RecordType < b.RecordType
	}
	return a.Key < b.Key
}

// Rank sorts candidates with Less and truncates to limit. A limit of zero
// or less keeps everything.
func Rank(candidates []Scored, limit int) []Scored {
	sort.Slice(candidates, func(i, j int) bool {
		return Less(candidates[i], candidates[j])
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
