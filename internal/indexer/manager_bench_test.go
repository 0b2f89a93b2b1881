package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
)

var benchAreas = []string{"Data Protection", "Health and Safety", "Anti-Money Laundering", "Environmental", "Reporting"}

func benchStore(n int) *memStore {
	s := &memStore{}
	for i := 0; i < n; i++ {
		area := benchAreas[i%len(benchAreas)]
		s.tasks = append(s.tasks, records.Task{
			Key:            fmt.Sprintf("T-%d", i),
			Title:          fmt.Sprintf("%s review %d", area, i),
			Description:    "Quarterly review of controls, evidence and open actions for " + area,
			ComplianceArea: area,
			Status:         "Open",
			Priority:       "Medium",
		})
	}
	return s
}

func BenchmarkIndexTask(b *testing.B) {
	store := benchStore(1000)
	m := New(store)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.IndexTask(store.tasks[i%len(store.tasks)])
	}
}

func BenchmarkRebuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("tasks_%d", n), func(b *testing.B) {
			m := New(benchStore(n))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := m.Rebuild(context.Background(), records.TypeTask); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSearch(b *testing.B) {
	m := New(benchStore(10000))
	if err := m.Rebuild(context.Background()); err != nil {
		b.Fatal(err)
	}
	queries := map[string]string{
		"single_term": "laundering",
		"multi_term":  "data protection review",
		"common":      "quarterly controls evidence",
	}
	for name, q := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = m.Search(context.Background(), q, nil, nil, 50)
			}
		})
	}
	b.Run("phrase", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = m.SearchPhrase(context.Background(), "health and safety", nil, 50)
		}
	})
}
