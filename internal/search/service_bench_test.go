package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records/filestore"
)

func benchService(b *testing.B, n int) *Service {
	b.Helper()
	areas := []string{"Data Protection", "Health and Safety", "Reporting"}
	priorities := []string{"Critical", "High", "Medium", "Low"}
	tasks := make([]records.Task, n)
	for i := range tasks {
		tasks[i] = records.Task{
			Key:            fmt.Sprintf("T-%d", i),
			Title:          fmt.Sprintf("GDPR control review %d", i),
			Description:    "Review personal data processing and retention evidence",
			ComplianceArea: areas[i%len(areas)],
			Priority:       priorities[i%len(priorities)],
			Status:         "Open",
			CreatedDate:    "2024-06-01",
		}
	}
	store := filestore.New(filepath.Join(b.TempDir(), "data"))
	if err := store.Write(records.TypeTask, tasks); err != nil {
		b.Fatal(err)
	}
	mgr := indexer.New(store, indexer.WithClock(clock))
	if err := mgr.Rebuild(context.Background()); err != nil {
		b.Fatal(err)
	}
	return New(mgr, Config{}, WithClock(clock))
}

func BenchmarkExecute(b *testing.B) {
	svc := benchService(b, 2000)
	queries := map[string]Query{
		"or":       {Text: "gdpr retention", Scope: ScopeTasks},
		"and":      {Text: "gdpr retention", Scope: ScopeTasks, Operator: OpAND},
		"exclude":  {Text: "gdpr -retention", Scope: ScopeTasks},
		"filtered": {Text: "gdpr", Scope: ScopeTasks, Filters: []Filter{{Field: "priority", Operator: FilterIn, Value: []string{"High", "Critical"}}}},
		"sorted":   {Text: "control review", Scope: ScopeAll, SortBy: SortPriority},
	}
	for name, q := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = svc.Execute(context.Background(), q)
			}
		})
	}
}

func BenchmarkPreprocess(b *testing.B) {
	pre := NewPreprocessor(nil, nil, nil)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = pre.Preprocess(`gdpr "data protection" -draft audit`, OpOR)
	}
}
