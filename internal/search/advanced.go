package search

import (
	"context"
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
)

// AdvancedCriteria narrows a task search. Empty fields are ignored.
type AdvancedCriteria struct {
	Status         []string `json:"status,omitempty"`
	Priority       []string `json:"priority,omitempty"`
	AllocatedTo    []string `json:"allocated_to,omitempty"`
	DateFrom       string   `json:"date_from,omitempty"`
	DateTo         string   `json:"date_to,omitempty"`
	ComplianceArea string   `json:"compliance_area,omitempty"`
}

// Filters translates the criteria into result filters.
func (c AdvancedCriteria) Filters() []Filter {
	var fs []Filter
	if len(c.Status) > 0 {
		fs = append(fs, Filter{Field: "status", Operator: FilterIn, Value: c.Status})
	}
	if len(c.Priority) > 0 {
		fs = append(fs, Filter{Field: "priority", Operator: FilterIn, Value: c.Priority})
	}
	if len(c.AllocatedTo) > 0 {
		fs = append(fs, Filter{Field: "allocated_to", Operator: FilterContainsAny, Value: c.AllocatedTo})
	}
	if c.DateFrom != "" {
		fs = append(fs, Filter{Field: "created_date", Operator: FilterGe, Value: c.DateFrom})
	}
	if c.DateTo != "" {
		fs = append(fs, Filter{Field: "created_date", Operator: FilterLe, Value: c.DateTo})
	}
	if c.ComplianceArea != "" {
		fs = append(fs, Filter{Field: "compliance_area", Operator: FilterEq, Value: c.ComplianceArea})
	}
	return fs
}

// AdvancedSearch runs a task search with the criteria as filters and
// returns the matching tasks.
func (s *Service) AdvancedSearch(ctx context.Context, text string, c AdvancedCriteria) []records.Task {
	results, _ := s.Search(ctx, Query{Text: text, Scope: ScopeTasks, Filters: c.Filters()})
	return s.tasksFor(ctx, results)
}

func (s *Service) tasksFor(ctx context.Context, results []indexer.SearchResult) []records.Task {
	tasks := make([]records.Task, 0, len(results))
	for _, r := range results {
		if t, ok := s.taskFromResult(ctx, r); ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// taskFromResult loads the task behind r. A store failure falls back to
// decoding the result payload; a task the store no longer has is dropped.
func (s *Service) taskFromResult(ctx context.Context, r indexer.SearchResult) (records.Task, bool) {
	if r.RecordType != records.TypeTask {
		return records.Task{}, false
	}
	t, err := s.store.GetTask(ctx, r.RecordKey)
	if err == nil {
		if t == nil {
			return records.Task{}, false
		}
		return *t, true
	}
	s.logger.Warn("loading task, using result data", "key", r.RecordKey, "error", err)
	data, err := json.Marshal(r.Data)
	if err != nil {
		return records.Task{}, false
	}
	var decoded records.Task
	if err := json.Unmarshal(data, &decoded); err != nil || decoded.Validate() != nil {
		return records.Task{}, false
	}
	return decoded, true
}
