package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/search"
	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
)

type fakeSearcher struct {
	lastQuery    search.Query
	lastCriteria search.AdvancedCriteria
	lastFormat   string
	cleared      bool
	exportErr    error
}

func (f *fakeSearcher) Execute(_ context.Context, q search.Query) search.Response {
	f.lastQuery = q
	return search.Response{
		Query:          q.Text,
		ProcessedQuery: strings.ToLower(q.Text),
		Total:          1,
		Results: []indexer.SearchResult{{
			RecordType: records.TypeTask, RecordKey: "T-1", Title: "GDPR audit",
			RelevanceScore: 1, MatchedFields: []string{"title"}, Data: map[string]any{},
		}},
	}
}

func (f *fakeSearcher) AdvancedSearch(_ context.Context, text string, c search.AdvancedCriteria) []records.Task {
	f.lastCriteria = c
	return []records.Task{{Key: "T-1", Title: text}}
}

func (f *fakeSearcher) Suggest(_ context.Context, partial string, scope search.Scope) []string {
	return []string{partial + ":" + string(scope)}
}

func (f *fakeSearcher) Statistics() search.Statistics {
	return search.Statistics{TotalSearches: 7}
}

func (f *fakeSearcher) ClearHistory() { f.cleared = true }

func (f *fakeSearcher) Export(_ context.Context, q search.Query, format string) (string, error) {
	f.lastQuery = q
	f.lastFormat = format
	if f.exportErr != nil {
		return "", f.exportErr
	}
	return "Exports/Search_Results.csv", nil
}

type fakeIndex struct {
	rebuilt []records.Type
	err     error
}

func (f *fakeIndex) Rebuild(_ context.Context, types ...records.Type) error {
	f.rebuilt = types
	return f.err
}

func (f *fakeIndex) Stats() indexer.Stats {
	return indexer.Stats{TotalRecords: 3}
}

type fakeCache struct{ invalidated bool }

func (c *fakeCache) Stats() (int64, int64)            { return 3, 1 }
func (c *fakeCache) Invalidate(context.Context) error { c.invalidated = true; return nil }

func setup(cache Cache) (*http.ServeMux, *fakeSearcher, *fakeIndex) {
	s, idx := &fakeSearcher{}, &fakeIndex{}
	mux := http.NewServeMux()
	New(s, idx, cache).Register(mux)
	return mux, s, idx
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestSearchParsesParameters(t *testing.T) {
	mux, s, _ := setup(nil)
	rec := do(mux, http.MethodGet,
		"/api/v1/search?q=GDPR+audit&scope=tasks&op=and&sort_by=Priority&sort_order=asc&limit=5&offset=10"+
			"&filter=status:=:Open&filter=priority:in:High,Critical", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, search.Query{
		Text:      "GDPR audit",
		Scope:     search.ScopeTasks,
		Operator:  search.OpAND,
		SortBy:    search.SortPriority,
		SortOrder: "asc",
		Limit:     5,
		Offset:    10,
		Filters: []search.Filter{
			{Field: "status", Operator: "=", Value: "Open"},
			{Field: "priority", Operator: "in", Value: []string{"High", "Critical"}},
		},
	}, s.lastQuery)

	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "gdpr audit", resp.ProcessedQuery)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "T-1", resp.Results[0].RecordKey)
	assert.Contains(t, rec.Header().Get("Server-Timing"), "total;dur=")
}

func TestSearchRejectsBadParameters(t *testing.T) {
	mux, _, _ := setup(nil)
	for _, target := range []string{
		"/api/v1/search?q=x&scope=everything",
		"/api/v1/search?q=x&op=xor",
		"/api/v1/search?q=x&limit=0",
		"/api/v1/search?q=x&offset=-1",
		"/api/v1/search?q=x&sort_by=size",
		"/api/v1/search?q=x&filter=status",
	} {
		rec := do(mux, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestAdvanced(t *testing.T) {
	mux, s, _ := setup(nil)
	rec := do(mux, http.MethodPost, "/api/v1/search/advanced",
		`{"text":"gdpr","status":["Open"],"allocated_to":["Alice"],"date_from":"2024-01-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, search.AdvancedCriteria{
		Status: []string{"Open"}, AllocatedTo: []string{"Alice"}, DateFrom: "2024-01-01",
	}, s.lastCriteria)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(mux, http.MethodPost, "/api/v1/search/advanced", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvancedDecodesEveryCriterion(t *testing.T) {
	mux, s, _ := setup(nil)
	rec := do(mux, http.MethodPost, "/api/v1/search/advanced", `{
		"text": "audit",
		"status": ["Open", "In Progress"],
		"priority": ["High"],
		"allocated_to": ["Bob"],
		"date_from": "2024-01-01",
		"date_to": "2024-06-30",
		"compliance_area": "Data Protection"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	want := search.AdvancedCriteria{
		Status:         []string{"Open", "In Progress"},
		Priority:       []string{"High"},
		AllocatedTo:    []string{"Bob"},
		DateFrom:       "2024-01-01",
		DateTo:         "2024-06-30",
		ComplianceArea: "Data Protection",
	}
	assert.Equal(t, want, s.lastCriteria)
	assert.Len(t, s.lastCriteria.Filters(), 6)
}

func TestAdvancedRejectsUnknownCriteria(t *testing.T) {
	mux, s, _ := setup(nil)
	rec := do(mux, http.MethodPost, "/api/v1/search/advanced",
		`{"text":"audit","assignee":["Bob"],"category":"Data Protection","overdue":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "assignee")
	assert.Empty(t, s.lastCriteria.Filters())
}

func TestSuggestStatsAndHistory(t *testing.T) {
	mux, s, _ := setup(nil)

	rec := do(mux, http.MethodGet, "/api/v1/search/suggest?q=gd&scope=team", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"suggestions":["gd:team"]}`, rec.Body.String())

	rec = do(mux, http.MethodGet, "/api/v1/search/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_searches":7`)

	rec = do(mux, http.MethodDelete, "/api/v1/search/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.cleared)
}

func TestExport(t *testing.T) {
	mux, s, _ := setup(nil)
	rec := do(mux, http.MethodGet, "/api/v1/search/export?q=gdpr&scope=tasks&format=excel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "excel", s.lastFormat)
	assert.Equal(t, search.ScopeTasks, s.lastQuery.Scope)
	assert.JSONEq(t, `{"path":"Exports/Search_Results.csv"}`, rec.Body.String())

	s.exportErr = apperrors.ErrUnsupportedFormat
	rec = do(mux, http.MethodGet, "/api/v1/search/export?q=gdpr&format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.exportErr = errors.New("disk full")
	rec = do(mux, http.MethodGet, "/api/v1/search/export?q=gdpr", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestRebuild(t *testing.T) {
	mux, _, idx := setup(nil)
	rec := do(mux, http.MethodPost, "/api/v1/index/rebuild?table=task,+team", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []records.Type{records.TypeTask, records.TypeTeam}, idx.rebuilt)
	assert.Contains(t, rec.Body.String(), `"total_records":3`)

	rec = do(mux, http.MethodPost, "/api/v1/index/rebuild", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, idx.rebuilt)

	rec = do(mux, http.MethodPost, "/api/v1/index/rebuild?table=documents", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	idx.err = errors.New("store down")
	rec = do(mux, http.MethodPost, "/api/v1/index/rebuild", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(mux, http.MethodGet, "/api/v1/index/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_records":3`)
}

func TestCacheEndpoints(t *testing.T) {
	mux, _, _ := setup(nil)
	rec := do(mux, http.MethodGet, "/api/v1/cache/stats", "")
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())
	rec = do(mux, http.MethodPost, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	cache := &fakeCache{}
	mux, _, _ = setup(cache)
	rec = do(mux, http.MethodGet, "/api/v1/cache/stats", "")
	assert.JSONEq(t, `{"hits":3,"misses":1,"total":4,"hit_rate":"75.0%"}`, rec.Body.String())
	rec = do(mux, http.MethodPost, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cache.invalidated)
}
