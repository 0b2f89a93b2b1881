package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesthandler "github.com/Adithya-Monish-Kumar-K/compliance-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/middleware"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	a, err := Open(context.Background(), testConfig(t, "sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	mux := http.NewServeMux()
	handler.New(a.Search, a.Index, nil).Register(mux)
	ingesthandler.New(publisher.New(a.SQL, nil, a.Index)).Register(mux)
	srv := httptest.NewServer(middleware.RequestID(mux))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRecordWriteSearchDeleteFlow(t *testing.T) {
	srv := newServer(t)

	var resp search.Response
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/v1/search?q=vendor", "", &resp))
	assert.Zero(t, resp.Total)

	status := call(t, http.MethodPut, srv.URL+"/api/v1/records/task",
		`{"key":"T-7","title":"Vendor due diligence","compliance_area":"Third Party","status":"Open","priority":"High"}`, nil)
	require.Equal(t, http.StatusOK, status)
	status = call(t, http.MethodPut, srv.URL+"/api/v1/records/legislation",
		`{"code":"UKBA","title":"UK Bribery Act","category":"Anti-Bribery","description":"Vendor and third party bribery offences"}`, nil)
	require.Equal(t, http.StatusOK, status)

	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/v1/search?q=vendor", "", &resp))
	require.Equal(t, 2, resp.Total)

	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/v1/search?q=vendor&scope=tasks&filter=priority:=:High", "", &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "T-7", resp.Results[0].RecordKey)

	require.Equal(t, http.StatusOK, call(t, http.MethodDelete, srv.URL+"/api/v1/records/task/T-7", "", nil))
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/v1/search?q=vendor", "", &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "UKBA", resp.Results[0].RecordKey)

	// The store is the source of truth: a rebuild reproduces the index.
	var rebuilt struct {
		Status string `json:"status"`
		Stats  struct {
			TotalRecords int `json:"total_records"`
		} `json:"stats"`
	}
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, srv.URL+"/api/v1/index/rebuild", "", &rebuilt))
	assert.Equal(t, "rebuilt", rebuilt.Status)
	assert.Equal(t, 1, rebuilt.Stats.TotalRecords)

	var stats search.Statistics
	require.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/api/v1/search/stats", "", &stats))
	assert.Equal(t, 4, stats.TotalSearches)
}
