package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	lat := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(lat, 50))
	assert.Equal(t, time.Duration(10), percentile(lat, 99))
	assert.Equal(t, time.Duration(1), percentile(lat, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestRequestURLSplitsTraffic(t *testing.T) {
	cfg := Config{BaseURL: "http://x", Scope: "tasks", Operator: "and", SuggestRatio: 20, Queries: []string{"\"gdpr audit\""}}

	endpoint, target := requestURL(cfg, 5)
	assert.Equal(t, "suggest", endpoint)
	assert.Equal(t, "http://x/api/v1/search/suggest?q=gdp&scope=tasks", target)

	endpoint, target = requestURL(cfg, 50)
	assert.Equal(t, "search", endpoint)
	assert.Contains(t, target, "op=and")
	assert.Contains(t, target, "q=%22gdpr+audit%22")
}

func TestLoadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\ngdpr\n\n fire safety \n"), 0o644))
	qs, err := loadQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"gdpr", "fire safety"}, qs)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = loadQueries(empty)
	assert.Error(t, err)
}

func TestRunLoadTest(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.True(t, strings.HasPrefix(r.Header.Get("X-Request-ID"), "loadtest-"))
		if r.URL.Path == "/api/v1/search/suggest" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"total":0,"results":[]}`))
	}))
	defer srv.Close()

	cfg := Config{BaseURL: srv.URL, Concurrency: 2, Duration: 200 * time.Millisecond, Scope: "all", Operator: "or", SuggestRatio: 50, Queries: defaultQueries}
	stats := runLoadTest(context.Background(), cfg, &bytes.Buffer{})

	require.Positive(t, stats.Total())
	assert.Positive(t, stats.endpoints["search"].requests.Load())
	assert.Positive(t, stats.endpoints["suggest"].requests.Load())
	assert.Positive(t, stats.errorCount.Load())

	var out bytes.Buffer
	assert.True(t, printReport(&out, stats, cfg.Duration))
	assert.Contains(t, out.String(), "429:")
}
