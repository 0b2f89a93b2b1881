// Command loadtest drives concurrent search and suggestion traffic against
// a running searchd and reports throughput, latency percentiles and status
// codes.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 1m
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var defaultQueries = []string{
	"data protection",
	"gdpr audit",
	"fire safety",
	"\"risk assessment\"",
	"privacy AND training",
	"health safety -drill",
	"anti money laundering",
	"vendor due diligence",
	"incident response",
	"whistleblowing policy",
	"iso 27001",
	"modern slavery statement",
	"accessibility review",
	"data retention",
	"environmental permit",
}

type Config struct {
	BaseURL      string
	Concurrency  int
	Duration     time.Duration
	Scope        string
	Operator     string
	SuggestRatio int
	Queries      []string
}

type endpointStats struct {
	requests  atomic.Int64
	latencyMu sync.Mutex
	latencies []time.Duration
}

type Stats struct {
	successCount  atomic.Int64
	errorCount    atomic.Int64
	endpoints     map[string]*endpointStats
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats(endpoints ...string) *Stats {
	s := &Stats{
		endpoints:   make(map[string]*endpointStats, len(endpoints)),
		statusCodes: make(map[int]*atomic.Int64),
	}
	for _, e := range endpoints {
		s.endpoints[e] = &endpointStats{latencies: make([]time.Duration, 0, 10000)}
	}
	return s
}

func (s *Stats) RecordRequest(endpoint string, duration time.Duration, statusCode int, err error) {
	es := s.endpoints[endpoint]
	es.requests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	es.latencyMu.Lock()
	es.latencies = append(es.latencies, duration)
	es.latencyMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func (s *Stats) Total() int64 {
	var n int64
	for _, es := range s.endpoints {
		n += es.requests.Load()
	}
	return n
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of searchd")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	scope := flag.String("scope", "all", "search scope")
	op := flag.String("op", "or", "search operator")
	suggestRatio := flag.Int("suggest-ratio", 20, "percentage of requests sent to the suggest endpoint")
	queriesFile := flag.String("queries", "", "file with one query per line (defaults to a built-in set)")
	flag.Parse()

	queries := defaultQueries
	if *queriesFile != "" {
		var err error
		if queries, err = loadQueries(*queriesFile); err != nil {
			fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := Config{
		BaseURL:      strings.TrimRight(*baseURL, "/"),
		Concurrency:  *concurrency,
		Duration:     *duration,
		Scope:        *scope,
		Operator:     *op,
		SuggestRatio: *suggestRatio,
		Queries:      queries,
	}

	fmt.Println("=== Compliance Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Scope/op:    %s/%s\n", cfg.Scope, cfg.Operator)
	fmt.Printf("Queries:     %d unique, %d%% suggest\n", len(cfg.Queries), cfg.SuggestRatio)
	fmt.Println()

	stats := runLoadTest(context.Background(), cfg, os.Stdout)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

func loadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return out, nil
}

// requestURL picks the endpoint for the n-th request of a worker. Every
// SuggestRatio-th percent of requests goes to suggest with a query prefix.
func requestURL(cfg Config, n int) (endpoint, target string) {
	query := cfg.Queries[n%len(cfg.Queries)]
	if cfg.SuggestRatio > 0 && n%100 < cfg.SuggestRatio {
		prefix := strings.Trim(query, "\"")
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		return "suggest", fmt.Sprintf("%s/api/v1/search/suggest?q=%s&scope=%s",
			cfg.BaseURL, url.QueryEscape(prefix), url.QueryEscape(cfg.Scope))
	}
	return "search", fmt.Sprintf("%s/api/v1/search?q=%s&scope=%s&op=%s&limit=10",
		cfg.BaseURL, url.QueryEscape(query), url.QueryEscape(cfg.Scope), url.QueryEscape(cfg.Operator))
}

func runLoadTest(parent context.Context, cfg Config, progress io.Writer) *Stats {
	stats := NewStats("search", "suggest")
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(parent, cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Fprint(progress, "Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for ctx.Err() == nil {
				endpoint, target := requestURL(cfg, n)
				n++

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					stats.RecordRequest(endpoint, 0, 0, err)
					continue
				}
				req.Header.Set("X-Request-ID", "loadtest-"+uuid.NewString())

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.RecordRequest(endpoint, elapsed, 0, err)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(endpoint, elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(progress, ".")
			}
		}
	}()

	wg.Wait()
	fmt.Fprintln(progress, " done!")
	fmt.Fprintln(progress)
	return stats
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.Total()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", errors)
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	names := make([]string, 0, len(stats.endpoints))
	for name := range stats.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		es := stats.endpoints[name]
		es.latencyMu.Lock()
		latencies := append([]time.Duration(nil), es.latencies...)
		es.latencyMu.Unlock()
		if len(latencies) == 0 {
			continue
		}
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sumSquared += diff * diff
		}

		fmt.Fprintln(w)
		fmt.Fprintf(w, "=== Latency: %s (%d requests) ===\n", name, es.requests.Load())
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
		fmt.Fprintf(w, "StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is searchd running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
