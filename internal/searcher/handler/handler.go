// Package handler serves the search, suggestion, export and index
// administration endpoints over JSON.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/search"
	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/tracing"
)

type Searcher interface {
	Execute(ctx context.Context, q search.Query) search.Response
	AdvancedSearch(ctx context.Context, text string, c search.AdvancedCriteria) []records.Task
	Suggest(ctx context.Context, partial string, scope search.Scope) []string
	Statistics() search.Statistics
	ClearHistory()
	Export(ctx context.Context, q search.Query, format string) (string, error)
}

type Index interface {
	Rebuild(ctx context.Context, types ...records.Type) error
	Stats() indexer.Stats
}

type Cache interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) error
}

type Handler struct {
	searcher Searcher
	index    Index
	cache    Cache
	logger   *slog.Logger
}

// New builds a Handler. cache may be nil.
func New(searcher Searcher, index Index, cache Cache) *Handler {
	return &Handler{
		searcher: searcher,
		index:    index,
		cache:    cache,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/search/advanced", h.Advanced)
	mux.HandleFunc("GET /api/v1/search/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/search/stats", h.Stats)
	mux.HandleFunc("DELETE /api/v1/search/history", h.ClearHistory)
	mux.HandleFunc("GET /api/v1/search/export", h.Export)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, trace := tracing.New(r.Context(), "http.search", logger.RequestID(r.Context()))
	defer trace.Log(logger.FromContext(ctx))

	q, err := parseQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := h.searcher.Execute(ctx, q)

	logger.FromContext(ctx).Info("search completed",
		"query", q.Text,
		"scope", q.Scope,
		"total", resp.Total,
		"returned", len(resp.Results),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	w.Header().Set("Server-Timing", trace.ServerTiming())
	h.writeJSON(w, http.StatusOK, resp)
}

// advancedRequest is the advanced search body. Unknown fields are an
// error rather than a silently dropped criterion.
type advancedRequest struct {
	Text string `json:"text"`
	search.AdvancedCriteria
}

func (h *Handler) Advanced(w http.ResponseWriter, r *http.Request) {
	var req advancedRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: decoding body: %v", apperrors.ErrInvalidInput, err))
		return
	}
	tasks := h.searcher.AdvancedSearch(r.Context(), req.Text, req.AdvancedCriteria)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"total": len(tasks),
		"tasks": tasks,
	})
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	scope, err := search.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	suggestions := h.searcher.Suggest(r.Context(), r.URL.Query().Get("q"), scope)
	h.writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.searcher.Statistics())
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.searcher.ClearHistory()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// unbounded lifts the server write deadline for long-running endpoints.
// Writers that cannot set deadlines are left as they are.
func unbounded(w http.ResponseWriter) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	unbounded(w)
	q, err := parseQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	path, err := h.searcher.Export(r.Context(), q, r.URL.Query().Get("format"))
	if err != nil {
		logger.FromContext(r.Context()).Error("export failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// Rebuild reindexes the record types named by the comma-separated table
// parameter, or every type when it is empty.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	unbounded(w)
	var types []records.Type
	for _, name := range strings.Split(r.URL.Query().Get("table"), ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		rt, err := records.ParseType(name)
		if err != nil {
			h.writeError(w, err)
			return
		}
		types = append(types, rt)
	}
	start := time.Now()
	if err := h.index.Rebuild(r.Context(), types...); err != nil {
		logger.FromContext(r.Context()).Error("rebuild failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "rebuilt",
		"duration_ms": time.Since(start).Milliseconds(),
		"stats":       h.index.Stats(),
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.index.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// parseQuery reads q, scope, op, sort_by, sort_order, limit, offset and
// repeated filter=field:op:value parameters.
func parseQuery(r *http.Request) (search.Query, error) {
	v := r.URL.Query()
	q := search.Query{
		Text:      v.Get("q"),
		SortBy:    strings.ToLower(v.Get("sort_by")),
		SortOrder: strings.ToLower(v.Get("sort_order")),
	}
	var err error
	if q.Scope, err = search.ParseScope(v.Get("scope")); err != nil {
		return q, err
	}
	if q.Operator, err = search.ParseOperator(v.Get("op")); err != nil {
		return q, err
	}
	switch q.SortBy {
	case "", search.SortRelevance, search.SortDate, search.SortTitle, search.SortPriority:
	default:
		return q, fmt.Errorf("%w: unknown sort_by %q", apperrors.ErrInvalidInput, q.SortBy)
	}
	if q.Limit, err = intParam(v.Get("limit"), "limit", 1); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(v.Get("offset"), "offset", 0); err != nil {
		return q, err
	}
	for _, raw := range v["filter"] {
		f, err := search.ParseFilter(raw)
		if err != nil {
			return q, err
		}
		q.Filters = append(q.Filters, f)
	}
	return q, nil
}

func intParam(s, name string, minimum int) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("%w: %s must be an integer >= %d", apperrors.ErrInvalidInput, name, minimum)
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, msg := apperrors.Public(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
