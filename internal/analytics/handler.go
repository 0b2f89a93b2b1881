package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTop = 100

// Report is the body of GET /api/v1/analytics.
type Report struct {
	AggregatedStats
	// Pipeline holds the counters of the collectors and consumers feeding
	// this process, keyed by name.
	Pipeline map[string]any `json:"pipeline,omitempty"`
}

type Handler struct {
	aggregator *Aggregator
	sources    map[string]func() any
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		sources:    make(map[string]func() any),
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// WithSource adds a named pipeline counter to every report. It must be
// called before the handler serves requests.
func (h *Handler) WithSource(name string, stats func() any) *Handler {
	h.sources[name] = stats
	return h
}

// Stats serves GET /api/v1/analytics. The optional top parameter (1-100,
// default 10) sizes the query lists.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTop {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be an integer between 1 and 100"})
			return
		}
		top = n
	}
	rep := Report{AggregatedStats: h.aggregator.Snapshot(top)}
	if len(h.sources) > 0 {
		rep.Pipeline = make(map[string]any, len(h.sources))
		for name, fn := range h.sources {
			rep.Pipeline[name] = fn()
		}
	}
	if err := writeJSON(w, http.StatusOK, rep); err != nil {
		h.logger.Warn("analytics response not written", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
