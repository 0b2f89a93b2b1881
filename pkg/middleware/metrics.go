// Package middleware holds the HTTP middleware chain of the search
// service: request IDs, route metrics, CORS, rate limiting and timeouts.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/metrics"
)

type routeKey struct{}

// routeLabel is filled in by Route once the mux has picked a pattern.
type routeLabel struct{ pattern string }

// Metrics records request count, latency and in-flight requests. Requests
// are labelled by the mux pattern Route resolved ("/api/v1/records/{type}"
// rather than each key), or "unmatched".
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			label := &routeLabel{}
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), routeKey{}, label)))

			route := label.pattern
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code())).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Route serves mux and reports the matched pattern, without its method,
// to an enclosing Metrics middleware.
func Route(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeKey{}).(*routeLabel); ok {
			if _, pattern := mux.Handler(r); pattern != "" {
				if i := strings.IndexByte(pattern, ' '); i >= 0 {
					pattern = pattern[i+1:]
				}
				label.pattern = pattern
			}
		}
		mux.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
