// Package health runs dependency probes for the liveness and readiness
// endpoints. A failing critical probe takes the service down; a failing
// optional probe only degrades it.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

// Probe checks one dependency. detail is reported on success and failure.
type Probe func(ctx context.Context) (detail string, err error)

// Ping adapts a plain ping function into a Probe.
func Ping(fn func(ctx context.Context) error) Probe {
	return func(ctx context.Context) (string, error) { return "", fn(ctx) }
}

type Component struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Detail   string `json:"detail,omitempty"`
	Error    string `json:"error,omitempty"`
	Latency  string `json:"latency"`
}

type Report struct {
	Status     Status      `json:"status"`
	Components []Component `json:"components"`
	CheckedAt  time.Time   `json:"checked_at"`
}

type check struct {
	name     string
	critical bool
	probe    Probe
}

// Registry holds the probes of one process.
type Registry struct {
	timeout time.Duration

	mu     sync.RWMutex
	checks []check
}

// New returns a Registry that gives each probe at most timeout; zero
// means 2s.
func New(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Registry{timeout: timeout}
}

// Critical registers a probe whose failure marks the service down.
func (r *Registry) Critical(name string, p Probe) { r.add(name, true, p) }

// Optional registers a probe whose failure marks the service degraded.
func (r *Registry) Optional(name string, p Probe) { r.add(name, false, p) }

func (r *Registry) add(name string, critical bool, p Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.checks {
		if c.name == name {
			r.checks[i] = check{name, critical, p}
			return
		}
	}
	r.checks = append(r.checks, check{name, critical, p})
}

// Run executes every probe concurrently. Components are sorted by name.
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	checks := append([]check(nil), r.checks...)
	r.mu.RUnlock()

	comps := make([]Component, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			comps[i] = r.probe(ctx, c)
		}()
	}
	wg.Wait()

	sort.Slice(comps, func(i, j int) bool { return comps[i].Name < comps[j].Name })
	rep := Report{Status: StatusUp, Components: comps, CheckedAt: time.Now().UTC()}
	for _, c := range comps {
		if c.Status.rank() > rep.Status.rank() {
			rep.Status = c.Status
		}
	}
	return rep
}

func (r *Registry) probe(ctx context.Context, c check) Component {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	detail, err := c.probe(ctx)
	out := Component{
		Name:     c.name,
		Status:   StatusUp,
		Critical: c.critical,
		Detail:   detail,
		Latency:  time.Since(start).Round(time.Microsecond).String(),
	}
	if err != nil {
		out.Error = err.Error()
		out.Status = StatusDegraded
		if c.critical {
			out.Status = StatusDown
		}
	}
	return out
}

// LiveHandler answers 200 while the process can serve HTTP at all.
func (r *Registry) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 503 only when a critical probe fails.
func (r *Registry) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rep := r.Run(req.Context())
		code := http.StatusOK
		if rep.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, rep)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
