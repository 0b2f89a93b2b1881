// Package ratelimit implements an in-memory per-key token bucket.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Decision is the outcome of one Take.
type Decision struct {
	Allowed bool
	// Remaining is the whole tokens left after this request.
	Remaining int
	// RetryAfter is zero when allowed, otherwise the wait until the key's
	// next token.
	RetryAfter time.Duration
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// Limiter gives each key limit tokens per window, refilled continuously.
type Limiter struct {
	limit  float64
	window time.Duration
	rate   float64 // tokens per second
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func New(limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:   float64(max(limit, 0)),
		window:  window,
		rate:    float64(max(limit, 0)) / window.Seconds(),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Limit is the per-window budget.
func (l *Limiter) Limit() int { return int(l.limit) }

// Take consumes a token for key if one is available.
func (l *Limiter) Take(key string) Decision {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.limit, seen: now}
		l.buckets[key] = b
	} else {
		b.tokens = math.Min(l.limit, b.tokens+now.Sub(b.seen).Seconds()*l.rate)
		b.seen = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true, Remaining: int(b.tokens)}
	}
	if l.rate == 0 {
		return Decision{RetryAfter: l.window}
	}
	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return Decision{RetryAfter: wait.Round(time.Millisecond)}
}

// Allow is Take reduced to its verdict.
func (l *Limiter) Allow(key string) bool { return l.Take(key).Allowed }

func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Run evicts keys idle for two windows until ctx is cancelled. An idle key
// has a full bucket again, so eviction never changes a decision.
func (l *Limiter) Run(ctx context.Context) {
	t := time.NewTicker(l.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.sweep(l.now().Add(-2 * l.window))
		}
	}
}

func (l *Limiter) sweep(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
