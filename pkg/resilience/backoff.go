package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Backoff describes how many attempts a call gets and how long to wait
// between them.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
	// Jitter spreads each delay by ±Jitter of its value.
	Jitter float64
	// Retryable filters errors worth another attempt. Nil retries all.
	Retryable func(error) bool
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 10 * time.Second
	}
	if b.Factor < 1 {
		b.Factor = 2
	}
	if b.Jitter <= 0 || b.Jitter >= 1 {
		b.Jitter = 0.1
	}
	return b
}

// Delay returns the wait before attempt n+1, for n starting at 1.
func (b Backoff) Delay(n int) time.Duration {
	b = b.withDefaults()
	d := float64(b.Initial) * math.Pow(b.Factor, float64(n-1))
	d *= 1 + b.Jitter*(2*rand.Float64()-1)
	return time.Duration(math.Min(d, float64(b.Max)))
}

// Retry calls fn until it succeeds, returns an error Retryable rejects, or
// runs out of attempts. The last error is wrapped with the attempt count.
func Retry(ctx context.Context, op string, b Backoff, fn func(context.Context) error) error {
	b = b.withDefaults()
	var err error
	for n := 1; ; n++ {
		if err = fn(ctx); err == nil {
			if n > 1 {
				slog.Debug("recovered after retry", "op", op, "attempt", n)
			}
			return nil
		}
		if n == b.Attempts || (b.Retryable != nil && !b.Retryable(err)) {
			break
		}
		wait := b.Delay(n)
		slog.Warn("attempt failed", "op", op, "attempt", n, "of", b.Attempts, "error", err, "wait", wait)
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: gave up after %d attempts: %w", op, n, ctx.Err())
		}
	}
	if b.Attempts == 1 {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
