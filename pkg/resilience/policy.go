package resilience

import (
	"context"
	"time"
)

// Policy bundles the protections applied to every call against one
// backend. Retries wrap the breaker, so a tripped breaker ends the retry
// loop unless Retryable allows ErrCircuitOpen.
type Policy struct {
	Backoff Backoff
	Breaker *Breaker
	// Timeout bounds each attempt; zero leaves the caller's deadline.
	Timeout time.Duration
}

// Do runs fn under p and returns its value from the first successful
// attempt.
func Do[T any](ctx context.Context, p *Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Retry(ctx, op, p.Backoff, func(ctx context.Context) error {
		if p.Breaker != nil {
			if err := p.Breaker.Allow(); err != nil {
				return err
			}
		}
		v, err := attempt(ctx, p.Timeout, fn)
		if p.Breaker != nil {
			p.Breaker.Done(err)
		}
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

func attempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
