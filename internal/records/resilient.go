package records

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/resilience"
)

// ResilientConfig tunes the retry, breaker and per-call timeout applied
// around a Store.
type ResilientConfig struct {
	Backoff resilience.Backoff
	Breaker resilience.BreakerConfig
	Timeout time.Duration
}

// Resilient wraps a Store so transient load failures are retried and a
// failing backend trips a circuit breaker instead of stalling rebuilds.
type Resilient struct {
	next   Store
	policy *resilience.Policy
}

func NewResilient(next Store, cfg ResilientConfig) *Resilient {
	backoff := cfg.Backoff
	if backoff.Retryable == nil {
		backoff.Retryable = retryable
	}
	return &Resilient{
		next: next,
		policy: &resilience.Policy{
			Backoff: backoff,
			Breaker: resilience.NewBreaker("record-store", cfg.Breaker),
			Timeout: cfg.Timeout,
		},
	}
}

// BreakerState reports whether the backing store is currently refused.
func (r *Resilient) BreakerState() resilience.State {
	return r.policy.Breaker.State()
}

// retryable rejects errors a second attempt cannot fix.
func retryable(err error) bool {
	switch {
	case errors.Is(err, apperrors.ErrMalformedRecord),
		errors.Is(err, apperrors.ErrRecordNotFound),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func (r *Resilient) LoadTasks(ctx context.Context) ([]Task, error) {
	return resilience.Do(ctx, r.policy, "load-tasks", r.next.LoadTasks)
}

func (r *Resilient) GetTask(ctx context.Context, key string) (*Task, error) {
	return resilience.Do(ctx, r.policy, "get-task", func(ctx context.Context) (*Task, error) {
		return r.next.GetTask(ctx, key)
	})
}

func (r *Resilient) LoadTeamMembers(ctx context.Context) ([]TeamMember, error) {
	return resilience.Do(ctx, r.policy, "load-team", r.next.LoadTeamMembers)
}

func (r *Resilient) LoadLegislation(ctx context.Context) ([]LegislationReference, error) {
	return resilience.Do(ctx, r.policy, "load-legislation", r.next.LoadLegislation)
}
