// Package resilience guards calls to flaky backends. A Policy combines a
// per-attempt deadline, a circuit breaker and jittered exponential backoff.
package resilience

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
)

// ErrCircuitOpen is returned without calling the backend while a breaker
// refuses traffic. It matches apperrors.ErrUnavailable.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", apperrors.ErrUnavailable)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// BreakerConfig sets when a breaker trips and how it recovers. Zero
// fields take the defaults: 5 failures, 30s cooldown, 1 probe.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the
	// breaker.
	Threshold int
	// Cooldown is how long an open breaker rejects calls before letting
	// probes through.
	Cooldown time.Duration
	// Probes caps concurrent calls while half-open.
	Probes int
	// OnStateChange, if set, runs after every transition with the lock
	// released.
	OnStateChange func(name string, from, to State)
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 1
	}
	return c
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inFlight int
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	return &Breaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: slog.Default().With("component", "breaker", "backend", name),
		now:    time.Now,
	}
}

// State reports the breaker's state, promoting an expired open breaker to
// half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Allow reserves a slot for one call. Every successful Allow must be
// followed by exactly one Done.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case StateOpen:
		wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
		if wait > 0 {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s, retry in %v", ErrCircuitOpen, b.name, wait.Round(time.Millisecond))
		}
		b.state = StateHalfOpen
		b.inFlight = 0
		fallthrough
	case StateHalfOpen:
		if b.inFlight >= b.cfg.Probes {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s, probe in flight", ErrCircuitOpen, b.name)
		}
		b.inFlight++
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return nil
}

// Done records the outcome of a call admitted by Allow.
func (b *Breaker) Done(err error) {
	b.mu.Lock()
	from := b.state
	if b.state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}
	switch {
	case err == nil:
		b.failures = 0
		b.state = StateClosed
	case b.state == StateHalfOpen:
		b.trip()
	default:
		b.failures++
		if b.state == StateClosed && b.failures >= b.cfg.Threshold {
			b.trip()
		}
	}
	to, failures := b.state, b.failures
	b.mu.Unlock()
	if from != to && to == StateOpen {
		b.logger.Warn("breaker opened", "failures", failures, "cooldown", b.cfg.Cooldown)
	}
	b.notify(from, to)
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.inFlight = 0
}

// Reset closes the breaker and clears its failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state, b.failures, b.inFlight = StateClosed, 0, 0
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) notify(from, to State) {
	if from == to {
		return
	}
	if to != StateOpen {
		b.logger.Info("breaker state changed", "from", from, "to", to)
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
