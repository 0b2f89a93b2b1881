package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(limit, window)
	l.now = clock.now
	return l, clock
}

func TestTakeExhaustsAndRefills(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)
	assert.Equal(t, Decision{Allowed: true, Remaining: 2}, l.Take("a"))
	assert.Equal(t, Decision{Allowed: true, Remaining: 1}, l.Take("a"))
	assert.Equal(t, Decision{Allowed: true, Remaining: 0}, l.Take("a"))
	assert.Equal(t, Decision{RetryAfter: 20 * time.Second}, l.Take("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	clock.advance(15 * time.Second)
	assert.Equal(t, 5*time.Second, l.Take("a").RetryAfter)

	clock.advance(5 * time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestRefillIsCappedAtLimit(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)
	l.Take("a")
	clock.advance(time.Hour)
	assert.Equal(t, 1, l.Take("a").Remaining)
}

func TestResetAndSweep(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	l.Reset("a")
	assert.True(t, l.Allow("a"))

	l.Allow("b")
	clock.advance(3 * time.Minute)
	l.Allow("c")
	l.sweep(clock.now().Add(-2 * time.Minute))
	assert.Equal(t, 1, l.Len())
}

func TestZeroLimitDenies(t *testing.T) {
	l, _ := newTestLimiter(0, time.Minute)
	assert.Equal(t, Decision{RetryAfter: time.Minute}, l.Take("a"))
	assert.False(t, l.Allow("a"))
}
