package web

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*loginRateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	rl := newLoginRateLimiter()
	rl.now = clock.now
	return rl, clock
}

func TestLoginRateLimiter_LocksAtThreshold(t *testing.T) {
	rl, _ := newTestLimiter()

	for i := 0; i < maxFailures-1; i++ {
		rl.recordFailure("founder@example.com")
		blocked, _ := rl.check("founder@example.com")
		assert.False(t, blocked, "failure %d", i+1)
	}

	rl.recordFailure("founder@example.com")
	blocked, retryAfter := rl.check("founder@example.com")
	require.True(t, blocked)
	assert.Equal(t, baseLockout, retryAfter)

	other, _ := rl.check("other@example.com")
	assert.False(t, other)
}

func TestLoginRateLimiter_BackoffIsCapped(t *testing.T) {
	rl, _ := newTestLimiter()

	for i := 0; i < maxFailures+1; i++ {
		rl.recordFailure("k")
	}
	_, retryAfter := rl.check("k")
	assert.Equal(t, 2*baseLockout, retryAfter)

	for i := 0; i < 10; i++ {
		rl.recordFailure("k")
	}
	_, retryAfter = rl.check("k")
	assert.Equal(t, maxLockout, retryAfter)
}

func TestLoginRateLimiter_LockoutElapses(t *testing.T) {
	rl, clock := newTestLimiter()
	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("k")
	}

	clock.advance(baseLockout + time.Second)
	blocked, _ := rl.check("k")
	assert.False(t, blocked)

	// The failure count survives until the record expires, so one more
	// failure locks again.
	rl.recordFailure("k")
	blocked, _ = rl.check("k")
	assert.True(t, blocked)

	clock.advance(attemptExpiry + time.Minute)
	blocked, _ = rl.check("k")
	assert.False(t, blocked)
	assert.Empty(t, rl.attempts)
}

func TestLoginRateLimiter_SuccessResets(t *testing.T) {
	rl, _ := newTestLimiter()
	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("k")
	}
	rl.recordSuccess("k")

	blocked, _ := rl.check("k")
	assert.False(t, blocked)
}

func TestSetRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	setRetryAfter(w, 90*time.Second)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))

	w = httptest.NewRecorder()
	setRetryAfter(w, 200*time.Millisecond)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
