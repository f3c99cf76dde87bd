package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a controllable time source for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(rate int, window time.Duration, clock *fakeClock) *Limiter {
	l := New(rate, window)
	l.now = clock.Now
	return l
}

func TestAllowBasic(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		if !l.Allow("ana@example.com") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	if l.Allow("ana@example.com") {
		t.Fatal("4th attempt should be denied")
	}
}

func TestAllowDifferentKeys(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(1, time.Minute, clock)

	if !l.Allow("a@example.com") {
		t.Fatal("first attempt for key a should be allowed")
	}
	if l.Allow("a@example.com") {
		t.Fatal("second attempt for key a should be denied")
	}
	if !l.Allow("b@example.com") {
		t.Fatal("first attempt for key b should be allowed")
	}
}

func TestRefillOverTime(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(2, time.Minute, clock)

	l.Allow("k")
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("bucket should be empty")
	}

	// Half the window refills one token.
	clock.Advance(30 * time.Second)
	if !l.Allow("k") {
		t.Fatal("one token should have refilled")
	}
	if l.Allow("k") {
		t.Fatal("only one token should have refilled")
	}
}

func TestRefillCapsAtRate(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(2, time.Minute, clock)

	clock.Advance(time.Hour)
	l.Allow("k")
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("tokens should cap at the configured rate")
	}
}
