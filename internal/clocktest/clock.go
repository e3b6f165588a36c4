// Package clocktest provides a manually-advanced Clock for deterministic
// asyncloop tests, satisfying asyncloop.Clock without sleeping real time.
package clocktest

import (
	"sync"
	"time"
)

// Clock is a fake asyncloop.Clock whose Now() only moves when Advance is
// called, so timer-wheel ordering can be tested without real sleeps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// New returns a Clock starting at t.
func New(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now implements asyncloop.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set pins the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
