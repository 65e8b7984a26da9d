// Package clock abstracts time so the simulator runs identically against
// wall time and against replayed history.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// WallClock reads the system clock.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now().UTC() }

// TestClock returns a settable, manually advanced time. The zero position
// is the Unix epoch so seeded runs start from a fixed instant.
type TestClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewTestClock() *TestClock {
	return &TestClock{now: time.Unix(0, 0).UTC()}
}

func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *TestClock) SetTime(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *TestClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
