package monitor

import (
	"sync"
	"time"
)

// Clock is the guarded last-activity cell shared between the room event
// handler and the monitor loop. Timestamps only move forward.
type Clock struct {
	mu   sync.Mutex
	last time.Time
}

func NewClock() *Clock {
	return &Clock{
		last: time.Now(),
	}
}

func (c *Clock) Touch() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.After(c.last) {
		c.last = now
	}
}

func (c *Clock) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}
