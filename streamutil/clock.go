package streamutil

import (
	"sync"
	"time"
)

// MonotonicClock hands out millisecond timestamps that strictly increase
// within one process even under clock regression (spec I3, P2). A single
// NextMillis call stamps one record; a batch (collection.Batch) shares one
// call's result across every record in the batch.
type MonotonicClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewMonotonicClock returns a clock backed by time.Now. Tests inject now to
// simulate regression.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) NextMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.now().UnixMilli()
	if current <= c.last {
		current = c.last + 1
	}
	c.last = current
	return current
}
