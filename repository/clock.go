package repository

import (
	"sync/atomic"
	"time"
)

// monotonicClock hands out strictly increasing timestamps so updatedAt never
// goes backwards within a process, even when the wall clock ticks slower than
// callers mutate.
type monotonicClock struct {
	last int64
	now  func() time.Time
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	if now == nil {
		now = time.Now
	}
	return &monotonicClock{now: now}
}

func (c *monotonicClock) Now() time.Time {
	for {
		candidate := c.now().UTC().UnixNano()
		last := atomic.LoadInt64(&c.last)
		if candidate <= last {
			candidate = last + 1
		}
		if atomic.CompareAndSwapInt64(&c.last, last, candidate) {
			return time.Unix(0, candidate).UTC()
		}
	}
}
