package services

import (
	"sync/atomic"
	"time"
)

// Clock yields capture timestamps in epoch milliseconds.
type Clock interface {
	NowMillis() int64
}

// MonotonicClock never returns a value lower than one it returned before,
// even if the wall clock steps backwards.
type MonotonicClock struct {
	now  func() time.Time
	last atomic.Int64
}

func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

func (c *MonotonicClock) NowMillis() int64 {
	for {
		t := c.now().UnixMilli()
		prev := c.last.Load()
		if t < prev {
			t = prev
		}
		if c.last.CompareAndSwap(prev, t) {
			return t
		}
	}
}
