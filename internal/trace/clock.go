package trace

import "sync/atomic"

// Clock is the monotonic logical clock that orders trace events.
//
// Every recorded event is stamped with a strictly increasing sequence
// number. Virtual loop time is not unique (many events share an instant),
// so seq is what golden traces and stored rows are ordered by.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start, so the next event gets
// start+1. Used when appending to a run that already has events.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
