package engine

import "sync/atomic"

// Clock is the monotonic logical clock for run ordering.
//
// Every audit record is stamped with a strictly increasing seq from
// this clock. Logical time keeps ordering deterministic and makes
// replay reproduce the identical order; wall-clock timestamps are
// never used for ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The Runner's single-writer loop means only one goroutine typically
// calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence
// number. Used to resume a run from its last recorded position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
