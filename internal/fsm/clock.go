package fsm

import "sync/atomic"

// Clock is a monotonic logical clock stamping transitions with a sequence
// number. Observers use it to order transitions without wall-clock time.
//
// Clock is safe for concurrent use, so several engines (and a recorder
// interleaving frames with transitions) may share one.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first Next returns start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
