package engine

import "sync/atomic"

// Clock is the monotonic tick counter a Driver feeds to its conductors.
//
// Ticks are logical, not wall-clock: sleep durations are measured in ticks,
// so a run driven from a Clock is fully reproducible.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Only the Driver calls Next; other goroutines may read Current.
type Clock struct {
	tick atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific tick.
// Used when resuming from a save slot that recorded the tick it was taken at.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.tick.Store(start)
	return c
}

// Next advances the clock and returns the new tick.
func (c *Clock) Next() int64 {
	return c.tick.Add(1)
}

// Current returns the current tick without advancing.
func (c *Clock) Current() int64 {
	return c.tick.Load()
}
