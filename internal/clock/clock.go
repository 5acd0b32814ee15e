package clock

import "time"

// Clock supplies the current time. Production code uses System; tests drive a
// manual clock so deadline arithmetic stays deterministic.
type Clock interface {
	Now() time.Time
}

// Func adapts a function into the Clock interface.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}

// System reads the wall clock. time.Now carries a monotonic reading, so
// subtracting two values from it is immune to wall clock jumps.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Or returns c, or System when c is nil.
func Or(c Clock) Clock {
	if c == nil {
		return System{}
	}
	return c
}

// Deadline is an absolute point in time computed once per logical operation.
// Every suspension point asks it for the remaining budget instead of
// subtracting elapsed durations from a running total.
type Deadline struct {
	clock Clock
	at    time.Time
}

// After returns a deadline budget from now.
func After(c Clock, budget time.Duration) Deadline {
	c = Or(c)
	return Deadline{clock: c, at: c.Now().Add(budget)}
}

// At returns the absolute instant of the deadline.
func (d Deadline) At() time.Time {
	return d.at
}

// Remaining reports the time left before the deadline. The value is negative
// once the deadline has passed.
func (d Deadline) Remaining() time.Duration {
	return d.at.Sub(Or(d.clock).Now())
}

// Expired reports whether no budget is left.
func (d Deadline) Expired() bool {
	return d.Remaining() <= 0
}

// Manual is a clock that only moves when told to.
type Manual struct {
	now time.Time
}

// NewManual returns a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}
