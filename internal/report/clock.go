package report

import "time"

// Clock reports the current time to the generator and the scheduler.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
func SystemClock() Clock { return ClockFunc(time.Now) }

// FixedClock always reports t, for reproducible report timestamps and
// schedules.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
