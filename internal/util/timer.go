package util

import "time"

// Clock supplies the current instant. Tests substitute a fixed clock so
// elapsed-time figures are reproducible.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// FixedClock always reports the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Timer is a lightweight helper to measure elapsed durations.
type Timer struct {
	clock Clock
	start time.Time
}

// StartTimer creates a new timer starting at the clock's current time.
// A nil clock falls back to the wall clock.
func StartTimer(clock Clock) Timer {
	if clock == nil {
		clock = SystemClock()
	}
	return Timer{clock: clock, start: clock.Now()}
}

// ElapsedMs returns the elapsed milliseconds since start.
func (t Timer) ElapsedMs() int64 {
	if t.start.IsZero() || t.clock == nil {
		return 0
	}
	return t.clock.Now().Sub(t.start).Milliseconds()
}
