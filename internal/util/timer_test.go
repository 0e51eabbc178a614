package util

import (
	"testing"
	"time"
)

type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	current := c.now
	c.now = c.now.Add(c.step)
	return current
}

func TestTimerElapsed(t *testing.T) {
	clock := &steppingClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), step: 250 * time.Millisecond}
	timer := StartTimer(clock)
	if got := timer.ElapsedMs(); got != 250 {
		t.Fatalf("expected 250ms got %d", got)
	}
}

func TestZeroTimer(t *testing.T) {
	var timer Timer
	if got := timer.ElapsedMs(); got != 0 {
		t.Fatalf("expected 0 got %d", got)
	}
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
	clock := FixedClock(at)
	if !clock.Now().Equal(at) {
		t.Fatalf("expected %s got %s", at, clock.Now())
	}
}
