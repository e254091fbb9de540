// Package clock provides an injectable time source so evaluation and
// enforcement logic can be tested against fixed instants. Each evaluation
// reads the clock once at entry, keeping the whole pass time-consistent.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by the wall clock.
func System() Clock { return systemClock{} }

// Fixed is a Clock pinned to a settable instant. Useful in tests.
type Fixed struct {
	T time.Time
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the pinned instant forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }

// NewFixed creates a Fixed clock pinned to t.
func NewFixed(t time.Time) *Fixed { return &Fixed{T: t} }
