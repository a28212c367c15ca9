// Package clock provides research.Clock implementations.
package clock

import "time"

// System reads the wall clock in UTC.
type System struct{}

// NewSystem creates a System clock.
func NewSystem() System {
	return System{}
}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. It keeps TTL checks reproducible.
type Fixed struct {
	at time.Time
}

// NewFixed pins a clock to at, converted to UTC.
func NewFixed(at time.Time) *Fixed {
	return &Fixed{at: at.UTC()}
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	return f.at
}

// Advance moves the pinned instant forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.at = f.at.Add(d)
}
