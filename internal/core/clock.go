package core

import "time"

// Clock abstracts wall time so policy windows and cleanup decisions are
// testable with a fixed instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

// Now returns the current UTC instant.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant. Test helper.
type FixedClock struct{ T time.Time }

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }
