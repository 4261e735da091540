package application

import "time"

// Clock keeps services testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default, local-time implementation.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T. Useful in tests and dry runs.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
