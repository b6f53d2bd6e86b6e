// Package clock abstracts wall-clock reads so services that stamp
// session and invoice times can be tested with a fixed instant.
package clock

import "time"

// Clock yields the current time.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in UTC.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant. Test use only.
type Fixed struct{ T time.Time }

func (f Fixed) Now() time.Time { return f.T }
