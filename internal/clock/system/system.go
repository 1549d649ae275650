// Package system provides the wall clock used for batch timing.
package system

import "time"

// Clock reads the system time in UTC, so elapsed and fetched-at values agree
// across ledger rows and logs regardless of host timezone.
type Clock struct{}

// New returns the system clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
