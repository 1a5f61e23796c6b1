// Package clock lets time dependent code, such as the SMS window and the
// batch window, run against a fixed time in tests.
package clock

import "time"

type Clocker interface {
	Now() time.Time
}

// TimeClocker reads the wall clock, in UTC so persisted timestamps compare
// without zone surprises.
type TimeClocker struct{}

func New() *TimeClocker {
	return &TimeClocker{}
}

func (*TimeClocker) Now() time.Time {
	return time.Now().UTC()
}
