// internal/clock/clock.go
//
// Scheduling abstraction used by game sessions.
// A session never calls time.AfterFunc directly; it asks a Scheduler, so the
// server runs on wall-clock timers while tests drive time by hand (see Manual).

package clock

import "time"

// Timer is a handle to a scheduled callback.
// Stop reports whether the call prevented the callback from running.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Real schedules on the runtime's timers. Callbacks run on their own goroutine.
type Real struct{}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
