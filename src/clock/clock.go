// Package clock abstracts wall-clock reads and one-shot timers so that
// time-driven components (elapsed clocks, auto-dismiss) can be driven
// deterministically in tests.
package clock

import "time"

// Clock reads the current time and schedules cancellable callbacks.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f on its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback started by AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the timer
	// was still pending.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
