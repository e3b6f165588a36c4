package asyncloop

import "time"

// Clock is the monotonic time source used by the timer wheel (spec §4.1).
// Injecting a Clock lets tests advance time deterministically instead of
// sleeping real wall-clock seconds, grounded on the teacher's WithClock-style
// injection points for the loop's tick anchor.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
