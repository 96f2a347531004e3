// Package timer provides the scheduling service that drives every action.
//
// The execution core never reads a wall clock. All delays, animations and
// deferred completion callbacks are expressed through the Timers interface,
// which makes the whole runtime deterministic when it is driven by Loop.
package timer

import "time"

// ID identifies a scheduled timeout or animator. Zero is never issued.
type ID uint64

// Animator receives the elapsed time since the animator was registered.
// It is called with increasing values and finally with the full duration.
type Animator func(elapsed time.Duration)

// Timers is the scheduling service consumed by actions and commands.
//
// Implementations are single-threaded: callbacks run on the goroutine that
// advances time and may themselves schedule or clear timers.
type Timers interface {
	// SetTimeout schedules fn to run once after delay. Negative delays are
	// treated as zero. A zero delay still defers fn until time is advanced.
	SetTimeout(fn func(), delay time.Duration) ID

	// SetAnimator registers fn to be called on every time step until
	// duration has elapsed. The final call receives elapsed >= duration.
	SetAnimator(fn Animator, duration time.Duration) ID

	// ClearTimeout cancels a timeout or animator. It reports whether the
	// id was still scheduled.
	ClearTimeout(id ID) bool
}
