// Package action implements the cancellable, single-resolution future that
// every piece of in-flight document work is expressed as.
//
// An Action starts Pending and moves exactly once to either Resolved or
// Terminated. The two transitions have deliberately different ordering:
//
//   - Completion (Then) callbacks are always dispatched through the timer
//     service with zero delay, never synchronously inside Resolve. A
//     callback may therefore freely resolve or terminate other actions.
//   - Termination callbacks run synchronously inside Terminate, in
//     registration order, so that cancellation unwinds immediately.
//
// Invalid transitions (resolving a terminated action, terminating a resolved
// one) are silently ignored. Composite actions race termination against
// resolution all the time and neither side is an error.
//
// Actions are plain pointers shared between lanes, combinators and callers.
// Owners terminate an action before discarding it; dropping the last pointer
// does not cancel anything.
package action

import (
	"fmt"
	"time"

	"github.com/roach88/docrun/internal/timer"
)

// State is the lifecycle state of an Action.
type State int

const (
	// Pending actions have neither resolved nor terminated.
	Pending State = iota
	// Resolved actions completed normally.
	Resolved
	// Terminated actions were cancelled before resolving.
	Terminated
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StartFunc begins the work of a new action. It receives a Ref through
// which it must eventually resolve or terminate the action.
type StartFunc func(ref Ref)

// ThenFunc is the single completion callback of an action.
type ThenFunc func(a *Action)

// TerminateFunc runs when an action is terminated.
type TerminateFunc func()

// Action is a cancellable, single-resolution future.
//
// Thread-safety: Action is NOT safe for concurrent use. It belongs to the
// goroutine driving its Timers.
type Action struct {
	timers    timer.Timers
	state     State
	then      ThenFunc
	terminate []TerminateFunc
	timeoutID timer.ID
	payload   Payload
	userData  any
}

// New returns a bare pending action. Composite actions embed their own
// logic around one of these; most callers want Make instead.
func New(timers timer.Timers) *Action {
	return &Action{timers: timers}
}

// Make creates an action and runs start immediately with a Ref to it.
// A nil start resolves the action before it is returned.
func Make(timers timer.Timers, start StartFunc) *Action {
	a := New(timers)
	if start != nil {
		start(Ref{a: a})
	} else {
		a.Resolve()
	}
	return a
}

// MakeDelayed creates an action whose start function runs after delay.
// A nil start resolves the action after the delay. A zero delay is
// equivalent to Make. Terminating the action before the delay elapses
// cancels the deferred start.
func MakeDelayed(timers timer.Timers, delay time.Duration, start StartFunc) *Action {
	if delay <= 0 {
		return Make(timers, start)
	}

	a := New(timers)
	a.timeoutID = timers.SetTimeout(func() {
		a.timeoutID = 0
		if !a.IsPending() {
			return
		}
		if start != nil {
			start(Ref{a: a})
		} else {
			a.Resolve()
		}
	}, delay)
	return a
}

// MakeAnimation creates an action that calls animator with increasing
// elapsed times until duration, then resolves. The final call always
// receives exactly duration. A non-positive duration calls animator(0) once
// and returns an already resolved action. Termination stops further calls.
func MakeAnimation(timers timer.Timers, duration time.Duration, animator timer.Animator) *Action {
	if duration <= 0 {
		animator(0)
		return Make(timers, nil)
	}

	a := New(timers)
	a.timeoutID = timers.SetAnimator(func(elapsed time.Duration) {
		if a.IsTerminated() {
			return
		}
		if elapsed < duration {
			animator(elapsed)
			return
		}
		animator(duration)
		a.timeoutID = 0
		a.Resolve()
	}, duration)
	return a
}

// Then registers the completion callback, replacing any earlier one. If the
// action is already resolved, fn is scheduled on the timer with zero delay.
// fn is never called for a terminated action.
func (a *Action) Then(fn ThenFunc) {
	a.then = fn
	a.dispatch()
}

// Terminate cancels a pending action: it cancels any outstanding timer and
// runs the terminate callbacks synchronously in registration order.
// Calling Terminate on a resolved or terminated action does nothing.
func (a *Action) Terminate() {
	if a.state != Pending {
		return
	}
	a.state = Terminated
	a.clearTimeout()

	// Callbacks may append more callbacks; index so those run too.
	for i := 0; i < len(a.terminate); i++ {
		a.terminate[i]()
	}
}

// Resolve resolves a pending action without a payload.
func (a *Action) Resolve() {
	a.ResolveWith(Payload{})
}

// ResolveInt resolves a pending action with an integer payload.
func (a *Action) ResolveInt(v int) {
	a.ResolveWith(IntPayload(v))
}

// ResolveRect resolves a pending action with a rectangle payload.
func (a *Action) ResolveRect(r Rect) {
	a.ResolveWith(RectPayload(r))
}

// ResolveWith resolves a pending action with p and schedules the
// completion callback.
func (a *Action) ResolveWith(p Payload) {
	if a.state != Pending {
		return
	}
	a.payload = p
	a.state = Resolved
	a.dispatch()
}

// AddTerminateCallback appends fn to the termination callbacks. It is
// never invoked if the action has already terminated.
func (a *Action) AddTerminateCallback(fn TerminateFunc) {
	if a.state == Terminated {
		return
	}
	a.terminate = append(a.terminate, fn)
}

// State returns the current lifecycle state.
func (a *Action) State() State { return a.state }

// IsPending reports whether the action has neither resolved nor terminated.
func (a *Action) IsPending() bool { return a.state == Pending }

// IsResolved reports whether the action resolved.
func (a *Action) IsResolved() bool { return a.state == Resolved }

// IsTerminated reports whether the action was terminated.
func (a *Action) IsTerminated() bool { return a.state == Terminated }

// Timers returns the timer service the action schedules on.
func (a *Action) Timers() timer.Timers { return a.timers }

// Payload returns the resolution payload.
func (a *Action) Payload() Payload { return a.payload }

// IntArgument returns the integer payload, or 0.
func (a *Action) IntArgument() int { return a.payload.Int() }

// RectArgument returns the rectangle payload, or the empty Rect.
func (a *Action) RectArgument() Rect { return a.payload.Rect() }

// SetUserData attaches an opaque value to the action.
func (a *Action) SetUserData(v any) { a.userData = v }

// UserData returns the value set by SetUserData.
func (a *Action) UserData() any { return a.userData }

// String identifies the action in log output.
func (a *Action) String() string {
	return fmt.Sprintf("Action<%p %s>", a, a.state)
}

func (a *Action) dispatch() {
	if a.state != Resolved || a.then == nil {
		return
	}
	a.clearTimeout()
	a.timeoutID = a.timers.SetTimeout(func() {
		a.timeoutID = 0
		if a.state == Resolved && a.then != nil {
			a.then(a)
		}
	}, 0)
}

func (a *Action) clearTimeout() {
	if a.timeoutID != 0 {
		a.timers.ClearTimeout(a.timeoutID)
		a.timeoutID = 0
	}
}
