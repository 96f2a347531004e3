package action

import "github.com/roach88/docrun/internal/timer"

// Ref is the handle a StartFunc receives. It can resolve, terminate and
// query its action and attach user data, but does not expose Then.
//
// The zero Ref refers to no action; every method on it is a no-op.
type Ref struct {
	a *Action
}

// IsEmpty reports whether the Ref refers to no action.
func (r Ref) IsEmpty() bool { return r.a == nil }

// Action returns the referenced action.
func (r Ref) Action() *Action { return r.a }

// Resolve resolves the referenced action.
func (r Ref) Resolve() {
	if r.a != nil {
		r.a.Resolve()
	}
}

// ResolveInt resolves the referenced action with an integer payload.
func (r Ref) ResolveInt(v int) {
	if r.a != nil {
		r.a.ResolveInt(v)
	}
}

// ResolveRect resolves the referenced action with a rectangle payload.
func (r Ref) ResolveRect(rect Rect) {
	if r.a != nil {
		r.a.ResolveRect(rect)
	}
}

// Terminate terminates the referenced action.
func (r Ref) Terminate() {
	if r.a != nil {
		r.a.Terminate()
	}
}

// AddTerminateCallback registers fn on the referenced action.
func (r Ref) AddTerminateCallback(fn TerminateFunc) {
	if r.a != nil {
		r.a.AddTerminateCallback(fn)
	}
}

func (r Ref) IsPending() bool    { return r.a != nil && r.a.IsPending() }
func (r Ref) IsResolved() bool   { return r.a != nil && r.a.IsResolved() }
func (r Ref) IsTerminated() bool { return r.a != nil && r.a.IsTerminated() }

// Timers returns the timer service of the referenced action.
func (r Ref) Timers() timer.Timers {
	if r.a == nil {
		return nil
	}
	return r.a.Timers()
}

// SetUserData attaches an opaque value to the referenced action.
func (r Ref) SetUserData(v any) {
	if r.a != nil {
		r.a.SetUserData(v)
	}
}

// UserData returns the value attached to the referenced action.
func (r Ref) UserData() any {
	if r.a == nil {
		return nil
	}
	return r.a.UserData()
}
