package action

import "github.com/roach88/docrun/internal/timer"

// CallbackFunc observes how a wrapped action finished.
type CallbackFunc func(resolved bool, inner *Action)

// collection is the wait-set shared by MakeAll and MakeAny.
type collection struct {
	members []*Action
}

func newCollection(list []*Action) *collection {
	c := &collection{}
	for _, a := range list {
		if a != nil && !a.IsTerminated() {
			c.members = append(c.members, a)
		}
	}
	return c
}

func (c *collection) remove(a *Action) {
	for i, m := range c.members {
		if m == a {
			c.members = append(c.members[:i], c.members[i+1:]...)
			return
		}
	}
}

// terminateRemaining empties the wait-set before terminating, so member
// terminate callbacks see an empty collection.
func (c *collection) terminateRemaining() {
	rest := c.members
	c.members = nil
	for _, m := range rest {
		m.Terminate()
	}
}

// MakeAll returns an action that resolves once every member has resolved.
//
// Members that are already terminated are ignored, and members terminated
// later by someone else are dropped from the wait-set. When nothing is left
// to wait for the combination resolves, so an empty list resolves at once.
// Terminating the combination terminates every remaining member.
func MakeAll(timers timer.Timers, list []*Action) *Action {
	c := newCollection(list)
	if len(c.members) == 0 {
		return Make(timers, nil)
	}

	all := New(timers)
	all.AddTerminateCallback(c.terminateRemaining)

	drop := func(m *Action) {
		if !all.IsPending() {
			return
		}
		c.remove(m)
		if len(c.members) == 0 {
			all.Resolve()
		}
	}
	for _, m := range c.members {
		m.Then(drop)
		m.AddTerminateCallback(func() { drop(m) })
	}
	return all
}

// MakeAny returns an action that resolves when the first member resolves.
// The other members are terminated in the same step, before the
// combination resolves. An empty list resolves at once, and so does a
// combination whose members have all been terminated independently.
// Terminating the combination terminates every member.
func MakeAny(timers timer.Timers, list []*Action) *Action {
	c := newCollection(list)
	if len(c.members) == 0 {
		return Make(timers, nil)
	}

	anyOf := New(timers)
	anyOf.AddTerminateCallback(c.terminateRemaining)

	for _, m := range c.members {
		m.Then(func(winner *Action) {
			if !anyOf.IsPending() {
				return
			}
			c.remove(winner)
			c.terminateRemaining()
			anyOf.Resolve()
		})
		m.AddTerminateCallback(func() {
			if !anyOf.IsPending() || len(c.members) == 0 {
				return
			}
			c.remove(m)
			if len(c.members) == 0 {
				anyOf.Resolve()
			}
		})
	}
	return anyOf
}

// WrapWithCallback observes inner through callback.
//
// If inner has already finished, callback runs synchronously and inner is
// returned unchanged. Otherwise the returned action resolves after inner
// resolves, calling callback(true, inner) first. Terminating the wrapper
// calls callback(false, inner) and terminates inner; inner being terminated
// by someone else terminates the wrapper the same way.
func WrapWithCallback(timers timer.Timers, inner *Action, callback CallbackFunc) *Action {
	if !inner.IsPending() {
		callback(inner.IsResolved(), inner)
		return inner
	}

	wrapped := New(timers)
	wrapped.AddTerminateCallback(func() {
		callback(false, inner)
		inner.Terminate()
	})
	inner.Then(func(a *Action) {
		if !wrapped.IsPending() {
			return
		}
		callback(true, a)
		wrapped.Resolve()
	})
	inner.AddTerminateCallback(wrapped.Terminate)
	return wrapped
}
