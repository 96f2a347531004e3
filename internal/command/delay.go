package command

import (
	"github.com/roach88/docrun/internal/action"
	"github.com/roach88/docrun/internal/timer"
)

// NewDelayAction gates cmd behind its declared delay.
//
// Prepare runs immediately. Unless fastMode is set or the delay is zero,
// the gate then waits out the delay before calling Execute. The gate
// resolves when the executed work resolves or is terminated; terminating
// the gate terminates whatever it is waiting on. Complete runs exactly
// once on every path.
func NewDelayAction(timers timer.Timers, cmd Command, fastMode bool) *action.Action {
	gate := action.New(timers)

	var (
		inner     *action.Action
		completed bool
	)
	complete := func() {
		if !completed {
			completed = true
			cmd.Complete()
		}
	}
	finish := func() {
		complete()
		gate.Resolve()
	}

	gate.AddTerminateCallback(func() {
		if inner != nil {
			inner.Terminate()
		}
		complete()
	})

	run := func() {
		work := cmd.Execute(fastMode)
		if !gate.IsPending() {
			// Execute tore the gate down (for example by resetting the lane).
			if work != nil {
				work.Terminate()
			}
			complete()
			return
		}
		if work == nil || !work.IsPending() {
			finish()
			return
		}
		inner = work
		work.Then(func(*action.Action) { finish() })
		work.AddTerminateCallback(finish)
	}

	cmd.Prepare()

	if fastMode || cmd.Delay() <= 0 {
		run()
		return gate
	}

	inner = action.MakeDelayed(timers, cmd.Delay(), func(ref action.Ref) {
		ref.Resolve()
		inner = nil
		run()
	})
	return gate
}
