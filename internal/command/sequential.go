package command

import "github.com/roach88/docrun/internal/action"

// SequentialCommand runs its commands repeatCount+1 times, then its
// finally commands once. Terminating it runs the catch and finally
// commands that have not started yet as a fast-mode group.
type SequentialCommand struct {
	Base
	commands    []Description
	catch       []Description
	finally     []Description
	repeatCount int
}

// NewSequentialCommand creates a SequentialCommand. A negative
// repeatCount is treated as zero.
func NewSequentialCommand(ctx *Context, props Properties, commands, catch, finally []Description, repeatCount int) *SequentialCommand {
	if repeatCount < 0 {
		repeatCount = 0
	}
	return &SequentialCommand{
		Base:        NewBase(ctx, props),
		commands:    commands,
		catch:       catch,
		finally:     finally,
		repeatCount: repeatCount,
	}
}

// Execute implements Command.
func (c *SequentialCommand) Execute(fastMode bool) *action.Action {
	a := &sequentialAction{
		stepper: newStepper(&c.Base, fastMode),
		cmd:     c,
	}
	a.act.AddTerminateCallback(a.onTerminate)
	a.advance()
	return a.act
}

type phase int

const (
	mainPhase phase = iota
	finallyPhase
)

type sequentialAction struct {
	*stepper
	cmd     *SequentialCommand
	phase   phase
	next    int
	repeats int
}

func (a *sequentialAction) advance() {
	for {
		var desc Description
		switch a.phase {
		case mainPhase:
			if a.next >= len(a.cmd.commands) {
				if a.repeats < a.cmd.repeatCount {
					a.repeats++
					a.next = 0
					continue
				}
				a.phase = finallyPhase
				a.next = 0
				continue
			}
			desc = a.cmd.commands[a.next]
		case finallyPhase:
			if a.next >= len(a.cmd.finally) {
				a.act.Resolve()
				return
			}
			desc = a.cmd.finally[a.next]
		}
		a.next++

		if a.step(desc, a.advance) || !a.act.IsPending() {
			return
		}
	}
}

func (a *sequentialAction) onTerminate() {
	a.stopCurrent()

	var group []Description
	switch a.phase {
	case mainPhase:
		group = append(group, a.cmd.catch...)
		group = append(group, a.cmd.finally...)
	case finallyPhase:
		if a.next < len(a.cmd.finally) {
			group = append(group, a.cmd.finally[a.next:]...)
		}
	}
	a.phase = finallyPhase
	a.next = len(a.cmd.finally)
	a.finishGroup(group)
}
