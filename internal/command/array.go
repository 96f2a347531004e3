package command

import "github.com/roach88/docrun/internal/action"

// ArrayCommand runs a list of child descriptions in order, inflating each
// one only when the cursor reaches it.
type ArrayCommand struct {
	Base
	commands             []Description
	finishAllOnTerminate bool
}

// NewArrayCommand creates an ArrayCommand. When finishAllOnTerminate is
// set, terminating the running array hands every child that has not
// started yet to the sequencer as one fast-mode group.
func NewArrayCommand(ctx *Context, props Properties, commands []Description, finishAllOnTerminate bool) *ArrayCommand {
	return &ArrayCommand{
		Base:                 NewBase(ctx, props),
		commands:             commands,
		finishAllOnTerminate: finishAllOnTerminate,
	}
}

// Commands returns the child descriptions.
func (c *ArrayCommand) Commands() []Description { return c.commands }

// Execute implements Command. An empty array has nothing to wait for.
func (c *ArrayCommand) Execute(fastMode bool) *action.Action {
	if len(c.commands) == 0 {
		return nil
	}

	a := &arrayAction{
		stepper: newStepper(&c.Base, fastMode),
		cmd:     c,
	}
	a.act.AddTerminateCallback(a.onTerminate)
	a.advance()
	return a.act
}

type arrayAction struct {
	*stepper
	cmd  *ArrayCommand
	next int
}

func (a *arrayAction) advance() {
	for a.next < len(a.cmd.commands) {
		desc := a.cmd.commands[a.next]
		a.next++
		if a.step(desc, a.advance) {
			return
		}
		if !a.act.IsPending() {
			return
		}
	}
	a.act.Resolve()
}

func (a *arrayAction) onTerminate() {
	a.stopCurrent()
	if !a.cmd.finishAllOnTerminate || a.next >= len(a.cmd.commands) {
		return
	}
	rest := a.cmd.commands[a.next:]
	a.next = len(a.cmd.commands)
	a.finishGroup(rest)
}

// stepper holds what ArrayAction and SequentialAction share: inflating a
// child, handing it to another lane or gating it, and suspending until the
// gate completes.
type stepper struct {
	base    *Base
	fast    bool
	act     *action.Action
	current *action.Action
}

func newStepper(base *Base, fast bool) *stepper {
	return &stepper{
		base: base,
		fast: fast,
		act:  action.New(base.ctx.Timers),
	}
}

// step runs one child description. It reports true when the stepper
// suspended waiting on the child; resume is called once the child's gate
// completes.
func (s *stepper) step(desc Description, resume func()) bool {
	ctx := s.base.ctx
	lane := s.base.Lane()

	child := ctx.Inflater.Inflate(ctx, desc, s.base.Scope(), s.base.Component(), lane)
	if child == nil {
		return false
	}

	if s.handsOff(child, lane) {
		ctx.Sequencer.Execute(child, s.fast)
		return false
	}

	gate := NewDelayAction(ctx.Timers, child, s.fast)
	if !s.act.IsPending() {
		gate.Terminate()
		return true
	}
	if !gate.IsPending() && (s.fast || gate.IsTerminated()) {
		// Fast mode runs logically instantaneously: keep going in this call.
		return false
	}

	s.current = gate
	gate.Then(func(*action.Action) {
		if s.current == gate {
			s.current = nil
		}
		if s.act.IsPending() {
			resume()
		}
	})
	return true
}

// handsOff reports whether child belongs on a different lane than the
// composite running it.
func (s *stepper) handsOff(child Command, lane string) bool {
	childLane := child.Sequencer()
	if childLane == "" || childLane == lane {
		return false
	}
	return s.base.ctx.Sequencer.MultiLane()
}

func (s *stepper) stopCurrent() {
	if cur := s.current; cur != nil {
		s.current = nil
		cur.Terminate()
	}
}

// finishGroup runs descriptions through the sequencer as one fast-mode
// group on the inherited lane.
func (s *stepper) finishGroup(descs []Description) {
	if len(descs) == 0 {
		return
	}
	props := s.base.props
	props.Type = "finish"
	props.Delay = 0
	props.Sequencer = ""
	props.Inherited = s.base.Lane()
	group := NewArrayCommand(s.base.ctx, props, descs, false)
	s.base.ctx.Sequencer.Execute(group, true)
}
