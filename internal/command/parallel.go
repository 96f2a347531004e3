package command

import "github.com/roach88/docrun/internal/action"

// ParallelCommand starts all of its children at once and resolves when
// every child on its own lane has finished. Children naming another lane
// are handed to the sequencer and not waited for.
type ParallelCommand struct {
	Base
	commands []Description
}

// NewParallelCommand creates a ParallelCommand.
func NewParallelCommand(ctx *Context, props Properties, commands []Description) *ParallelCommand {
	return &ParallelCommand{Base: NewBase(ctx, props), commands: commands}
}

// Execute implements Command.
func (c *ParallelCommand) Execute(fastMode bool) *action.Action {
	ctx := c.ctx
	lane := c.Lane()
	s := &stepper{base: &c.Base, fast: fastMode}

	var gates []*action.Action
	for _, desc := range c.commands {
		child := ctx.Inflater.Inflate(ctx, desc, c.Scope(), c.Component(), lane)
		if child == nil {
			continue
		}
		if s.handsOff(child, lane) {
			ctx.Sequencer.Execute(child, fastMode)
			continue
		}
		gates = append(gates, NewDelayAction(ctx.Timers, child, fastMode))
	}
	if len(gates) == 0 {
		return nil
	}
	return action.MakeAll(ctx.Timers, gates)
}
