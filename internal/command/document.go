package command

import "github.com/roach88/docrun/internal/action"

// DocumentCommand runs a document-level instruction with a guaranteed
// wrap-up: the component commands run to completion together, then the
// wrap-up command runs. If the document action is terminated before the
// wrap-up has started, the wrap-up is re-submitted to the sequencer as
// normal work so it still runs exactly once.
type DocumentCommand struct {
	Base
	components []Command
	wrapUp     Command
}

// NewDocumentCommand creates a DocumentCommand. components may be empty
// and wrapUp may be nil.
func NewDocumentCommand(ctx *Context, props Properties, components []Command, wrapUp Command) *DocumentCommand {
	return &DocumentCommand{
		Base:       NewBase(ctx, props),
		components: components,
		wrapUp:     wrapUp,
	}
}

// Execute implements Command.
func (c *DocumentCommand) Execute(fastMode bool) *action.Action {
	ctx := c.ctx
	doc := action.New(ctx.Timers)

	var (
		current        *action.Action
		finallyReached bool
	)

	doc.AddTerminateCallback(func() {
		if current != nil {
			current.Terminate()
		}
		if !finallyReached && c.wrapUp != nil {
			finallyReached = true
			ctx.logger().Debug("document terminated before wrap-up, resubmitting",
				"command", c.wrapUp.Name(),
			)
			ctx.Sequencer.Execute(c.wrapUp, false)
		}
	})

	startWrapUp := func() {
		if !doc.IsPending() {
			return
		}
		finallyReached = true
		if c.wrapUp == nil {
			doc.Resolve()
			return
		}
		current = NewDelayAction(ctx.Timers, c.wrapUp, fastMode)
		if !current.IsPending() {
			doc.Resolve()
			return
		}
		current.Then(func(*action.Action) { doc.Resolve() })
	}

	gates := make([]*action.Action, 0, len(c.components))
	for _, comp := range c.components {
		gates = append(gates, NewDelayAction(ctx.Timers, comp, fastMode))
	}
	current = action.MakeAll(ctx.Timers, gates)
	if fastMode && !current.IsPending() {
		startWrapUp()
	} else {
		current.Then(func(*action.Action) { startWrapUp() })
	}
	return doc
}
