// Package command defines executable units of document instruction logic
// and the composite commands that drive sequencing.
//
// A Command never applies its own delay. Callers wrap it in a delay gate
// (NewDelayAction) which calls Prepare, waits out Delay unless running in
// fast mode, calls Execute and finally Complete exactly once.
//
// Composite commands (Array, Sequential, Parallel, Document) hold raw
// Descriptions and inflate each child through the Inflater only when
// control flow reaches it. Children that name a lane other than their
// parent's are handed to the Sequencer instead of being waited for.
package command

import (
	"log/slog"
	"time"

	"github.com/roach88/docrun/internal/action"
	"github.com/roach88/docrun/internal/timer"
)

// Command is the contract every executable instruction satisfies.
type Command interface {
	// Delay is the declared pre-execution delay.
	Delay() time.Duration
	// Name is a human-readable name, usually the instruction type.
	Name() string
	// Sequencer is the explicit lane the command asked for. Empty means
	// the command has no lane affinity of its own.
	Sequencer() string
	// Prepare is called once, before any delay.
	Prepare()
	// Complete is called once, after execution finishes or is abandoned.
	Complete()
	// Execute starts the work. A nil result means there is nothing to wait
	// for. Execute must not apply Delay.
	Execute(fastMode bool) *action.Action
}

// Resource identifies an external capability that only one holder may use
// at a time, such as animating one property of one component.
type Resource struct {
	Kind      string
	Component string
	Property  string
}

// String renders the resource as kind/component/property.
func (r Resource) String() string {
	return r.Kind + "/" + r.Component + "/" + r.Property
}

// Sequencer is the subset of the sequencer that commands call back into.
type Sequencer interface {
	Execute(cmd Command, fastMode bool) *action.Action
	ExecuteOnSequencer(cmd Command, lane string) *action.Action
	ClaimResource(res Resource, a *action.Action)
	ReleaseResource(res Resource)
	ReleaseRelatedResources(a *action.Action)
	// MultiLane reports whether explicit lanes are honored. When false all
	// work collapses onto the main lane and composites run lane-tagged
	// children inline.
	MultiLane() bool
}

// Inflater turns a raw description into a Command. It returns nil when
// the description yields nothing to run.
type Inflater interface {
	Inflate(ctx *Context, desc Description, scope *Scope, component, lane string) Command
}

// Event is something a document command wants the host to observe.
type Event struct {
	Type      string
	Component string
	Arguments []any
}

// EventSink receives events emitted by commands.
type EventSink interface {
	Emit(ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event)

// Emit calls f(ev).
func (f EventSinkFunc) Emit(ev Event) { f(ev) }

// Context carries the collaborators every command of one document shares.
type Context struct {
	Timers    timer.Timers
	Sequencer Sequencer
	Inflater  Inflater
	Events    EventSink
	Logger    *slog.Logger
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Properties are the values every command is constructed with.
type Properties struct {
	// Type is the instruction type the command was inflated from.
	Type string
	// Delay is the declared pre-execution delay.
	Delay time.Duration
	// Sequencer is the explicit lane requested by the description.
	Sequencer string
	// Inherited is the lane of the composite that inflated this command.
	Inherited string
	// Scope is the data-binding scope the command evaluates in.
	Scope *Scope
	// Component is the id of the originating component.
	Component string
}

// Base implements the parts of Command that come straight from Properties.
// Concrete commands embed it and supply Execute.
type Base struct {
	ctx   *Context
	props Properties
}

// NewBase creates a Base. A nil scope is replaced by an empty one.
func NewBase(ctx *Context, props Properties) Base {
	if props.Scope == nil {
		props.Scope = NewScope(nil)
	}
	return Base{ctx: ctx, props: props}
}

func (b *Base) Delay() time.Duration { return b.props.Delay }
func (b *Base) Name() string         { return b.props.Type }
func (b *Base) Sequencer() string    { return b.props.Sequencer }
func (b *Base) Prepare()             {}
func (b *Base) Complete()            {}

// Lane is the lane the command effectively runs on: its explicit lane, or
// the lane inherited from its parent composite.
func (b *Base) Lane() string {
	if b.props.Sequencer != "" {
		return b.props.Sequencer
	}
	return b.props.Inherited
}

// Context returns the shared command context.
func (b *Base) Context() *Context { return b.ctx }

// Properties returns the construction properties.
func (b *Base) Properties() Properties { return b.props }

// Scope returns the data-binding scope.
func (b *Base) Scope() *Scope { return b.props.Scope }

// Component returns the originating component id.
func (b *Base) Component() string { return b.props.Component }
