package command

import (
	"time"

	"github.com/roach88/docrun/internal/action"
)

// RegisterBuiltins registers the control-flow commands and the leaf
// commands a document runtime ships with.
func RegisterBuiltins(r *Registry) {
	r.Register("Sequential", func(ctx *Context, props Properties, desc Description) (Command, error) {
		return NewSequentialCommand(ctx, props,
			desc.List("commands"),
			desc.List("catch"),
			desc.List("finally"),
			desc.Int("repeatCount", 0),
		), nil
	})
	r.Register("Parallel", func(ctx *Context, props Properties, desc Description) (Command, error) {
		return NewParallelCommand(ctx, props, desc.List("commands")), nil
	})
	r.Register("Idle", func(ctx *Context, props Properties, desc Description) (Command, error) {
		return &IdleCommand{Base: NewBase(ctx, props)}, nil
	})
	r.Register("SendEvent", func(ctx *Context, props Properties, desc Description) (Command, error) {
		return &SendEventCommand{Base: NewBase(ctx, props), arguments: desc.Values("arguments")}, nil
	})
	r.Register("SetValue", func(ctx *Context, props Properties, desc Description) (Command, error) {
		property := desc.String("property", "")
		if property == "" {
			return nil, &ErrMissingProperty{Type: props.Type, Property: "property"}
		}
		return &SetValueCommand{Base: NewBase(ctx, props), property: property, value: desc["value"]}, nil
	})
	r.Register("AnimateItem", func(ctx *Context, props Properties, desc Description) (Command, error) {
		property := desc.String("property", "")
		if property == "" {
			return nil, &ErrMissingProperty{Type: props.Type, Property: "property"}
		}
		return &AnimateItemCommand{
			Base:     NewBase(ctx, props),
			property: property,
			from:     desc.Int("from", 0),
			to:       desc.Int("to", 0),
			duration: desc.Millis("duration"),
		}, nil
	})
}

// IdleCommand does nothing; only its delay matters.
type IdleCommand struct {
	Base
}

func (c *IdleCommand) Execute(bool) *action.Action { return nil }

// SendEventCommand emits an event to the host with its arguments
// evaluated in the command scope.
type SendEventCommand struct {
	Base
	arguments []any
}

func (c *SendEventCommand) Execute(bool) *action.Action {
	if c.ctx.Events == nil {
		return nil
	}
	args := make([]any, len(c.arguments))
	for i, arg := range c.arguments {
		args[i] = c.Scope().Evaluate(arg)
	}
	c.ctx.Events.Emit(Event{
		Type:      c.Name(),
		Component: c.Component(),
		Arguments: args,
	})
	return nil
}

// SetValueCommand assigns a value to a scope variable. With a component
// the variable is named component.property.
type SetValueCommand struct {
	Base
	property string
	value    any
}

func (c *SetValueCommand) Execute(bool) *action.Action {
	c.Scope().Set(qualify(c.Component(), c.property), c.Scope().Evaluate(c.value))
	return nil
}

// AnimateItemCommand moves an integer property from one value to another
// over a duration. It holds the animate resource for that property while
// running, so a newer animation of the same property stops it.
type AnimateItemCommand struct {
	Base
	property string
	from     int
	to       int
	duration time.Duration
}

// Resource returns the resource the animation claims.
func (c *AnimateItemCommand) Resource() Resource {
	return Resource{Kind: "animate", Component: c.Component(), Property: c.property}
}

// Execute writes the final value at once in fast mode. Otherwise it
// returns an animation action that has claimed the property.
func (c *AnimateItemCommand) Execute(fastMode bool) *action.Action {
	key := qualify(c.Component(), c.property)
	if fastMode || c.duration <= 0 {
		c.Scope().Set(key, c.to)
		return nil
	}

	a := action.MakeAnimation(c.ctx.Timers, c.duration, func(elapsed time.Duration) {
		span := int64(c.to - c.from)
		v := c.from + int(span*int64(elapsed)/int64(c.duration))
		c.Scope().Set(key, v)
	})
	c.ctx.Sequencer.ClaimResource(c.Resource(), a)
	return a
}

func qualify(component, property string) string {
	if component == "" {
		return property
	}
	return component + "." + property
}
