package command

import (
	"fmt"
	"log/slog"
	"sort"
)

// Factory constructs a command of one instruction type.
type Factory func(ctx *Context, props Properties, desc Description) (Command, error)

// Parameter is a named macro parameter with an optional default.
type Parameter struct {
	Name    string
	Default any
}

// Macro is a named, parameterized list of commands. Invoking a macro runs
// its commands in order in a scope where the parameters are bound.
type Macro struct {
	Parameters []Parameter
	Commands   []Description
}

// Registry maps instruction types to factories and macros. It is the
// inflation service of one document runtime.
//
// Thread-safety: register everything before the first Inflate; lookups
// do not lock.
type Registry struct {
	factories map[string]Factory
	macros    map[string]Macro
	logger    *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		macros:    make(map[string]Macro),
		logger:    logger,
	}
}

// Register binds an instruction type to a factory, replacing any earlier
// binding.
func (r *Registry) Register(typ string, f Factory) {
	r.factories[typ] = f
}

// DefineMacro binds a macro name. A macro shadows a factory of the same
// name.
func (r *Registry) DefineMacro(name string, m Macro) {
	r.macros[name] = m
}

// Types returns every registered factory and macro name, sorted.
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.factories)+len(r.macros))
	for n := range r.factories {
		names = append(names, n)
	}
	for n := range r.macros {
		if _, dup := r.factories[n]; !dup {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Inflate implements Inflater.
//
// It returns nil, logging a warning, when the description has no type, an
// unknown type, or the factory fails. It returns nil silently when the
// description's "when" guard is false. A nil result means "skip this step"
// to every caller.
func (r *Registry) Inflate(ctx *Context, desc Description, scope *Scope, component, lane string) Command {
	if scope == nil {
		scope = NewScope(nil)
	}

	typ := desc.Type()
	if typ == "" {
		r.logger.Warn("command has no type, skipping", "component", component)
		return nil
	}

	if guard, ok := desc["when"]; ok && !Truthy(scope.Evaluate(guard)) {
		r.logger.Debug("command guard false, skipping", "type", typ)
		return nil
	}

	props := Properties{
		Type:      typ,
		Delay:     desc.Millis("delay"),
		Sequencer: desc.String("sequencer", ""),
		Inherited: lane,
		Scope:     scope,
		Component: desc.String("componentId", component),
	}

	if m, ok := r.macros[typ]; ok {
		return r.expandMacro(ctx, m, props, desc)
	}

	f, ok := r.factories[typ]
	if !ok {
		r.logger.Warn("unknown command type, skipping", "type", typ)
		return nil
	}
	cmd, err := f(ctx, props, desc)
	if err != nil {
		r.logger.Warn("command construction failed, skipping",
			"type", typ,
			"err", err,
		)
		return nil
	}
	return cmd
}

// expandMacro binds the macro parameters in a child scope and wraps the
// macro body in an ArrayCommand carrying the invoking description's delay
// and lane.
func (r *Registry) expandMacro(ctx *Context, m Macro, props Properties, desc Description) Command {
	child := NewScope(props.Scope)
	for _, p := range m.Parameters {
		v, ok := desc[p.Name]
		if !ok {
			v = p.Default
		}
		child.Define(p.Name, props.Scope.Evaluate(v))
	}
	props.Scope = child
	return NewArrayCommand(ctx, props, m.Commands, false)
}

// ErrMissingProperty reports a required description key that is absent.
type ErrMissingProperty struct {
	Type     string
	Property string
}

func (e *ErrMissingProperty) Error() string {
	return fmt.Sprintf("%s: missing required property %q", e.Type, e.Property)
}
