package document

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/docrun/internal/action"
	"github.com/roach88/docrun/internal/command"
	"github.com/roach88/docrun/internal/sequencer"
	"github.com/roach88/docrun/internal/timer"
	"github.com/roach88/docrun/internal/trace"
)

// EmitFunc observes every emitted event as it is enqueued.
type EmitFunc func(e Emitted)

// Runtime runs one document: it owns the timer loop, the registry, the
// sequencer and the event queue of that document.
//
// Thread-safety model:
//   - PopEvent, WaitEvent, PendingEvents: safe from any goroutine
//   - everything else: one goroutine only, like the core packages
type Runtime struct {
	doc      *Document
	loop     *timer.Loop
	registry *command.Registry
	seq      *sequencer.Sequencer
	tracer   *trace.Tracer
	ctx      *command.Context
	scope    *command.Scope

	queue    *eventQueue
	eventSeq *trace.Clock
	history  []Emitted

	runID     string
	logger    *slog.Logger
	ids       trace.IDGenerator
	observers []trace.Observer
	emitters  []EmitFunc
	factories map[string]command.Factory
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used by the runtime, the registry and the
// sequencer. Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithObserver adds a trace sink. Events reach sinks in registration order.
func WithObserver(o trace.Observer) Option {
	return func(r *Runtime) {
		r.observers = append(r.observers, o)
	}
}

// WithIDGenerator sets the generator for the run id and action ids.
// Default: UUIDv7Generator.
func WithIDGenerator(g trace.IDGenerator) Option {
	return func(r *Runtime) {
		r.ids = g
	}
}

// WithEventSink adds a function called for every emitted event.
func WithEventSink(fn EmitFunc) Option {
	return func(r *Runtime) {
		r.emitters = append(r.emitters, fn)
	}
}

// WithCommand registers an additional command type.
func WithCommand(typ string, f command.Factory) Option {
	return func(r *Runtime) {
		r.factories[typ] = f
	}
}

// NewRuntime wires a runtime for doc. Nothing runs until Mount, Invoke or
// Execute is called.
func NewRuntime(doc *Document, opts ...Option) *Runtime {
	r := &Runtime{
		doc:       doc,
		loop:      timer.NewLoop(),
		queue:     newEventQueue(),
		eventSeq:  trace.NewClock(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:       trace.UUIDv7Generator{},
		factories: make(map[string]command.Factory),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.runID = r.ids.Generate()

	r.tracer = trace.NewTracer(r.loop.CurrentTime, r.observers...)
	r.tracer.AddSink(trace.NewLogSink(r.logger.With("run", r.runID)))

	r.registry = command.NewRegistry(r.logger)
	command.RegisterBuiltins(r.registry)
	for typ, f := range r.factories {
		r.registry.Register(typ, f)
	}
	for name, m := range doc.Macros {
		r.registry.DefineMacro(name, m.Macro())
	}

	r.seq = sequencer.New(r.loop, doc.Version,
		sequencer.WithLogger(r.logger),
		sequencer.WithObserver(r.tracer),
		sequencer.WithIDGenerator(r.ids),
	)
	r.scope = command.NewScope(nil)
	r.ctx = &command.Context{
		Timers:    r.loop,
		Sequencer: r.seq,
		Inflater:  r.registry,
		Events:    command.EventSinkFunc(r.emit),
		Logger:    r.logger,
	}
	return r
}

// RunID returns the id of this run.
func (r *Runtime) RunID() string { return r.runID }

// Document returns the document being run.
func (r *Runtime) Document() *Document { return r.doc }

// Sequencer returns the document's sequencer.
func (r *Runtime) Sequencer() *sequencer.Sequencer { return r.seq }

// Scope returns the document's root data-binding scope.
func (r *Runtime) Scope() *command.Scope { return r.scope }

// Value looks a variable up in the root scope.
func (r *Runtime) Value(name string) (any, bool) { return r.scope.Get(name) }

// Now returns the virtual time of the run.
func (r *Runtime) Now() time.Duration { return r.loop.CurrentTime() }

// Mount runs the onMount commands of every component together, then the
// document's own onMount commands, as one DocumentCommand on the main lane.
// The document-level commands still run if the mount is cut short.
func (r *Runtime) Mount() *action.Action {
	var components []command.Command
	for _, comp := range r.doc.Components {
		if len(comp.OnMount) == 0 {
			continue
		}
		components = append(components, r.array("Component", comp.ID, descriptions(comp.OnMount)))
	}

	var wrapUp command.Command
	if len(r.doc.OnMount) > 0 {
		wrapUp = r.array("onMount", "", descriptions(r.doc.OnMount))
	}

	doc := command.NewDocumentCommand(r.ctx, command.Properties{
		Type:  "Document",
		Scope: r.scope,
	}, components, wrapUp)
	return r.seq.Execute(doc, false)
}

func (r *Runtime) array(typ, component string, descs []command.Description) *command.ArrayCommand {
	return command.NewArrayCommand(r.ctx, command.Properties{
		Type:      typ,
		Scope:     r.scope,
		Component: component,
	}, descs, false)
}

// Invoke runs a named handler. In normal mode it replaces whatever occupies
// the main lane; in fast mode it runs to completion without the lanes.
func (r *Runtime) Invoke(handler string, fastMode bool) (*action.Action, error) {
	if r.seq.IsTerminated() {
		return nil, &RuntimeError{Code: ErrCodeTerminated, Message: "runtime terminated", Handler: handler}
	}
	descs, ok := r.doc.Handler(handler)
	if !ok {
		return nil, NewUnknownHandlerError(handler)
	}
	r.logger.Debug("invoke", "handler", handler, "fast", fastMode)
	return r.seq.ExecuteCommands(r.ctx, descs, r.scope, "", fastMode), nil
}

// InvokeOnLane runs a named handler on a specific lane.
func (r *Runtime) InvokeOnLane(handler, lane string) (*action.Action, error) {
	if r.seq.IsTerminated() {
		return nil, &RuntimeError{Code: ErrCodeTerminated, Message: "runtime terminated", Handler: handler}
	}
	descs, ok := r.doc.Handler(handler)
	if !ok {
		return nil, NewUnknownHandlerError(handler)
	}
	return r.seq.ExecuteCommandsOnSequencer(r.ctx, descs, r.scope, "", lane), nil
}

// Execute runs ad-hoc command descriptions against the document.
func (r *Runtime) Execute(descs []command.Description, fastMode bool) *action.Action {
	return r.seq.ExecuteCommands(r.ctx, descs, r.scope, "", fastMode)
}

// AdvanceBy moves virtual time forward, running everything due.
func (r *Runtime) AdvanceBy(d time.Duration) { r.loop.AdvanceBy(d) }

// AdvanceToEnd runs until no timers remain.
func (r *Runtime) AdvanceToEnd() { r.loop.AdvanceToEnd() }

// Idle reports whether no timers are pending.
func (r *Runtime) Idle() bool { return r.loop.Size() == 0 }

// Reset terminates the main lane.
func (r *Runtime) Reset() { r.seq.Reset() }

// Terminate stops everything and closes the event queue. Already queued
// events can still be popped.
func (r *Runtime) Terminate() {
	r.seq.Terminate()
	r.queue.Close()
}

// PopEvent removes the oldest queued event.
func (r *Runtime) PopEvent() (Emitted, bool) { return r.queue.TryDequeue() }

// PendingEvents returns the number of queued events.
func (r *Runtime) PendingEvents() int { return r.queue.Len() }

// Events returns every event emitted so far, popped or not.
func (r *Runtime) Events() []Emitted {
	out := make([]Emitted, len(r.history))
	copy(out, r.history)
	return out
}

// WaitEvent blocks until an event is queued, the runtime terminates, or ctx
// is done.
func (r *Runtime) WaitEvent(ctx context.Context) (Emitted, error) {
	for {
		if e, ok := r.queue.TryDequeue(); ok {
			return e, nil
		}
		if r.queue.Closed() {
			return Emitted{}, &RuntimeError{Code: ErrCodeQueueClosed, Message: "event queue closed"}
		}
		select {
		case <-ctx.Done():
			return Emitted{}, ctx.Err()
		case <-r.queue.Wait():
		}
	}
}

func (r *Runtime) emit(ev command.Event) {
	e := Emitted{
		Seq:   r.eventSeq.Next(),
		AtMS:  r.loop.CurrentTime().Milliseconds(),
		Event: ev,
	}
	r.history = append(r.history, e)
	if !r.queue.Enqueue(e) {
		r.logger.Debug("event dropped, queue closed", "type", ev.Type)
	}
	for _, fn := range r.emitters {
		fn(e)
	}
}
