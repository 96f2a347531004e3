package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/docrun/internal/command"
	"github.com/roach88/docrun/internal/document"
	"github.com/roach88/docrun/internal/store"
	"github.com/roach88/docrun/internal/trace"
)

// DefaultIDPrefix seeds the id generator when a scenario names none.
const DefaultIDPrefix = "t"

// Harness executes one scenario against one runtime.
type Harness struct {
	runtime *document.Runtime
	store   *store.Store
	sink    *store.TraceSink
	logger  *slog.Logger
	ctx     context.Context

	// emitErr keeps the first failed event write; the event sink has no
	// error return.
	emitErr error
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes runtime and harness logs to l. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// deterministic id generator and virtual time.
//
// Execution flow:
// 1. Load the document and open the store
// 2. Wire the runtime so trace and emitted events land in the store
// 3. Execute the steps
// 4. Read the trace and events back and evaluate assertions
//
// A returned error means the scenario could not run; failed assertions are
// reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	doc, err := document.LoadFile(scenario.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	ids := trace.NewSequenceGenerator(prefix)

	h := &Harness{
		store:  st,
		logger: cfg.logger,
		ctx:    context.Background(),
	}
	// The sink needs the run id, which the runtime draws from ids first;
	// nothing is traced before the first step.
	h.runtime = document.NewRuntime(doc,
		document.WithLogger(cfg.logger),
		document.WithIDGenerator(ids),
		document.WithObserver(trace.ObserverFunc(func(ev trace.Event) { h.sink.Record(ev) })),
		document.WithEventSink(h.recordEmitted),
	)
	runID := h.runtime.RunID()
	if err := st.BeginRun(h.ctx, store.Run{ID: runID, Document: scenario.Document, Version: doc.Version}); err != nil {
		return nil, err
	}
	h.sink = store.NewTraceSink(st, runID, cfg.logger)

	for i, step := range scenario.Steps {
		if err := h.executeStep(step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Do, err)
		}
	}
	if h.emitErr != nil {
		return nil, h.emitErr
	}
	if n := h.sink.Failures(); n > 0 {
		return nil, fmt.Errorf("%d trace events could not be stored", n)
	}

	result := NewResult()
	result.RunID = runID
	result.EndMS = h.runtime.Now().Milliseconds()
	if result.Trace, err = st.ReadTrace(h.ctx, runID); err != nil {
		return nil, err
	}
	if result.Events, err = st.ReadEmitted(h.ctx, runID); err != nil {
		return nil, err
	}

	actx := &AssertionContext{Runtime: h.runtime}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) recordEmitted(e document.Emitted) {
	_, err := h.store.WriteEmitted(h.ctx, store.EmittedEvent{
		RunID:     h.runtime.RunID(),
		Seq:       e.Seq,
		Type:      e.Event.Type,
		Component: e.Event.Component,
		Arguments: e.Event.Arguments,
		AtMS:      e.AtMS,
	})
	if err != nil && h.emitErr == nil {
		h.emitErr = err
	}
}

func (h *Harness) executeStep(step Step) error {
	rt := h.runtime
	switch step.Do {
	case StepMount:
		rt.Mount()
	case StepInvoke:
		var err error
		if step.Lane != "" {
			_, err = rt.InvokeOnLane(step.Handler, step.Lane)
		} else {
			_, err = rt.Invoke(step.Handler, step.Fast)
		}
		if err != nil {
			return err
		}
	case StepExecute:
		descs := make([]command.Description, len(step.Commands))
		for i, c := range step.Commands {
			descs[i] = command.Description(c)
		}
		rt.Execute(descs, step.Fast)
	case StepAdvance:
		rt.AdvanceBy(time.Duration(step.MS) * time.Millisecond)
	case StepAdvanceToEnd:
		rt.AdvanceToEnd()
	case StepReset:
		rt.Reset()
	case StepTerminate:
		rt.Terminate()
	default:
		return fmt.Errorf("unknown step %q", step.Do)
	}
	h.logger.Debug("step completed", "step", step.Do, "at_ms", rt.Now().Milliseconds())
	return nil
}
