// Package trace records what the sequencer does with actions: which lane
// an action was placed on, what it preempted, when it finished, and which
// resources changed hands.
//
// Events are produced by the sequencer through the Observer interface and
// stamped by a Tracer with a logical sequence number and the virtual time
// of the timer loop. Sinks fan the stamped events out to memory, slog, or
// the SQLite store.
package trace

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind names what happened to an action.
type Kind string

const (
	// KindExecute: a command was installed on a lane.
	KindExecute Kind = "execute"
	// KindFast: a command ran in fast mode and is tracked outside any lane.
	KindFast Kind = "fast"
	// KindPreempt: a lane occupant was evicted by newer work.
	KindPreempt Kind = "preempt"
	// KindComplete: a tracked action resolved.
	KindComplete Kind = "complete"
	// KindTerminate: a tracked action was terminated.
	KindTerminate Kind = "terminate"
	// KindClaim: a resource was claimed.
	KindClaim Kind = "claim"
	// KindRelease: a resource holder lost its resources.
	KindRelease Kind = "release"
	// KindReset: the main lane was reset.
	KindReset Kind = "reset"
	// KindShutdown: the sequencer was terminated.
	KindShutdown Kind = "shutdown"
)

// Event is one recorded sequencer step.
type Event struct {
	Seq      int64  `json:"seq"`
	Kind     Kind   `json:"kind"`
	Lane     string `json:"lane,omitempty"`
	Command  string `json:"command,omitempty"`
	ActionID string `json:"action_id,omitempty"`
	Resource string `json:"resource,omitempty"`
	AtMS     int64  `json:"at_ms"`
}

// Observer receives sequencer events.
type Observer interface {
	Record(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// Record calls f(ev).
func (f ObserverFunc) Record(ev Event) { f(ev) }

// Tracer stamps events and forwards them to its sinks.
type Tracer struct {
	clock *Clock
	now   func() time.Duration
	sinks []Observer
}

// NewTracer creates a tracer. now supplies the virtual time each event is
// stamped with; nil stamps zero.
func NewTracer(now func() time.Duration, sinks ...Observer) *Tracer {
	return &Tracer{clock: NewClock(), now: now, sinks: sinks}
}

// AddSink registers another sink. Not safe to call while recording.
func (t *Tracer) AddSink(s Observer) {
	t.sinks = append(t.sinks, s)
}

// Clock returns the tracer's sequence clock.
func (t *Tracer) Clock() *Clock {
	return t.clock
}

// Record stamps ev with the next sequence number and the current virtual
// time, then forwards it to every sink in registration order.
func (t *Tracer) Record(ev Event) {
	ev.Seq = t.clock.Next()
	if t.now != nil {
		ev.AtMS = t.now().Milliseconds()
	}
	for _, s := range t.sinks {
		s.Record(ev)
	}
}

// Memory keeps recorded events in order.
//
// Thread-safety: safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Record implements Observer.
func (m *Memory) Record(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns how many events of kind were recorded.
func (m *Memory) Count(kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// LogSink writes events to a structured logger at debug level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements Observer.
func (s *LogSink) Record(ev Event) {
	if !s.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{
		"seq", ev.Seq,
		"kind", string(ev.Kind),
		"at_ms", ev.AtMS,
	}
	if ev.Lane != "" {
		attrs = append(attrs, "lane", ev.Lane)
	}
	if ev.Command != "" {
		attrs = append(attrs, "command", ev.Command)
	}
	if ev.ActionID != "" {
		attrs = append(attrs, "action_id", ev.ActionID)
	}
	if ev.Resource != "" {
		attrs = append(attrs, "resource", ev.Resource)
	}
	s.logger.Debug("sequencer", attrs...)
}
