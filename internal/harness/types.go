package harness

import (
	"fmt"

	"github.com/roach88/docrun/internal/store"
	"github.com/roach88/docrun/internal/trace"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step ran and every assertion held.
	Pass bool `json:"pass"`

	// RunID identifies the run in the store.
	RunID string `json:"run_id"`

	// Trace holds the sequencer events in seq order, as read back from the
	// store.
	Trace []trace.Event `json:"trace"`

	// Events holds the emitted events in seq order, as read back from the
	// store.
	Events []store.EmittedEvent `json:"events"`

	// EndMS is the virtual time after the last step.
	EndMS int64 `json:"end_ms"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []trace.Event{},
		Events: []store.EmittedEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Labels returns the label of every emitted event, in order.
func (r *Result) Labels() []string {
	out := make([]string, len(r.Events))
	for i, ev := range r.Events {
		out[i] = label(ev)
	}
	return out
}

// label names an event by its first argument when that is a string.
func label(ev store.EmittedEvent) string {
	if len(ev.Arguments) > 0 {
		if s, ok := ev.Arguments[0].(string); ok {
			return s
		}
	}
	return ev.Type
}

func (r *Result) String() string {
	return fmt.Sprintf("run %s: %d trace events, %d emitted, end %dms", r.RunID, len(r.Trace), len(r.Events), r.EndMS)
}
