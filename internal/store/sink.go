package store

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/docrun/internal/trace"
)

// TraceSink persists trace events of one run as they are recorded.
//
// A failed write is logged and counted, never returned: the sequencer must
// not be disturbed by storage problems.
type TraceSink struct {
	store  *Store
	runID  string
	logger *slog.Logger
	failed atomic.Int64
}

// NewTraceSink creates a sink writing to run runID. A nil logger uses
// slog.Default.
func NewTraceSink(s *Store, runID string, logger *slog.Logger) *TraceSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &TraceSink{store: s, runID: runID, logger: logger}
}

// Record implements trace.Observer.
func (t *TraceSink) Record(ev trace.Event) {
	if err := t.store.WriteTrace(context.Background(), t.runID, ev); err != nil {
		t.failed.Add(1)
		t.logger.Warn("trace write failed",
			"run", t.runID,
			"seq", ev.Seq,
			"err", err,
		)
	}
}

// Failures returns how many writes failed.
func (t *TraceSink) Failures() int64 {
	return t.failed.Load()
}
