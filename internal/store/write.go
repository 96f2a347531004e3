package store

import (
	"context"
	"fmt"

	"github.com/roach88/docrun/internal/trace"
)

// Run identifies one execution of a document.
type Run struct {
	ID       string `json:"id"`
	Document string `json:"document"`
	Version  string `json:"version"`
}

// EmittedEvent is an event a command sent to the host during a run.
type EmittedEvent struct {
	RunID     string `json:"run_id"`
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Component string `json:"component,omitempty"`
	Arguments []any  `json:"arguments"`
	Digest    string `json:"digest"`
	AtMS      int64  `json:"at_ms"`
}

// BeginRun records a new run. Uses ON CONFLICT(id) DO NOTHING so that
// re-opening a run is idempotent.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, document, version)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Document, run.Version)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// WriteTrace appends a trace event to a run. The (run, seq) pair is the
// primary key; writing the same event twice is a no-op.
func (s *Store) WriteTrace(ctx context.Context, runID string, ev trace.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trace_events
		(run_id, seq, kind, lane, command, action_id, resource, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		ev.Seq,
		string(ev.Kind),
		ev.Lane,
		ev.Command,
		ev.ActionID,
		ev.Resource,
		ev.AtMS,
	)
	if err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

// WriteTraceBatch appends events in one transaction.
func (s *Store) WriteTraceBatch(ctx context.Context, runID string, events []trace.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write trace batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trace_events
		(run_id, seq, kind, lane, command, action_id, resource, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write trace batch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, runID, ev.Seq, string(ev.Kind), ev.Lane, ev.Command, ev.ActionID, ev.Resource, ev.AtMS); err != nil {
			return fmt.Errorf("write trace batch: seq %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write trace batch: commit: %w", err)
	}
	return nil
}

// WriteEmitted appends an emitted event. Arguments are stored as canonical
// JSON; the computed digest is returned.
func (s *Store) WriteEmitted(ctx context.Context, ev EmittedEvent) (string, error) {
	args, digest, err := marshalArguments(ev.Arguments)
	if err != nil {
		return "", fmt.Errorf("write emitted: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO emitted_events
		(run_id, seq, type, component, arguments, digest, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		ev.RunID,
		ev.Seq,
		ev.Type,
		ev.Component,
		args,
		digest,
		ev.AtMS,
	)
	if err != nil {
		return "", fmt.Errorf("write emitted: %w", err)
	}
	return digest, nil
}
