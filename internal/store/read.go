package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/docrun/internal/trace"
)

// ReadRun retrieves a run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document, version FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Document, &run.Version)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns every run in the order the runs were begun.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document, version FROM runs ORDER BY ordinal ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Document, &run.Version); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently begun run.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document, version FROM runs ORDER BY ordinal DESC LIMIT 1
	`).Scan(&run.ID, &run.Document, &run.Version)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadTrace returns the trace of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]trace.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, lane, command, action_id, resource, at_ms
		FROM trace_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		ev, err := scanTraceEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return events, nil
}

// CountTrace returns the number of trace events of each kind in a run.
func (s *Store) CountTrace(ctx context.Context, runID string) (map[trace.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM trace_events
		WHERE run_id = ?
		GROUP BY kind
		ORDER BY kind ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("count trace: %w", err)
	}
	defer rows.Close()

	counts := make(map[trace.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan trace count: %w", err)
		}
		counts[trace.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace counts: %w", err)
	}
	return counts, nil
}

// ReadEmitted returns the events a run emitted, ordered by seq.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadEmitted(ctx context.Context, runID string) ([]EmittedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, type, component, arguments, digest, at_ms
		FROM emitted_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query emitted: %w", err)
	}
	defer rows.Close()

	events := []EmittedEvent{}
	for rows.Next() {
		var ev EmittedEvent
		var args string
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Type, &ev.Component, &args, &ev.Digest, &ev.AtMS); err != nil {
			return nil, fmt.Errorf("scan emitted: %w", err)
		}
		ev.Arguments, err = unmarshalArguments(args)
		if err != nil {
			return nil, fmt.Errorf("emitted seq %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emitted: %w", err)
	}
	return events, nil
}

func scanTraceEvent(rows *sql.Rows) (trace.Event, error) {
	var ev trace.Event
	var kind string
	if err := rows.Scan(&ev.Seq, &kind, &ev.Lane, &ev.Command, &ev.ActionID, &ev.Resource, &ev.AtMS); err != nil {
		return trace.Event{}, fmt.Errorf("scan trace event: %w", err)
	}
	ev.Kind = trace.Kind(kind)
	return ev, nil
}
