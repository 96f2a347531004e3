// Package harness runs scripted conformance scenarios against a document.
//
// A scenario names a document, drives it through a list of steps on a
// virtual clock and checks assertions against what happened. Every run
// records into a fresh in-memory SQLite store; the trace and emitted events
// in the result are read back from that store, so a scenario exercises the
// same persistence path as `docrun run --db`.
//
// # Scenario Format
//
//	name: press_twice
//	description: "press repeats its body once, then runs finally"
//	document: ../../document/testdata/basic.yaml
//	id_prefix: t
//	steps:
//	  - do: mount
//	  - do: advance_to_end
//	  - do: invoke
//	    handler: press
//	    fast: true
//	assertions:
//	  - type: event_order
//	    events: [mounted, tick, done]
//	  - type: trace_count
//	    kind: fast
//	    count: 1
//
// # Steps
//
//   - mount: run the component and document onMount commands
//   - invoke: run a named handler (optionally fast, or on a lane)
//   - execute: run inline command descriptions
//   - advance: move virtual time forward by ms
//   - advance_to_end: run until no timers remain
//   - reset: terminate the main lane
//   - terminate: stop the sequencer
//
// # Assertion Types
//
//   - event_order: event labels appear in this order (gaps allowed)
//   - event_count: an event label appears exactly N times
//   - trace_count: trace events of a kind (optionally on a lane) number N
//   - lane_empty: a lane has no pending occupant
//   - scope_value: a root scope variable has a value
//   - time: virtual time at the end of the run, in ms
//
// An event's label is its first argument when that is a string, otherwise
// its type.
//
// # Deterministic Testing
//
// Action ids and the run id come from a trace.SequenceGenerator seeded with
// the scenario's id_prefix (default "t", giving t-1, t-2 and so on), and
// time is virtual, so the same scenario always yields the same trace. RunWithGolden compares that trace
// against testdata/golden/<name>.golden in canonical JSON.
package harness
