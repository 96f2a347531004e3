// Package store provides SQLite-backed storage for document runs.
//
// A run is one execution of a document. For each run the store keeps:
//   - Trace events: what the sequencer did with every action
//   - Emitted events: what the document's commands sent to the host
//
// # Ordering
//
// Rows are ordered by the seq column, a logical clock value assigned by the
// tracer or the runtime event queue, never by timestamps. Reading a run
// twice yields identical slices, which is what golden trace comparison
// relies on.
//
// Emitted event arguments are stored as RFC 8785 canonical JSON together
// with a domain-separated SHA-256 digest (see internal/canonical).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
