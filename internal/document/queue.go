package document

import (
	"sync"

	"github.com/roach88/docrun/internal/command"
)

// Emitted is an event a command sent to the host, stamped with its
// position in the run and the virtual time it was sent at.
type Emitted struct {
	Seq   int64         `json:"seq"`
	AtMS  int64         `json:"at_ms"`
	Event command.Event `json:"event"`
}

// eventQueue is a FIFO of emitted events.
//
// Commands enqueue from the runtime's goroutine; hosts may dequeue from
// another one, so the queue is safe for concurrent use. It is unbounded:
// a document that emits in a loop must not block its own timer loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Emitted
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Emitted, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Emitted) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Emitted, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Emitted{}, false
	}
	e := q.events[0]
	// Release the arguments slice for GC.
	q.events[0] = Emitted{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops further enqueues and wakes every waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close was called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
