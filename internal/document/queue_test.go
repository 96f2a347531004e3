package document

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrun/internal/command"
)

func emitted(seq int64, typ string) Emitted {
	return Emitted{Seq: seq, Event: command.Event{Type: typ}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for i, typ := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(emitted(int64(i+1), typ)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.Event.Type)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(emitted(1, "kept"))
	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(emitted(2, "dropped")))

	got, ok := q.TryDequeue()
	require.True(t, ok, "events queued before close can still be drained")
	assert.Equal(t, "kept", got.Event.Type)

	_, open := <-q.Wait()
	assert.False(t, open, "wait channel is closed")
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(emitted(int64(n*100+j), "x"))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())
}
