package trace

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_Next(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())

	c = NewClockAt(40)
	assert.Equal(t, int64(41), c.Next())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Next()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(5000), c.Current())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("act")
	assert.Equal(t, "act-1", g.Generate())
	assert.Equal(t, "act-2", g.Generate())
}

func TestUUIDv7Generator_Sortable(t *testing.T) {
	g := UUIDv7Generator{}
	a := g.Generate()
	time.Sleep(2 * time.Millisecond)
	b := g.Generate()

	assert.Len(t, a, 36)
	assert.Less(t, a, b, "uuidv7 values sort by creation time")
}

func TestTracer_StampsAndFansOut(t *testing.T) {
	now := 250 * time.Millisecond
	mem1, mem2 := NewMemory(), NewMemory()
	tr := NewTracer(func() time.Duration { return now }, mem1)
	tr.AddSink(mem2)

	tr.Record(Event{Kind: KindExecute, Lane: "main", Command: "Idle", ActionID: "x"})
	now = time.Second
	tr.Record(Event{Kind: KindComplete, ActionID: "x"})

	events := mem1.Events()
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(250), events[0].AtMS)
	assert.Equal(t, int64(2), events[1].Seq)
	assert.Equal(t, int64(1000), events[1].AtMS)
	assert.Equal(t, events, mem2.Events())
	assert.Equal(t, 1, mem1.Count(KindComplete))
	assert.Equal(t, int64(2), tr.Clock().Current())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLogSink(logger)

	sink.Record(Event{Seq: 3, Kind: KindClaim, Resource: "animate/box/opacity", ActionID: "a-1"})

	out := buf.String()
	assert.Contains(t, out, "kind=claim")
	assert.Contains(t, out, "resource=animate/box/opacity")
	assert.NotContains(t, out, "lane=")
}

func TestLogSink_SkipsWhenDebugDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	NewLogSink(logger).Record(Event{Kind: KindReset})
	assert.Empty(t, buf.String())
}

func TestObserverFunc(t *testing.T) {
	var got Event
	var o Observer = ObserverFunc(func(ev Event) { got = ev })
	o.Record(Event{Kind: KindShutdown})
	assert.Equal(t, KindShutdown, got.Kind)
}
