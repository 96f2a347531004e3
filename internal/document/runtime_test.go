package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrun/internal/action"
	"github.com/roach88/docrun/internal/command"
	"github.com/roach88/docrun/internal/trace"
)

const ms = time.Millisecond

func loadBasic(t *testing.T) *Document {
	t.Helper()
	doc, err := LoadFile("testdata/basic.yaml")
	require.NoError(t, err)
	return doc
}

func argsOf(events []Emitted) [][]any {
	out := make([][]any, len(events))
	for i, e := range events {
		out[i] = e.Event.Arguments
	}
	return out
}

func TestRuntime_MountRunsComponentsThenDocument(t *testing.T) {
	rt := NewRuntime(loadBasic(t))

	a := rt.Mount()
	require.NotNil(t, a)
	assert.Equal(t, [][]any{{"header"}}, argsOf(rt.Events()), "header emits synchronously")

	rt.AdvanceToEnd()

	assert.True(t, a.IsResolved())
	events := rt.Events()
	assert.Equal(t, [][]any{{"header"}, {"footer"}, {"mounted"}}, argsOf(events))
	assert.Equal(t, "header", events[0].Event.Component)
	assert.Equal(t, "footer", events[1].Event.Component)
	assert.Equal(t, "", events[2].Event.Component)
	assert.Equal(t, []int64{1, 2, 3}, []int64{events[0].Seq, events[1].Seq, events[2].Seq})
	assert.Equal(t, int64(100), events[2].AtMS)
	assert.Equal(t, 100*ms, rt.Now())
	assert.True(t, rt.Idle())
}

func TestRuntime_ResetDuringMountStillRunsDocumentOnMount(t *testing.T) {
	rt := NewRuntime(loadBasic(t))

	rt.Mount()
	rt.AdvanceBy(50 * ms)
	rt.Reset()
	rt.AdvanceToEnd()

	assert.Equal(t, [][]any{{"header"}, {"mounted"}}, argsOf(rt.Events()))
}

func TestRuntime_InvokeFast(t *testing.T) {
	rt := NewRuntime(loadBasic(t))

	a, err := rt.Invoke("press", true)
	require.NoError(t, err)
	assert.Nil(t, a, "fast mode returns no action")

	assert.Equal(t, [][]any{{"tick"}, {"tick"}, {"done"}}, argsOf(rt.Events()))
	assert.Equal(t, time.Duration(0), rt.Now())
}

func TestRuntime_InvokeNormal(t *testing.T) {
	rt := NewRuntime(loadBasic(t))

	a, err := rt.Invoke("press", false)
	require.NoError(t, err)
	require.NotNil(t, a)
	rt.AdvanceToEnd()

	assert.True(t, a.IsResolved())
	assert.Equal(t, [][]any{{"tick"}, {"tick"}, {"done"}}, argsOf(rt.Events()))
}

func TestRuntime_InvokeReplacesMainLane(t *testing.T) {
	rt := NewRuntime(loadBasic(t))

	first, err := rt.Invoke("slow", false)
	require.NoError(t, err)
	rt.AdvanceBy(100 * ms)

	second, err := rt.Invoke("slow", false)
	require.NoError(t, err)
	assert.True(t, first.IsTerminated())

	rt.AdvanceToEnd()
	assert.True(t, second.IsResolved())
	assert.Equal(t, [][]any{{"slow-done"}}, argsOf(rt.Events()))
	assert.Equal(t, 600*ms, rt.Now())
}

func TestRuntime_UnknownHandler(t *testing.T) {
	rt := NewRuntime(loadBasic(t))

	_, err := rt.Invoke("nope", false)
	require.Error(t, err)
	assert.True(t, IsUnknownHandler(err))
	assert.Contains(t, err.Error(), "handler=nope")

	_, err = rt.InvokeOnLane("nope", "side")
	assert.True(t, IsUnknownHandler(err))
}

func TestRuntime_AnimationOnOwnLane(t *testing.T) {
	rt := NewRuntime(loadBasic(t))

	_, err := rt.Invoke("spin", false)
	require.NoError(t, err)
	assert.False(t, rt.Sequencer().IsEmpty("anim"))

	rt.AdvanceBy(500 * ms)
	v, ok := rt.Value("box.x")
	require.True(t, ok)
	assert.Equal(t, 50, v)

	rt.AdvanceToEnd()
	v, _ = rt.Value("box.x")
	assert.Equal(t, 100, v)
	assert.True(t, rt.Sequencer().IsEmpty("anim"))
}

func TestRuntime_InvokeOnLane(t *testing.T) {
	rt := NewRuntime(loadBasic(t))

	a, err := rt.InvokeOnLane("slow", "side")
	require.NoError(t, err)
	assert.Nil(t, a, "only the main lane returns its action")
	assert.False(t, rt.Sequencer().IsEmpty("side"))

	_, err = rt.Invoke("press", false)
	require.NoError(t, err)
	rt.AdvanceToEnd()

	assert.Contains(t, argsOf(rt.Events()), []any{"slow-done"}, "the main lane does not preempt other lanes")
}

func TestRuntime_OldVersionRunsSingleLane(t *testing.T) {
	doc := loadBasic(t)
	doc.Version = "1.0"
	rt := NewRuntime(doc)

	assert.False(t, rt.Sequencer().MultiLane())
	_, err := rt.Invoke("spin", false)
	require.NoError(t, err)
	assert.True(t, rt.Sequencer().IsEmpty("anim"))
}

func TestRuntime_TraceAndIDs(t *testing.T) {
	mem := trace.NewMemory()
	rt := NewRuntime(loadBasic(t),
		WithObserver(mem),
		WithIDGenerator(trace.NewSequenceGenerator("t")),
	)
	assert.Equal(t, "t-1", rt.RunID())

	rt.Mount()
	rt.AdvanceToEnd()

	assert.Equal(t, []trace.Event{
		{Seq: 1, Kind: trace.KindExecute, Lane: "__MAIN__", Command: "Document", ActionID: "t-2"},
		{Seq: 2, Kind: trace.KindComplete, Lane: "__MAIN__", ActionID: "t-2", AtMS: 100},
	}, mem.Events())
}

func TestRuntime_TerminateStopsEverything(t *testing.T) {
	mem := trace.NewMemory()
	rt := NewRuntime(loadBasic(t), WithObserver(mem))

	_, err := rt.Invoke("slow", false)
	require.NoError(t, err)
	rt.AdvanceBy(100 * ms)
	rt.Terminate()
	rt.AdvanceToEnd()

	assert.Empty(t, rt.Events())
	assert.Equal(t, 1, mem.Count(trace.KindTerminate))
	assert.Equal(t, 1, mem.Count(trace.KindShutdown))

	_, err = rt.Invoke("press", true)
	assert.True(t, IsTerminated(err))
	_, err = rt.InvokeOnLane("press", "side")
	assert.True(t, IsTerminated(err))
	assert.Nil(t, rt.Execute([]command.Description{{"type": "Idle"}}, false))
}

func TestRuntime_EventSinksAndQueue(t *testing.T) {
	var seen []Emitted
	rt := NewRuntime(loadBasic(t), WithEventSink(func(e Emitted) { seen = append(seen, e) }))

	rt.Execute([]command.Description{
		{"type": "SendEvent", "arguments": []any{"one"}},
		{"type": "SendEvent", "arguments": []any{"two"}},
	}, true)

	assert.Len(t, seen, 2)
	assert.Equal(t, 2, rt.PendingEvents())

	e, ok := rt.PopEvent()
	require.True(t, ok)
	assert.Equal(t, []any{"one"}, e.Event.Arguments)

	e, err := rt.WaitEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"two"}, e.Event.Arguments)

	assert.Len(t, rt.Events(), 2, "history keeps popped events")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rt.WaitEvent(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	rt.Terminate()
	_, err = rt.WaitEvent(context.Background())
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeQueueClosed, re.Code)
}

func TestRuntime_WaitEventFromAnotherGoroutine(t *testing.T) {
	rt := NewRuntime(loadBasic(t))

	got := make(chan Emitted, 1)
	go func() {
		e, err := rt.WaitEvent(context.Background())
		if err == nil {
			got <- e
		}
	}()

	rt.Execute([]command.Description{{"type": "SendEvent", "arguments": "ping"}}, true)

	select {
	case e := <-got:
		assert.Equal(t, []any{"ping"}, e.Event.Arguments)
	case <-time.After(time.Second):
		t.Fatal("WaitEvent did not wake up")
	}
}

func TestRuntime_WithCommand(t *testing.T) {
	var ran int
	rt := NewRuntime(loadBasic(t), WithCommand("Count", func(ctx *command.Context, props command.Properties, desc command.Description) (command.Command, error) {
		ran++
		return &countCommand{Base: command.NewBase(ctx, props)}, nil
	}))

	rt.Execute([]command.Description{{"type": "Count"}, {"type": "Count"}}, true)
	assert.Equal(t, 2, ran)
}

type countCommand struct {
	command.Base
}

func (c *countCommand) Execute(bool) *action.Action { return nil }
