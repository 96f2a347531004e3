package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docrun/internal/timer"
)

func delayed(loop *timer.Loop, ms int) *Action {
	return MakeDelayed(loop, time.Duration(ms)*time.Millisecond, nil)
}

func TestMakeAll_ResolvesAfterLastMember(t *testing.T) {
	loop := timer.NewLoop()
	all := MakeAll(loop, []*Action{delayed(loop, 100), delayed(loop, 300), delayed(loop, 200)})

	resolvedAt := time.Duration(-1)
	resolutions := 0
	all.Then(func(*Action) {
		resolutions++
		resolvedAt = loop.CurrentTime()
	})

	loop.AdvanceBy(299 * time.Millisecond)
	assert.True(t, all.IsPending())

	loop.AdvanceToEnd()
	assert.True(t, all.IsResolved())
	assert.Equal(t, 1, resolutions)
	assert.Equal(t, 300*time.Millisecond, resolvedAt)
}

func TestMakeAll_TerminatedMemberIsDropped(t *testing.T) {
	loop := timer.NewLoop()
	slow := delayed(loop, 500)
	all := MakeAll(loop, []*Action{delayed(loop, 100), slow})

	loop.AdvanceBy(200 * time.Millisecond)
	require.True(t, all.IsPending())

	slow.Terminate()
	assert.True(t, all.IsResolved(), "remaining members already resolved")
}

func TestMakeAll_FiltersAlreadyTerminated(t *testing.T) {
	loop := timer.NewLoop()
	dead := delayed(loop, 100)
	dead.Terminate()

	all := MakeAll(loop, []*Action{dead})
	assert.True(t, all.IsResolved())
}

func TestMakeAll_Empty(t *testing.T) {
	loop := timer.NewLoop()
	assert.True(t, MakeAll(loop, nil).IsResolved())
	assert.True(t, MakeAny(loop, []*Action{}).IsResolved())
}

func TestMakeAll_TerminateTerminatesMembers(t *testing.T) {
	loop := timer.NewLoop()
	m1, m2 := delayed(loop, 100), delayed(loop, 200)
	all := MakeAll(loop, []*Action{m1, m2})

	all.Terminate()
	assert.True(t, m1.IsTerminated())
	assert.True(t, m2.IsTerminated())
	assert.True(t, all.IsTerminated())
	assert.Equal(t, 0, loop.Size())
}

func TestMakeAny_FirstWinsAndOthersTerminateInSameStep(t *testing.T) {
	loop := timer.NewLoop()
	fast, mid, slow := delayed(loop, 100), delayed(loop, 200), delayed(loop, 300)
	anyOf := MakeAny(loop, []*Action{slow, fast, mid})

	var seenAtResolve []State
	anyOf.Then(func(*Action) {
		seenAtResolve = []State{mid.State(), slow.State()}
	})

	// fast resolves at 100; its then callback runs on the zero-delay tick.
	loop.AdvanceBy(100 * time.Millisecond)

	assert.True(t, fast.IsResolved())
	assert.True(t, mid.IsTerminated())
	assert.True(t, slow.IsTerminated())
	assert.True(t, anyOf.IsResolved())

	loop.AdvanceToEnd()
	assert.Equal(t, []State{Terminated, Terminated}, seenAtResolve)
}

func TestMakeAny_TerminateTerminatesAll(t *testing.T) {
	loop := timer.NewLoop()
	m1, m2 := delayed(loop, 100), delayed(loop, 200)
	anyOf := MakeAny(loop, []*Action{m1, m2})

	anyOf.Terminate()
	assert.True(t, m1.IsTerminated())
	assert.True(t, m2.IsTerminated())
}

func TestMakeAny_AllMembersTerminatedIndependently(t *testing.T) {
	loop := timer.NewLoop()
	m1, m2 := delayed(loop, 100), delayed(loop, 200)
	anyOf := MakeAny(loop, []*Action{m1, m2})

	m1.Terminate()
	assert.True(t, anyOf.IsPending())
	m2.Terminate()
	assert.True(t, anyOf.IsResolved())
}

func TestWrapWithCallback_AlreadyFinished(t *testing.T) {
	loop := timer.NewLoop()
	inner := Make(loop, nil)

	var got []bool
	out := WrapWithCallback(loop, inner, func(resolved bool, a *Action) {
		assert.Same(t, inner, a)
		got = append(got, resolved)
	})

	assert.Same(t, inner, out)
	assert.Equal(t, []bool{true}, got)

	dead := delayed(loop, 10)
	dead.Terminate()
	out = WrapWithCallback(loop, dead, func(resolved bool, _ *Action) { got = append(got, resolved) })
	assert.Same(t, dead, out)
	assert.Equal(t, []bool{true, false}, got)
}

func TestWrapWithCallback_Resolves(t *testing.T) {
	loop := timer.NewLoop()
	inner := delayed(loop, 100)

	var got []bool
	wrapped := WrapWithCallback(loop, inner, func(resolved bool, _ *Action) { got = append(got, resolved) })
	require.NotSame(t, inner, wrapped)

	loop.AdvanceToEnd()
	assert.True(t, wrapped.IsResolved())
	assert.Equal(t, []bool{true}, got)
}

func TestWrapWithCallback_Terminate(t *testing.T) {
	loop := timer.NewLoop()
	inner := delayed(loop, 100)

	var got []bool
	wrapped := WrapWithCallback(loop, inner, func(resolved bool, _ *Action) { got = append(got, resolved) })
	wrapped.Terminate()

	assert.True(t, inner.IsTerminated())
	assert.Equal(t, []bool{false}, got)

	loop.AdvanceToEnd()
	assert.Equal(t, []bool{false}, got)
}

func TestWrapWithCallback_InnerTerminatedElsewhere(t *testing.T) {
	loop := timer.NewLoop()
	inner := delayed(loop, 100)

	var got []bool
	wrapped := WrapWithCallback(loop, inner, func(resolved bool, _ *Action) { got = append(got, resolved) })
	inner.Terminate()

	assert.True(t, wrapped.IsTerminated())
	assert.Equal(t, []bool{false}, got)
}
