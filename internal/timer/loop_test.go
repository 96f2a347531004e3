package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_ZeroDelayWaitsForAdvance(t *testing.T) {
	l := NewLoop()
	fired := false
	l.SetTimeout(func() { fired = true }, 0)

	assert.False(t, fired, "zero-delay timeout must not run synchronously")
	assert.Equal(t, 1, l.Size())

	l.RunPending()
	assert.True(t, fired)
	assert.Equal(t, 0, l.Size())
	assert.Equal(t, time.Duration(0), l.CurrentTime())
}

func TestLoop_FiresInDueThenScheduleOrder(t *testing.T) {
	l := NewLoop()
	var order []string
	l.SetTimeout(func() { order = append(order, "b@200") }, 200*time.Millisecond)
	l.SetTimeout(func() { order = append(order, "a@100") }, 100*time.Millisecond)
	l.SetTimeout(func() { order = append(order, "c@100") }, 100*time.Millisecond)

	l.AdvanceToEnd()

	assert.Equal(t, []string{"a@100", "c@100", "b@200"}, order)
	assert.Equal(t, 200*time.Millisecond, l.CurrentTime())
}

func TestLoop_CallbackObservesScheduledTime(t *testing.T) {
	l := NewLoop()
	var at time.Duration
	l.SetTimeout(func() { at = l.CurrentTime() }, 250*time.Millisecond)

	l.AdvanceBy(time.Second)

	assert.Equal(t, 250*time.Millisecond, at)
	assert.Equal(t, time.Second, l.CurrentTime())
}

func TestLoop_NestedScheduling(t *testing.T) {
	l := NewLoop()
	var times []time.Duration
	l.SetTimeout(func() {
		times = append(times, l.CurrentTime())
		l.SetTimeout(func() { times = append(times, l.CurrentTime()) }, 50*time.Millisecond)
	}, 100*time.Millisecond)

	l.AdvanceBy(200 * time.Millisecond)

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 150 * time.Millisecond}, times)
}

func TestLoop_ClearTimeout(t *testing.T) {
	l := NewLoop()
	fired := false
	id := l.SetTimeout(func() { fired = true }, 10*time.Millisecond)

	assert.True(t, l.ClearTimeout(id))
	assert.False(t, l.ClearTimeout(id), "second clear reports nothing removed")

	l.AdvanceToEnd()
	assert.False(t, fired)
	assert.False(t, l.ClearTimeout(ID(9999)))
}

func TestLoop_Animator(t *testing.T) {
	l := NewLoop()
	var ticks []time.Duration
	l.SetAnimator(func(elapsed time.Duration) { ticks = append(ticks, elapsed) }, 100*time.Millisecond)

	l.AdvanceBy(30 * time.Millisecond)
	l.AdvanceBy(30 * time.Millisecond)
	l.AdvanceBy(100 * time.Millisecond)

	require.Len(t, ticks, 3)
	assert.Equal(t, 30*time.Millisecond, ticks[0])
	assert.Equal(t, 60*time.Millisecond, ticks[1])
	assert.Equal(t, 100*time.Millisecond, ticks[2], "final tick lands exactly on the duration")
	assert.Equal(t, 0, l.Size())
}

func TestLoop_AnimatorCleared(t *testing.T) {
	l := NewLoop()
	calls := 0
	id := l.SetAnimator(func(time.Duration) { calls++ }, 100*time.Millisecond)

	l.AdvanceBy(10 * time.Millisecond)
	require.True(t, l.ClearTimeout(id))
	l.AdvanceBy(200 * time.Millisecond)

	assert.Equal(t, 1, calls)
}

func TestLoop_ZeroDurationAnimator(t *testing.T) {
	l := NewLoop()
	var got []time.Duration
	l.SetAnimator(func(elapsed time.Duration) { got = append(got, elapsed) }, 0)

	l.RunPending()

	assert.Equal(t, []time.Duration{0}, got)
	assert.Equal(t, 0, l.Size())
}

func TestLoop_AdvanceReportsIdle(t *testing.T) {
	l := NewLoop()
	assert.False(t, l.Advance())

	l.SetTimeout(func() {}, 5*time.Millisecond)
	assert.True(t, l.Advance())
	assert.Equal(t, 5*time.Millisecond, l.CurrentTime())
	assert.False(t, l.Advance())
}
