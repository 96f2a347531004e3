package timer

import (
	"container/heap"
	"time"
)

// Loop is a deterministic, virtual-time implementation of Timers.
//
// Time only moves when the owner calls one of the Advance methods. Timeouts
// due at the same instant fire in scheduling order. Animators are ticked
// every time the clock moves and once more when their duration elapses.
//
// Thread-safety: Loop is NOT safe for concurrent use. The runtime is
// cooperative and single-threaded; all callbacks run inside Advance calls.
type Loop struct {
	now    time.Duration
	nextID ID
	seq    uint64

	timeouts  timeoutHeap
	pending   map[ID]*timeout
	animators []*animation
}

type timeout struct {
	id    ID
	due   time.Duration
	seq   uint64
	fn    func()
	index int
}

type animation struct {
	id       ID
	start    time.Duration
	duration time.Duration
	fn       Animator
	removed  bool
}

// NewLoop creates a loop positioned at time zero.
func NewLoop() *Loop {
	return &Loop{
		pending: make(map[ID]*timeout),
	}
}

// SetTimeout implements Timers.
func (l *Loop) SetTimeout(fn func(), delay time.Duration) ID {
	if delay < 0 {
		delay = 0
	}
	l.nextID++
	l.seq++
	t := &timeout{id: l.nextID, due: l.now + delay, seq: l.seq, fn: fn}
	heap.Push(&l.timeouts, t)
	l.pending[t.id] = t
	return t.id
}

// SetAnimator implements Timers.
func (l *Loop) SetAnimator(fn Animator, duration time.Duration) ID {
	if duration < 0 {
		duration = 0
	}
	l.nextID++
	l.animators = append(l.animators, &animation{
		id:       l.nextID,
		start:    l.now,
		duration: duration,
		fn:       fn,
	})
	return l.nextID
}

// ClearTimeout implements Timers.
func (l *Loop) ClearTimeout(id ID) bool {
	if t, ok := l.pending[id]; ok {
		heap.Remove(&l.timeouts, t.index)
		delete(l.pending, id)
		return true
	}
	for i, a := range l.animators {
		if a.id == id {
			a.removed = true
			l.animators = append(l.animators[:i:i], l.animators[i+1:]...)
			return true
		}
	}
	return false
}

// CurrentTime returns the virtual time elapsed since the loop was created.
func (l *Loop) CurrentTime() time.Duration {
	return l.now
}

// Size returns the number of scheduled timeouts and running animators.
func (l *Loop) Size() int {
	return len(l.timeouts) + len(l.animators)
}

// RunPending fires everything due at the current time without moving the
// clock. Zero-delay completion callbacks are delivered this way.
func (l *Loop) RunPending() {
	l.AdvanceToTime(l.now)
}

// AdvanceBy moves the clock forward by d, firing everything due on the way.
func (l *Loop) AdvanceBy(d time.Duration) {
	l.AdvanceToTime(l.now + d)
}

// AdvanceToTime moves the clock to target, stopping at every intermediate
// deadline so callbacks observe the exact time they were scheduled for.
// A target in the past only fires what is already due.
func (l *Loop) AdvanceToTime(target time.Duration) {
	for {
		next, ok := l.nextDeadline()
		if !ok || next > target {
			break
		}
		if next > l.now {
			l.now = next
			l.tickAnimators()
		} else if l.hasExpiredAnimator() {
			l.tickAnimators()
		}
		l.runDue()
	}
	if target > l.now {
		l.now = target
		l.tickAnimators()
	}
}

// Advance moves the clock to the next deadline and fires it. It reports
// false when nothing is scheduled.
func (l *Loop) Advance() bool {
	next, ok := l.nextDeadline()
	if !ok {
		return false
	}
	l.AdvanceToTime(next)
	return true
}

// AdvanceToEnd runs the loop until nothing remains scheduled. Callbacks that
// keep rescheduling themselves forever will keep this from returning.
func (l *Loop) AdvanceToEnd() {
	for l.Advance() {
	}
}

func (l *Loop) nextDeadline() (time.Duration, bool) {
	var (
		next  time.Duration
		found bool
	)
	if len(l.timeouts) > 0 {
		next, found = l.timeouts[0].due, true
	}
	for _, a := range l.animators {
		end := a.start + a.duration
		if !found || end < next {
			next, found = end, true
		}
	}
	return next, found
}

func (l *Loop) hasExpiredAnimator() bool {
	for _, a := range l.animators {
		if a.start+a.duration <= l.now {
			return true
		}
	}
	return false
}

// tickAnimators calls every animator registered before this tick. Animators
// that reach their duration are removed before their final call.
func (l *Loop) tickAnimators() {
	snapshot := append([]*animation(nil), l.animators...)
	for _, a := range snapshot {
		if a.removed {
			continue
		}
		elapsed := l.now - a.start
		if elapsed >= a.duration {
			l.ClearTimeout(a.id)
			a.fn(a.duration)
			continue
		}
		if elapsed > 0 {
			a.fn(elapsed)
		}
	}
}

func (l *Loop) runDue() {
	for len(l.timeouts) > 0 && l.timeouts[0].due <= l.now {
		t := heap.Pop(&l.timeouts).(*timeout)
		delete(l.pending, t.id)
		t.fn()
	}
}

// timeoutHeap orders timeouts by due time, then by scheduling order.
type timeoutHeap []*timeout

func (h timeoutHeap) Len() int { return len(h) }

func (h timeoutHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}

func (h timeoutHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timeoutHeap) Push(x any) {
	t := x.(*timeout)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
