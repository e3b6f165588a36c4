package asyncloop

import (
	"container/heap"
	"time"
)

// TimerID uniquely identifies a scheduled timer within a Loop (spec §3/§4.1).
// IDs increase monotonically within one Loop, starting at 1; separate Loops
// number their timers independently, so an ID is not unique across Loops.
type TimerID uint64

// TimerCallback is invoked when a timer fires, on the loop goroutine.
type TimerCallback func()

// timerEntry is one scheduled callback, ordered by fireAt with ties broken
// by insertion order (seq), per spec §4.1 ("Ordering: strictly by fire_at;
// ties broken by insertion order").
type timerEntry struct {
	fireAt    time.Time
	seq       uint64
	id        TimerID
	cb        TimerCallback
	cancelled bool
	index     int // heap.Interface bookkeeping
}

// timerHeap is a min-heap of pending timers, grounded on the teacher's
// loop.go timerHeap (container/heap over a slice of timer entries).
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].fireAt.Before(h[j].fireAt)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// clockWheel owns the timer heap (C1). It is not safe for concurrent use and
// has no lock of its own, and the Loop adds none around it (spec §5).
type clockWheel struct {
	heap   timerHeap
	byID   map[TimerID]*timerEntry
	nextID TimerID
	nextSeq uint64
	clock  Clock
}

func newClockWheel(clock Clock) *clockWheel {
	if clock == nil {
		clock = systemClock{}
	}
	return &clockWheel{
		byID:   make(map[TimerID]*timerEntry),
		nextID: 1,
		clock:  clock,
	}
}

// addTimer inserts (now+delay, id, callback) per spec §4.1. Non-positive
// delays fire on the next loop tick (fireAt == now).
func (c *clockWheel) addTimer(delay time.Duration, cb TimerCallback) TimerID {
	if delay < 0 {
		delay = 0
	}
	id := c.nextID
	c.nextID++
	c.nextSeq++
	e := &timerEntry{
		fireAt: c.clock.Now().Add(delay),
		seq:    c.nextSeq,
		id:     id,
		cb:     cb,
	}
	c.byID[id] = e
	heap.Push(&c.heap, e)
	return id
}

// cancelTimer marks the entry cancelled; it is lazy-removed once it reaches
// the heap root (spec §4.1).
func (c *clockWheel) cancelTimer(id TimerID) bool {
	e, ok := c.byID[id]
	if !ok || e.cancelled {
		return false
	}
	e.cancelled = true
	delete(c.byID, id)
	return true
}

// nextDeadline returns the duration until the earliest live timer, clamped
// to >= 0, or false if there are no pending timers (spec §4.1).
func (c *clockWheel) nextDeadline(now time.Time) (time.Duration, bool) {
	for c.heap.Len() > 0 {
		top := c.heap[0]
		if top.cancelled {
			heap.Pop(&c.heap)
			continue
		}
		d := top.fireAt.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// drainExpired pops and returns callbacks for entries with fireAt <= now,
// skipping cancelled entries (spec §4.1).
func (c *clockWheel) drainExpired(now time.Time) []TimerCallback {
	var due []TimerCallback
	for c.heap.Len() > 0 {
		top := c.heap[0]
		if top.cancelled {
			heap.Pop(&c.heap)
			continue
		}
		if top.fireAt.After(now) {
			break
		}
		heap.Pop(&c.heap)
		delete(c.byID, top.id)
		due = append(due, top.cb)
	}
	return due
}

// len reports the number of live (non-cancelled) timers, used by Loop.idle.
func (c *clockWheel) len() int {
	return len(c.byID)
}

// reset clears all pending timers.
func (c *clockWheel) reset() {
	c.heap = c.heap[:0]
	c.byID = make(map[TimerID]*timerEntry)
}
