package asyncloop

import (
	"sync"
	"weak"
)

// RejectionHandler is invoked once per promise whose rejection was never
// observed by a Catch/Then(.., onRejected) handler before it was garbage
// collected (spec §3 invariant iv, §6 design note: "the runtime emits an
// unhandled-rejection diagnostic when the promise is destroyed").
type RejectionHandler func(reason Result)

// promiseRegistry tracks live promises via weak pointers so memory isn't
// held just for bookkeeping, and separately remembers rejections that have
// not yet been observed by a handler, so it can report them once the
// promise itself becomes unreachable.
//
// Grounded on the teacher's registry.go (weak-pointer map + ring-buffer
// scavenging for GC-driven cleanup), adapted to also serve as the backing
// store for unhandled-rejection detection: the teacher instead uses a
// microtask-scheduled, channel-synchronized heuristic (trackRejection /
// checkUnhandledRejections in promise.go) that reports a rejection if no
// handler attaches within one microtask turn plus a 10ms grace window. This
// version follows spec.md's literal wording instead ("reported once when
// the promise is reclaimed") and defers the report until scavenging
// observes the promise's weak pointer has gone nil.
type promiseRegistry struct {
	mu       sync.Mutex
	data     map[uint64]weak.Pointer[Chained]
	ring     []uint64
	head     int
	nextIDCt uint64

	unhandled map[uint64]Result
	onUnhandled RejectionHandler
}

func newPromiseRegistry() *promiseRegistry {
	return &promiseRegistry{
		data:      make(map[uint64]weak.Pointer[Chained]),
		ring:      make([]uint64, 0, 256),
		nextIDCt:  1,
		unhandled: make(map[uint64]Result),
	}
}

func (r *promiseRegistry) nextID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextIDCt
	r.nextIDCt++
	return id
}

func (r *promiseRegistry) track(p *Chained) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[p.id] = weak.Make(p)
	r.ring = append(r.ring, p.id)
}

// markRejected records a rejection with no handler observed yet.
func (r *promiseRegistry) markRejected(id uint64, reason Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unhandled[id] = reason
}

// markObserved removes id from the unhandled set, because a handler was
// attached (even after settlement, per spec §4.5 "If source is already
// settled, schedules a micro-task to invoke the handler").
func (r *promiseRegistry) markObserved(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.unhandled, id)
}

// scavenge walks up to batchSize ring entries, releasing bookkeeping for
// promises the GC has already reclaimed and reporting any that were still
// unhandled-rejected when collected.
func (r *promiseRegistry) scavenge(batchSize int) {
	if batchSize <= 0 {
		return
	}
	r.mu.Lock()
	n := len(r.ring)
	if n == 0 {
		r.mu.Unlock()
		return
	}
	start := r.head
	end := start + batchSize
	if end > n {
		end = n
	}
	type item struct {
		id  uint64
		idx int
	}
	batch := make([]item, 0, end-start)
	for i := start; i < end; i++ {
		if id := r.ring[i]; id != 0 {
			batch = append(batch, item{id, i})
		}
	}
	wps := make([]weak.Pointer[Chained], len(batch))
	for i, it := range batch {
		wps[i] = r.data[it.id]
	}
	nextHead := end
	if nextHead >= n {
		nextHead = 0
	}
	cycleCompleted := nextHead == 0
	r.mu.Unlock()

	var toReport []struct {
		id     uint64
		reason Result
	}
	var toDelete []item

	for i, it := range batch {
		if wps[i].Value() != nil {
			continue
		}
		toDelete = append(toDelete, it)
	}

	r.mu.Lock()
	for _, it := range toDelete {
		delete(r.data, it.id)
		if it.idx < len(r.ring) && r.ring[it.idx] == it.id {
			r.ring[it.idx] = 0
		}
		if reason, ok := r.unhandled[it.id]; ok {
			toReport = append(toReport, struct {
				id     uint64
				reason Result
			}{it.id, reason})
			delete(r.unhandled, it.id)
		}
	}
	r.head = nextHead
	if cycleCompleted {
		active, capacity := len(r.data), len(r.ring)
		if capacity > 256 && float64(active) < float64(capacity)*0.25 {
			r.compactAndRenewLocked()
		}
	}
	handler := r.onUnhandled
	r.mu.Unlock()

	if handler != nil {
		for _, rep := range toReport {
			handler(rep.reason)
		}
	}
}

// compactAndRenewLocked must be called with r.mu held.
func (r *promiseRegistry) compactAndRenewLocked() {
	newRing := make([]uint64, 0, len(r.data))
	newData := make(map[uint64]weak.Pointer[Chained], len(r.data))
	for _, id := range r.ring {
		if id == 0 {
			continue
		}
		if wp, ok := r.data[id]; ok {
			newRing = append(newRing, id)
			newData[id] = wp
		}
	}
	r.ring = newRing
	r.data = newData
	r.head = 0
}

// rejectAll settles every still-pending tracked promise with err, used when
// the owning Loop terminates with work outstanding.
func (r *promiseRegistry) rejectAll(err error) {
	r.mu.Lock()
	snapshot := make([]weak.Pointer[Chained], 0, len(r.data))
	for _, wp := range r.data {
		snapshot = append(snapshot, wp)
	}
	r.data = make(map[uint64]weak.Pointer[Chained])
	r.ring = r.ring[:0]
	r.head = 0
	r.mu.Unlock()

	for _, wp := range snapshot {
		if p := wp.Value(); p != nil {
			p.reject(err)
		}
	}
}
