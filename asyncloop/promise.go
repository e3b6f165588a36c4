package asyncloop

import (
	"fmt"
	"runtime"
	"sync"
)

// Result is the value or reason a promise settles with (spec §3). Any type,
// mirroring the teacher's untyped Result = any.
type Result = any

// PromiseState is a promise's lifecycle stage; transitions are irreversible
// (spec §4.5).
type PromiseState int

const (
	Pending PromiseState = iota
	Fulfilled
	Rejected
)

func (s PromiseState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ResolveFunc fulfills a promise. Calling it on an already-settled promise is
// a no-op. Safe to call from any goroutine.
type ResolveFunc func(Result)

// RejectFunc rejects a promise. Calling it on an already-settled promise is
// a no-op. Safe to call from any goroutine.
type RejectFunc func(Result)

// Promise is the read-only settlement surface (spec §3).
type Promise interface {
	State() PromiseState
	// Value returns the fulfillment value, or nil if pending/rejected.
	Value() Result
	// Reason returns the rejection reason, or nil if pending/fulfilled.
	Reason() Result
	// Then appends a handler pair and returns a new downstream Promise (spec
	// §4.5). Handlers always run as microtasks on the owning Loop.
	Then(onFulfilled, onRejected func(Result) Result) *Chained
	// Catch is Then(nil, onRejected).
	Catch(onRejected func(Result) Result) *Chained
	// Finally runs onSettled regardless of outcome; its return value never
	// overrides the source's settlement unless it panics.
	Finally(onSettled func()) *Chained
}

// settleHandler is a single reaction registered via Then/Catch/Finally.
type settleHandler struct {
	onFulfilled func(Result) Result
	onRejected  func(Result) Result
	target      *Chained
}

// Chained is the concrete Promise/A+-style promise (spec §4.5), grounded on
// the teacher's ChainedPromise. Unlike the teacher (which guards every field
// with its own mutex to survive arbitrary concurrent callers), this version
// relies on the spec's single-threaded scheduling model: all state
// transitions happen on the owning Loop's goroutine. The one exception is
// resolve/reject, which off-loop producers (Promisify, timers armed from
// another goroutine) may call directly — resolve/reject marshal those hops
// onto the loop themselves, posting to the Loop if not already running on it.
type Chained struct {
	loop     *Loop
	id       uint64
	mu       sync.Mutex
	state    PromiseState
	result   Result
	handlers []settleHandler

	// creationStack records where this promise was constructed, populated
	// only when the owning Loop has WithDebugMode enabled (spec note:
	// "Promise creation stack capture in debug mode", grounded on the
	// teacher's EXPAND-039/CreationStackTrace). Helps answer "where did this
	// unhandled rejection come from?".
	creationStack []uintptr
}

var _ Promise = (*Chained)(nil)

// asChained unwraps value to its underlying *Chained if it is a promise
// (directly, or via an embedding type such as *Cancellable), so resolve's
// adoption rule (spec §4.5 "if v is a promise, adopt") isn't fooled by a
// wrapper type whose dynamic type isn't literally *Chained.
func asChained(value Result) *Chained {
	switch v := value.(type) {
	case *Chained:
		return v
	case *Cancellable:
		return v.Chained
	default:
		return nil
	}
}

// NewPromise creates a pending Chained promise bound to loop, along with its
// resolve/reject functions (spec §4.5 "new(executor(resolve, reject))" —
// callers typically wrap this with an executor that panics into reject, see
// NewPromiseWithExecutor).
func (l *Loop) NewPromise() (*Chained, ResolveFunc, RejectFunc) {
	p := &Chained{
		loop: l,
		id:   l.registry.nextID(),
	}
	if l.debug {
		pcs := make([]uintptr, 32)
		n := runtime.Callers(3, pcs)
		p.creationStack = pcs[:n]
	}
	l.registry.track(p)
	resolve := func(v Result) { p.resolve(v) }
	reject := func(r Result) { p.reject(r) }
	return p, resolve, reject
}

// NewPromiseWithExecutor runs executor synchronously, auto-rejecting the
// returned promise if it panics (spec §4.5: "Exceptions from it auto-reject").
func (l *Loop) NewPromiseWithExecutor(executor func(resolve ResolveFunc, reject RejectFunc)) *Chained {
	p, resolve, reject := l.NewPromise()
	func() {
		defer func() {
			if r := recover(); r != nil {
				reject(&PanicError{Value: r})
			}
		}()
		executor(resolve, reject)
	}()
	return p
}

// Resolved returns an already-fulfilled promise, grounded on the teacher's
// convenience constructors used throughout its combinators/tests.
func (l *Loop) Resolved(v Result) *Chained {
	p, resolve, _ := l.NewPromise()
	resolve(v)
	return p
}

// Rejected returns an already-rejected promise.
func (l *Loop) Rejected(r Result) *Chained {
	p, _, reject := l.NewPromise()
	reject(r)
	return p
}

func (p *Chained) State() PromiseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Chained) Value() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Fulfilled {
		return p.result
	}
	return nil
}

func (p *Chained) Reason() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Rejected {
		return p.result
	}
	return nil
}

// CreationStackTrace formats where this promise was constructed, one frame
// per line as "package.function (file:line)". Returns "" unless the owning
// Loop had WithDebugMode enabled when this promise was created.
func (p *Chained) CreationStackTrace() string {
	if len(p.creationStack) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(p.creationStack)
	var out string
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			if out != "" {
				out += "\n"
			}
			out += fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return out
}

// Then implements spec §4.5 then/2: appends a handler and returns the
// downstream promise, scheduling immediately via microtask if p is already
// settled.
func (p *Chained) Then(onFulfilled, onRejected func(Result) Result) *Chained {
	target, _, _ := p.loop.NewPromise()
	p.addHandler(settleHandler{onFulfilled: onFulfilled, onRejected: onRejected, target: target})
	return target
}

func (p *Chained) Catch(onRejected func(Result) Result) *Chained {
	return p.Then(nil, onRejected)
}

// Finally runs onSettled for effect only; its return value is discarded
// unless it panics, in which case the panic becomes the downstream's
// rejection reason (spec §4.5).
func (p *Chained) Finally(onSettled func()) *Chained {
	wrap := func(v Result) Result {
		onSettled()
		return v
	}
	wrapReject := func(r Result) Result {
		onSettled()
		panic(&chainedRethrow{reason: r})
	}
	target, _, _ := p.loop.NewPromise()
	p.addHandler(settleHandler{
		onFulfilled: wrap,
		onRejected: func(r Result) Result {
			defer func() {
				if rec := recover(); rec != nil {
					if rt, ok := rec.(*chainedRethrow); ok {
						target.reject(rt.reason)
						return
					}
					panic(rec)
				}
			}()
			return wrapReject(r)
		},
		target: target,
	})
	return target
}

// chainedRethrow lets Finally's onRejected wrapper propagate the original
// rejection reason through executeHandler's generic panic->reject path
// without it being mistaken for a handler-thrown value.
type chainedRethrow struct{ reason Result }

// addHandler registers h, running it immediately (as a microtask) if
// already settled, per spec §4.5.
func (p *Chained) addHandler(h settleHandler) {
	p.mu.Lock()
	state := p.state
	result := p.result
	if state == Pending {
		p.handlers = append(p.handlers, h)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	if state == Rejected && h.onRejected != nil {
		p.loop.registry.markObserved(p.id)
	}
	p.scheduleHandler(h, state, result)
}

func (p *Chained) scheduleHandler(h settleHandler, state PromiseState, result Result) {
	p.loop.PostMicrotask(func() {
		p.executeHandler(h, state, result)
	})
}

func (p *Chained) executeHandler(h settleHandler, state PromiseState, result Result) {
	var fn func(Result) Result
	if state == Fulfilled {
		fn = h.onFulfilled
	} else {
		fn = h.onRejected
	}
	if fn == nil {
		if h.target == nil {
			return
		}
		if state == Fulfilled {
			h.target.resolve(result)
		} else {
			h.target.reject(result)
		}
		return
	}
	defer func() {
		if r := recover(); r != nil {
			if h.target != nil {
				h.target.reject(&PanicError{Value: r})
			}
		}
	}()
	res := fn(result)
	if h.target != nil {
		h.target.resolve(res)
	}
}

// resolve implements spec §4.5 resolve/1, including adoption (§4.5 "if v is
// a promise, adopt") and chaining-cycle rejection.
//
// resolve/reject are the only Chained methods an off-loop goroutine may call
// directly (Promisify, a timer callback armed from elsewhere) — everything
// they touch past this point (handlers slice, microtask queue) is owned by
// the loop goroutine, so a call arriving from any other goroutine is
// trampolined via Post before doing anything else.
func (p *Chained) resolve(value Result) {
	if !p.loop.isLoopThread() {
		p.loop.Post(func() { p.resolve(value) })
		return
	}
	if v := asChained(value); v != nil {
		if v == p {
			p.reject(&TypeError{Message: fmt.Sprintf("chaining cycle detected for promise #%d", p.id)})
			return
		}
		v.addHandler(settleHandler{target: p})
		return
	}

	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	handlers := p.handlers
	p.handlers = nil
	p.state = Fulfilled
	p.result = value
	p.mu.Unlock()

	for _, h := range handlers {
		p.scheduleHandler(h, Fulfilled, value)
	}
}

// reject implements spec §4.5 reject/1.
func (p *Chained) reject(reason Result) {
	if !p.loop.isLoopThread() {
		p.loop.Post(func() { p.reject(reason) })
		return
	}
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	handlers := p.handlers
	p.handlers = nil
	p.state = Rejected
	p.result = reason
	p.mu.Unlock()

	hadObserver := false
	for _, h := range handlers {
		if h.onRejected != nil {
			hadObserver = true
		}
		p.scheduleHandler(h, Rejected, reason)
	}

	if hadObserver {
		p.loop.registry.markObserved(p.id)
	} else {
		p.loop.registry.markRejected(p.id, reason)
	}
}
