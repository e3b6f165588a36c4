package asyncloop

import (
	"github.com/dispatchrun/coroutine"
)

// TaskState is a coroutine's lifecycle stage (spec §3).
type TaskState int

const (
	NotStarted TaskState = iota
	Running
	Suspended
	Terminated
)

func (s TaskState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SuspendReason records why a Task is currently suspended (spec §3).
type SuspendReason interface{ suspendReason() }

// AwaitingPromise is the reason recorded while a Task's coroutine is
// suspended inside Await, waiting for p to settle.
type AwaitingPromise struct{ Promise Promise }

func (AwaitingPromise) suspendReason() {}

// AwaitingTimer is the reason recorded while suspended on a scheduled timer.
type AwaitingTimer struct{ ID TimerID }

func (AwaitingTimer) suspendReason() {}

// AwaitingIO is the reason recorded while suspended on I/O readiness.
type AwaitingIO struct {
	FD   int
	Kind IOEvents
}

func (AwaitingIO) suspendReason() {}

// Yielded is the reason recorded after an explicit cooperative Yield call
// with no associated wait condition.
type Yielded struct{}

func (Yielded) suspendReason() {}

// coroYield is both the coroutine's suspension payload and its final return
// value — github.com/dispatchrun/coroutine.Coroutine[Y, S] uses one type Y
// for whatever Recv/Result returns, so the two cases are distinguished by
// whether coro.Next() returns false (see stepTask) rather than by
// coroYield's own shape.
type coroYield struct {
	reason SuspendReason // meaningful only while suspended
	value  Result        // meaningful only once the coroutine has returned
	err    error
}

// coroResume is the value sent back into a suspended coroutine to settle the
// Await call it is parked in.
type coroResume struct {
	value Result
	err   error
}

type dispatchCoroutine = coroutine.Coroutine[coroYield, coroResume]

// Task pairs a stackful coroutine with the Promise it settles when the
// coroutine returns or panics (spec §3 "Task (coroutine)").
//
// Grounded on the dispatchrun-dispatch-go example's Coroutine[Response,
// Request] usage (Send/Next/Recv/Result/Stop/Context) — the
// github.com/dispatchrun/coroutine package itself isn't vendored into the
// retrieval pack, so this bridge's exact method signatures are inferred from
// that call-site usage rather than from the library's own source.
type Task struct {
	loop   *Loop
	coro   dispatchCoroutine
	state  TaskState
	reason SuspendReason

	promise *Chained
	resolve ResolveFunc
	reject  RejectFunc
}

// Async wraps fn as a coroutine factory (spec §4.7 "async(fn) -> (args ->
// Promise)"). Calling the returned function spawns a new Task whose body is
// `try { resolve(fn(t)) } catch e { reject(e) }` and enqueues it on loop.
// fn receives its own Task so it can call Await.
func Async(loop *Loop, fn func(t *Task) (Result, error)) func() *Chained {
	return func() *Chained {
		p, resolve, reject := loop.NewPromise()
		t := &Task{loop: loop, promise: p, resolve: resolve, reject: reject, state: NotStarted}
		t.coro = coroutine.NewWithReturn[coroYield, coroResume](func() coroYield {
			defer func() {
				if r := recover(); r != nil {
					panic(&taskPanic{value: r})
				}
			}()
			v, err := fn(t)
			return coroYield{value: v, err: err}
		})
		loop.Post(func() { loop.stepTask(t, coroResume{}) })
		return p
	}
}

// taskPanic lets a panicking task body unwind through the coroutine runtime
// and be recovered once in stepTask, rather than being recovered (and thus
// silenced) inside the coroutine's own entrypoint closure.
type taskPanic struct{ value any }

// Await suspends the calling coroutine until p settles (spec §4.7). It must
// only be called from inside the body passed to Async — t is the *Task that
// body received as its argument. Calling Await with a nil Task (i.e. from
// outside any coroutine) is the NotInCoroutineError precondition failure.
func (t *Task) Await(p Promise) (Result, error) {
	if t == nil {
		return nil, &NotInCoroutineError{}
	}
	p.Then(
		func(v Result) Result {
			t.loop.resumeTask(t, coroResume{value: v})
			return nil
		},
		func(r Result) Result {
			t.loop.resumeTask(t, coroResume{err: asError(r)})
			return nil
		},
	)

	t.state = Suspended
	t.reason = AwaitingPromise{Promise: p}
	rv := coroutine.Yield[coroYield, coroResume](coroYield{reason: t.reason})
	t.state = Running
	return rv.value, rv.err
}

// resumeTask schedules stepTask as a further microtask rather than calling it
// inline. It is called from Await's settlement handlers, which always run as
// microtasks on the loop goroutine (resolve/reject first trampoline any
// off-loop call, e.g. from Promisify, onto the loop).
func (l *Loop) resumeTask(t *Task, rv coroResume) {
	l.PostMicrotask(func() { l.stepTask(t, rv) })
}

// stepTask resumes t's coroutine with rv and reacts to whatever it does
// next: returns (settling t.promise), or suspends again (reason recorded on
// t, continuation already armed by Await before yielding).
func (l *Loop) stepTask(t *Task, rv coroResume) {
	t.state = Running
	defer func() {
		if r := recover(); r != nil {
			if tp, ok := r.(*taskPanic); ok {
				t.state = Terminated
				t.reject(&PanicError{Value: tp.value})
				return
			}
			panic(r)
		}
	}()

	t.coro.Send(rv)
	if !t.coro.Next() {
		t.state = Terminated
		final := t.coro.Result()
		if final.err != nil {
			t.reject(asError(final.err))
		} else {
			t.resolve(final.value)
		}
		return
	}
	y := t.coro.Recv()
	t.state = Suspended
	t.reason = y.reason
}
