package asyncloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLoopAlreadyRunning is returned by Run on a Loop already executing.
var ErrLoopAlreadyRunning = errors.New("asyncloop: loop is already running")

// Loop is the single-threaded cooperative scheduler described by spec §3/§4.4:
// ready task queue, micro-task queue, timer wheel, I/O poller and an
// external-pending counter, all driven from one goroutine.
//
// Grounded on the teacher's eventloop.Loop (loop.go), stripped of the
// fast-path/chunked-ingress/metrics machinery: this scheduler targets a
// readable, spec-accurate iteration rather than sub-microsecond dispatch.
type Loop struct {
	id uint64

	state *atomicState

	ready      *taskQueue
	microtasks *microtaskQueue
	timers     *clockWheel
	poller     poller

	externalPending atomic.Int64

	logger     *Logger
	debug      bool
	tickBudget int
	maxPollMS  int

	wakeCh   chan struct{}
	wakeOnce sync.Once

	runOnce  sync.Once
	loopDone chan struct{}

	loopGoroutine atomic.Uint64

	registry *promiseRegistry
}

var loopIDCounter atomic.Uint64

// New constructs a Loop in StateAwake. The returned Loop is not running until
// Run is called.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		id:         loopIDCounter.Add(1),
		state:      newAtomicState(StateAwake),
		ready:      newTaskQueue(),
		microtasks: newMicrotaskQueue(),
		timers:     newClockWheel(cfg.clock),
		poller:     newPoller(),
		logger:     cfg.logger,
		debug:      cfg.debug,
		tickBudget: cfg.tickBudget,
		maxPollMS:  cfg.maxPollMS,
		wakeCh:     make(chan struct{}, 1),
		loopDone:   make(chan struct{}),
		registry:   newPromiseRegistry(),
	}
	l.registry.onUnhandled = cfg.onUnhandledRejection
	if err := l.poller.Init(); err != nil {
		return nil, err
	}
	return l, nil
}

// Post enqueues a task on the ready queue. Safe to call from any goroutine.
// It also signals the loop's wake channel, which the loop checks just before
// it enters a blocking poll; a poll wait already in progress is not
// interrupted and runs until its timeout (see WithMaxPollInterval).
func (l *Loop) Post(t Task) {
	l.ready.push(t)
	l.wake()
}

// PostMicrotask enqueues a closure on the micro-task queue (spec §4.3). Must
// only be called from the loop goroutine (promise settlement, timer/IO
// callbacks, coroutine steps) — off-loop producers must use Post instead.
func (l *Loop) PostMicrotask(t Task) {
	l.microtasks.push(t)
}

// ExternalPendingInc/Dec track outstanding work the loop cannot itself see in
// its queues or timer heap — e.g. a goroutine performing a blocking call on
// the loop's behalf (Promisify) — so the idle check in spec §4.4 does not
// mistake "nothing queued yet" for "nothing left to do".
func (l *Loop) ExternalPendingInc() { l.externalPending.Add(1) }

// ExternalPendingDec releases one external-pending unit and wakes the loop,
// since its settlement may be the only thing keeping the loop from going idle.
func (l *Loop) ExternalPendingDec() {
	l.externalPending.Add(-1)
	l.wake()
}

// RegisterFD registers fd for I/O readiness notification (C2, spec §4.2).
func (l *Loop) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	return l.poller.RegisterFD(fd, events, cb)
}

// UnregisterFD removes fd's registration.
func (l *Loop) UnregisterFD(fd int) error { return l.poller.UnregisterFD(fd) }

// AddTimer schedules cb to run after delay (C1, spec §4.1).
func (l *Loop) AddTimer(delay time.Duration, cb TimerCallback) TimerID {
	id := l.timers.addTimer(delay, cb)
	l.logDebug(logTimer, "timer scheduled", func(b *logifaceBuilder) *logifaceBuilder {
		return b.Str("timer_id", itoa(uint64(id)))
	})
	return id
}

// CancelTimer cancels a previously scheduled timer.
func (l *Loop) CancelTimer(id TimerID) bool { return l.timers.cancelTimer(id) }

func (l *Loop) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

// isLoopThread reports whether the calling goroutine is the one running Run.
func (l *Loop) isLoopThread() bool {
	return l.loopGoroutine.Load() == goroutineID()
}

// Run drives the loop until rootDone reports true and the loop is idle (spec
// §4.4 Termination), or ctx is cancelled. It must not be called re-entrantly
// from the loop goroutine itself.
func (l *Loop) Run(ctx context.Context, rootDone func() bool) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}
	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	l.loopGoroutine.Store(goroutineID())
	defer l.loopGoroutine.Store(0)
	defer l.runOnce.Do(func() { close(l.loopDone) })

	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.wake()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	for {
		if err := ctx.Err(); err != nil {
			l.state.Store(StateTerminating)
			l.terminate()
			return err
		}
		if l.state.Load() == StateTerminating {
			// Close was called from another goroutine while this Run was
			// in progress; honor it rather than waiting for rootDone.
			l.terminate()
			return ErrLoopTerminated
		}
		if rootDone() && l.idle() {
			l.state.Store(StateTerminating)
			l.terminate()
			return nil
		}
		l.tick(ctx)
	}
}

// idle reports whether the loop has no remaining queued/pending work (spec
// §4.4: "micro-task queue empty AND ready queue empty AND timer heap empty
// AND external-pending counter = 0").
func (l *Loop) idle() bool {
	return l.microtasks.len() == 0 &&
		l.ready.len() == 0 &&
		l.timers.len() == 0 &&
		l.externalPending.Load() == 0
}

// tick runs one iteration of the algorithm in spec §4.4.
func (l *Loop) tick(ctx context.Context) {
	// 1. Drain the micro-task queue to completion.
	l.drainMicrotasks()

	// 2. Resume ready tasks until empty or budget exceeded.
	l.runReady()
	l.drainMicrotasks()

	// 3-4. Compute max_wait and poll.
	maxWaitMS := l.computeMaxWaitMS()
	l.pollOnce(ctx, maxWaitMS)
	l.drainMicrotasks()

	// 5. Drain expired timers and enqueue their callbacks.
	l.drainExpiredTimers()
	l.drainMicrotasks()

	l.registry.scavenge(20)
}

func (l *Loop) drainMicrotasks() {
	n := l.microtasks.drainAll(0, l.safeExecute)
	if n > 0 {
		l.logDebug(logLoop, "drained microtasks", func(b *logifaceBuilder) *logifaceBuilder {
			return b.Str("count", itoa(uint64(n)))
		})
	}
}

func (l *Loop) runReady() {
	budget := l.tickBudget
	ran := 0
	for {
		if budget > 0 && ran >= budget {
			break
		}
		jobs := l.ready.drain()
		if len(jobs) == 0 {
			break
		}
		for _, t := range jobs {
			l.safeExecute(t)
			ran++
			if budget > 0 && ran >= budget {
				return
			}
		}
	}
}

// computeMaxWaitMS implements spec §4.4 step 3:
// max_wait = min(next_timer_deadline, 0 if any external pending else infinity).
func (l *Loop) computeMaxWaitMS() int {
	now := l.timers.clock.Now()
	d, hasTimer := l.timers.nextDeadline(now)

	if l.externalPending.Load() > 0 {
		return 0
	}

	if !hasTimer {
		if l.ready.len() > 0 {
			return 0
		}
		if l.maxPollMS > 0 {
			return l.maxPollMS
		}
		return -1
	}
	ms := int(d / time.Millisecond)
	if d%time.Millisecond != 0 {
		ms++
	}
	if l.maxPollMS > 0 && ms > l.maxPollMS {
		ms = l.maxPollMS
	}
	return ms
}

func (l *Loop) pollOnce(ctx context.Context, maxWaitMS int) {
	// CAS rather than Store, so a Close that moved the state to
	// StateTerminating is not overwritten.
	if maxWaitMS != 0 && l.state.TryTransition(StateRunning, StateSleeping) {
		defer l.state.TryTransition(StateSleeping, StateRunning)
	}
	if maxWaitMS > 0 {
		select {
		case <-l.wakeCh:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
	if _, err := l.poller.PollIO(maxWaitMS); err != nil && !errors.Is(err, ErrPollerClosed) {
		l.logWarn(logPoller, "poll error", err)
	}
}

func (l *Loop) drainExpiredTimers() {
	now := l.timers.clock.Now()
	for _, cb := range l.timers.drainExpired(now) {
		cb := cb
		l.safeExecute(Task(cb))
	}
}

// safeExecute runs t, converting a panic escaping loop machinery into a fatal
// error rather than letting it silently unwind the loop goroutine (spec
// §4.4: "A panic from within loop machinery itself is fatal").
func (l *Loop) safeExecute(t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logWarn(logLoop, "panic in loop task", &PanicError{Value: r})
			panic(r)
		}
	}()
	t()
}

// terminate tears down the poller, rejects any promises still pending
// (grounded on the teacher's registry.RejectAll shutdown behavior), and
// marks the loop fully stopped.
func (l *Loop) terminate() {
	l.registry.rejectAll(ErrLoopTerminated)
	_ = l.poller.Close()
	l.state.Store(StateTerminated)
}

// Close forcibly terminates the loop from any goroutine, without waiting for
// rootDone. Safe to call multiple times.
func (l *Loop) Close() error {
	for {
		cur := l.state.Load()
		if cur == StateTerminated || cur == StateTerminating {
			return nil
		}
		if l.state.TryTransition(cur, StateTerminating) {
			if cur == StateAwake {
				l.terminate()
				return nil
			}
			l.wake()
			return nil
		}
	}
}

// State returns the loop's current phase.
func (l *Loop) State() LoopState { return l.state.Load() }
