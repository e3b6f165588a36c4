package asyncloop

import "sync/atomic"

// LoopState is the current phase of a Loop (spec §4.4, §5).
//
//	StateAwake (created, not yet running)
//	  -> StateRunning (Run called)
//	StateRunning
//	  -> StateSleeping (blocked in the poller/timer wait with no ready work)
//	  -> StateTerminating (Close called, or Run's work is exhausted)
//	StateSleeping
//	  -> StateRunning (poller/timer produced ready work)
//	  -> StateTerminating
//	StateTerminating -> StateTerminated (drain complete)
//	StateTerminated is final.
//
// Grounded on the teacher's state.go FastState; this version drops the
// cache-line padding (irrelevant for a single-threaded loop with one
// reader/writer) but keeps the atomic CAS transition discipline, since
// Close() may be called from another goroutine while Run() is executing.
type LoopState uint32

const (
	StateAwake LoopState = iota
	StateRunning
	StateSleeping
	StateTerminating
	StateTerminated
)

func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// atomicState is a small CAS-based state machine.
type atomicState struct {
	v atomic.Uint32
}

func newAtomicState(initial LoopState) *atomicState {
	s := &atomicState{}
	s.v.Store(uint32(initial))
	return s
}

func (s *atomicState) Load() LoopState { return LoopState(s.v.Load()) }

func (s *atomicState) Store(v LoopState) { s.v.Store(uint32(v)) }

// TryTransition CASes from -> to, returning whether it succeeded.
func (s *atomicState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
