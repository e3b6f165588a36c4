package asyncloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicState_TryTransitionSucceedsOnMatchingFrom(t *testing.T) {
	s := newAtomicState(StateAwake)
	assert.True(t, s.TryTransition(StateAwake, StateRunning))
	assert.Equal(t, StateRunning, s.Load())
}

func TestAtomicState_TryTransitionFailsOnMismatchedFrom(t *testing.T) {
	s := newAtomicState(StateRunning)
	assert.False(t, s.TryTransition(StateAwake, StateTerminated))
	assert.Equal(t, StateRunning, s.Load())
}

func TestLoopState_StringNamesEveryState(t *testing.T) {
	cases := map[LoopState]string{
		StateAwake:       "Awake",
		StateRunning:     "Running",
		StateSleeping:    "Sleeping",
		StateTerminating: "Terminating",
		StateTerminated:  "Terminated",
		LoopState(99):    "Unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
