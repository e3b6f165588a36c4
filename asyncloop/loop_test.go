package asyncloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_ComputeMaxWaitMSIsZeroWhenExternalPendingEvenWithFutureTimer(t *testing.T) {
	loop := newTestLoop(t)
	loop.AddTimer(time.Hour, func() {})
	loop.ExternalPendingInc()
	defer loop.ExternalPendingDec()

	assert.Equal(t, 0, loop.computeMaxWaitMS())
}

func TestLoop_RunTerminatesWhenRootDoneAndIdle(t *testing.T) {
	loop := newTestLoop(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := loop.Run(ctx, func() bool { return true })
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, loop.State())
}

func TestLoop_ReentrantRunReturnsError(t *testing.T) {
	loop := newTestLoop(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var innerErr error
	loop.Post(func() {
		innerErr = loop.Run(context.Background(), func() bool { return true })
	})

	err := loop.Run(ctx, func() bool { return innerErr != nil })
	require.NoError(t, err)
	assert.ErrorIs(t, innerErr, ErrReentrantRun)
}

func TestLoop_SecondConcurrentRunReturnsAlreadyRunning(t *testing.T) {
	loop := newTestLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(ctx, func() bool { return false }) }()

	// Give the first Run a moment to leave StateAwake. While it waits in the
	// poller it reports StateSleeping rather than StateRunning.
	deadline := time.Now().Add(time.Second)
	for loop.State() == StateAwake && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Contains(t, []LoopState{StateRunning, StateSleeping}, loop.State())

	err := loop.Run(context.Background(), func() bool { return true })
	assert.ErrorIs(t, err, ErrLoopAlreadyRunning)

	cancel()
	<-runDone
}

func TestLoop_CloseTerminatesFromAnyGoroutine(t *testing.T) {
	loop := newTestLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(ctx, func() bool { return false }) }()

	deadline := time.Now().Add(time.Second)
	for loop.State() != StateRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, loop.Close())

	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, ErrLoopTerminated)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.Equal(t, StateTerminated, loop.State())
}
