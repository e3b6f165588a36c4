package asyncloop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-asyncloop/internal/clocktest"
)

func TestAsync_ResolvesWithReturnValue(t *testing.T) {
	loop := newTestLoop(t)

	p := Async(loop, func(tk *Task) (Result, error) {
		return "done", nil
	})()

	runUntil(t, loop, func() bool { return p.State() != Pending })
	require.Equal(t, Fulfilled, p.State())
	assert.Equal(t, "done", p.Value())
}

func TestAsync_RejectsWithReturnedError(t *testing.T) {
	loop := newTestLoop(t)

	p := Async(loop, func(tk *Task) (Result, error) {
		return nil, errors.New("failed")
	})()

	runUntil(t, loop, func() bool { return p.State() != Pending })
	require.Equal(t, Rejected, p.State())
}

func TestAsync_AwaitResumesWithAwaitedValue(t *testing.T) {
	loop := newTestLoop(t)
	inner, resolveInner, _ := loop.NewPromise()

	outer := Async(loop, func(tk *Task) (Result, error) {
		v, err := tk.Await(inner)
		if err != nil {
			return nil, err
		}
		return v.(int) * 2, nil
	})()

	resolveInner(21)
	runUntil(t, loop, func() bool { return outer.State() != Pending })

	require.Equal(t, Fulfilled, outer.State())
	assert.Equal(t, 42, outer.Value())
}

func TestAsync_AwaitPropagatesRejection(t *testing.T) {
	loop := newTestLoop(t)
	inner, _, rejectInner := loop.NewPromise()

	outer := Async(loop, func(tk *Task) (Result, error) {
		_, err := tk.Await(inner)
		return nil, err
	})()

	rejectInner("inner failed")
	runUntil(t, loop, func() bool { return outer.State() != Pending })

	require.Equal(t, Rejected, outer.State())
	assert.Equal(t, "asyncloop: rejected: inner failed", asError(outer.Reason()).Error())
}

func TestAsync_PanicBecomesPanicError(t *testing.T) {
	loop := newTestLoop(t)

	p := Async(loop, func(tk *Task) (Result, error) {
		panic("kaboom")
	})()

	runUntil(t, loop, func() bool { return p.State() != Pending })
	require.Equal(t, Rejected, p.State())
	var panicErr *PanicError
	require.True(t, errors.As(asError(p.Reason()), &panicErr))
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestAsync_AwaitCancellableDelayResumesAfterFiring(t *testing.T) {
	fake := clocktest.New(time.Unix(0, 0))
	loop := newTestLoop(t, WithClock(fake))

	outer := Async(loop, func(tk *Task) (Result, error) {
		return tk.Await(Delay(loop, 10*time.Millisecond))
	})()

	go func() {
		time.Sleep(5 * time.Millisecond)
		fake.Advance(20 * time.Millisecond)
	}()

	runUntil(t, loop, func() bool { return outer.State() != Pending })
	require.Equal(t, Fulfilled, outer.State())
}

func TestAwait_OutsideCoroutineReturnsNotInCoroutineError(t *testing.T) {
	var tk *Task
	_, err := tk.Await(nil)
	var notInCoro *NotInCoroutineError
	require.True(t, errors.As(err, &notInCoro))
}
