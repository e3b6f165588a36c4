package asyncloop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_ResolvesWithPositionalValues(t *testing.T) {
	loop := newTestLoop(t)
	p1, r1, _ := loop.NewPromise()
	p2, r2, _ := loop.NewPromise()

	combined := All(loop, p1, p2)
	r2(2)
	r1(1)

	runUntil(t, loop, func() bool { return combined.State() != Pending })

	require.Equal(t, Fulfilled, combined.State())
	assert.Equal(t, []Result{1, 2}, combined.Value())
}

func TestAll_EmptyInputResolvesImmediately(t *testing.T) {
	loop := newTestLoop(t)
	combined := All(loop)
	runUntil(t, loop, func() bool { return combined.State() != Pending })
	assert.Equal(t, []Result{}, combined.Value())
}

func TestAll_RejectsOnFirstRejection(t *testing.T) {
	loop := newTestLoop(t)
	p1, _, reject1 := loop.NewPromise()
	p2, resolve2, _ := loop.NewPromise()

	combined := All(loop, p1, p2)
	reject1("bad")
	resolve2("ok")

	runUntil(t, loop, func() bool { return combined.State() != Pending })
	require.Equal(t, Rejected, combined.State())
	assert.Equal(t, "bad", combined.Reason())
}

func TestAllKeyed_PreservesKeys(t *testing.T) {
	loop := newTestLoop(t)
	p1, r1, _ := loop.NewPromise()
	p2, r2, _ := loop.NewPromise()

	combined := AllKeyed(loop, map[string]any{"a": p1, "b": p2})
	r1("A")
	r2("B")

	runUntil(t, loop, func() bool { return combined.State() != Pending })
	assert.Equal(t, map[string]Result{"a": "A", "b": "B"}, combined.Value())
}

func TestAllSettled_NeverRejects(t *testing.T) {
	loop := newTestLoop(t)
	p1, _, reject1 := loop.NewPromise()
	p2, resolve2, _ := loop.NewPromise()

	combined := AllSettled(loop, p1, p2)
	reject1("bad")
	resolve2("ok")

	runUntil(t, loop, func() bool { return combined.State() != Pending })
	require.Equal(t, Fulfilled, combined.State())
	outcomes := combined.Value().([]Outcome)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "rejected", outcomes[0].Status)
	assert.Equal(t, "bad", outcomes[0].Reason)
	assert.Equal(t, "fulfilled", outcomes[1].Status)
	assert.Equal(t, "ok", outcomes[1].Value)
}

func TestRace_SettlesWithFirstAndCancelsRest(t *testing.T) {
	loop := newTestLoop(t)
	winner, resolveWinner, _ := loop.NewCancellable()
	loser, _, _ := loop.NewCancellable()

	var loserCancelled bool
	loser.SetCancelHandler(func() { loserCancelled = true })

	raced := Race(loop, winner, loser)
	resolveWinner("first")

	runUntil(t, loop, func() bool { return raced.State() != Pending })

	require.Equal(t, Fulfilled, raced.State())
	assert.Equal(t, "first", raced.Value())
	assert.True(t, loserCancelled)
}

func TestRace_EmptyInputRejectsWithNoPromisesError(t *testing.T) {
	loop := newTestLoop(t)
	raced := Race(loop)
	runUntil(t, loop, func() bool { return raced.State() != Pending })

	var noPromises *NoPromisesError
	require.True(t, errors.As(asError(raced.Reason()), &noPromises))
}

func TestAny_ResolvesWithFirstFulfillment(t *testing.T) {
	loop := newTestLoop(t)
	p1, _, reject1 := loop.NewPromise()
	p2, resolve2, _ := loop.NewPromise()

	combined := Any(loop, p1, p2)
	reject1("nope")
	resolve2("yes")

	runUntil(t, loop, func() bool { return combined.State() != Pending })
	require.Equal(t, Fulfilled, combined.State())
	assert.Equal(t, "yes", combined.Value())
}

func TestAny_AllRejectedProducesAggregateError(t *testing.T) {
	loop := newTestLoop(t)
	p1, _, reject1 := loop.NewPromise()
	p2, _, reject2 := loop.NewPromise()

	combined := Any(loop, p1, p2)
	reject1(errors.New("first"))
	reject2(errors.New("second"))

	runUntil(t, loop, func() bool { return combined.State() != Pending })
	require.Equal(t, Rejected, combined.State())
	var agg *AggregateError
	require.True(t, errors.As(asError(combined.Reason()), &agg))
	assert.Len(t, agg.Errors, 2)
}

func TestDelay_ResolvesAfterClockAdvances(t *testing.T) {
	loop := newTestLoop(t)
	delayed := Delay(loop, 10*time.Millisecond)
	runUntil(t, loop, func() bool { return delayed.State() != Pending })
	assert.Equal(t, Fulfilled, delayed.State())
}

func TestTimeout_RejectsWithTimeoutErrorWhenOpNeverSettles(t *testing.T) {
	loop := newTestLoop(t)
	neverSettles, _, _ := loop.NewPromise()
	timedOut := Timeout(loop, neverSettles, 10*time.Millisecond)

	runUntil(t, loop, func() bool { return timedOut.State() != Pending })

	require.Equal(t, Rejected, timedOut.State())
	var timeoutErr *TimeoutError
	require.True(t, errors.As(asError(timedOut.Reason()), &timeoutErr))
}

func TestTimeout_ResolvesWhenOpWinsTheRace(t *testing.T) {
	loop := newTestLoop(t)
	op, resolveOp, _ := loop.NewPromise()
	timedOut := Timeout(loop, op, time.Hour)

	resolveOp("fast enough")
	runUntil(t, loop, func() bool { return timedOut.State() != Pending })

	require.Equal(t, Fulfilled, timedOut.State())
	assert.Equal(t, "fast enough", timedOut.Value())
}

func TestTimeout_NonPositiveDurationRejectsImmediately(t *testing.T) {
	loop := newTestLoop(t)
	op, _, _ := loop.NewPromise()
	timedOut := Timeout(loop, op, 0)

	runUntil(t, loop, func() bool { return timedOut.State() != Pending })
	var invalidArg *InvalidArgumentError
	require.True(t, errors.As(asError(timedOut.Reason()), &invalidArg))
}
