package asyncloop

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_TrackThenScavengeDropsReclaimedEntries(t *testing.T) {
	reg := newPromiseRegistry()
	loop := newTestLoop(t)

	func() {
		p, _, _ := loop.NewPromise()
		reg.track(p)
		require.Len(t, reg.data, 1)
	}()

	runtime.GC()
	reg.scavenge(10)

	assert.Empty(t, reg.data)
}

func TestRegistry_CompactAndRenewShrinksRingAfterFullCycle(t *testing.T) {
	reg := newPromiseRegistry()
	loop := newTestLoop(t)

	const n = 300
	for i := 0; i < n; i++ {
		p, _, _ := loop.NewPromise()
		reg.track(p)
	}
	runtime.GC()

	for processed := 0; processed < n; processed += 10 {
		reg.scavenge(10)
	}

	assert.Less(t, len(reg.ring), n)
	assert.Empty(t, reg.data)
}

func TestRegistry_RejectAllSettlesOutstandingPromises(t *testing.T) {
	reg := newPromiseRegistry()
	loop := newTestLoop(t)
	loop.loopGoroutine.Store(goroutineID())
	defer loop.loopGoroutine.Store(0)

	p, _, _ := loop.NewPromise()
	reg.track(p)

	reg.rejectAll(ErrLoopTerminated)

	assert.Equal(t, Rejected, p.State())
	assert.ErrorIs(t, asError(p.Reason()), ErrLoopTerminated)
	assert.Empty(t, reg.data)
}
