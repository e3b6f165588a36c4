package asyncloop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancellable_CancelRejectsWithCancellationError(t *testing.T) {
	loop := newTestLoop(t)
	c, _, _ := loop.NewCancellable()

	var hookRan bool
	c.SetCancelHandler(func() { hookRan = true })

	c.Cancel()
	runUntil(t, loop, func() bool { return c.State() != Pending })

	assert.True(t, hookRan)
	require.Equal(t, Rejected, c.State())
	var cancelErr *CancellationError
	require.True(t, errors.As(asError(c.Reason()), &cancelErr))
}

func TestCancellable_CancelIsIdempotent(t *testing.T) {
	loop := newTestLoop(t)
	c, _, _ := loop.NewCancellable()

	var hookCalls int
	c.SetCancelHandler(func() { hookCalls++ })

	c.Cancel()
	c.Cancel()
	c.Cancel()
	runUntil(t, loop, func() bool { return c.State() != Pending })

	assert.Equal(t, 1, hookCalls)
}

func TestCancellable_CancelOnSettledPromiseIsNoop(t *testing.T) {
	loop := newTestLoop(t)
	c, resolve, _ := loop.NewCancellable()
	resolve("done")
	runUntil(t, loop, func() bool { return c.State() != Pending })

	var hookRan bool
	c.SetCancelHandler(func() { hookRan = true })
	c.Cancel()

	assert.False(t, hookRan)
	assert.Equal(t, Fulfilled, c.State())
}

func TestCancellable_DerivedCancelWalksToRoot(t *testing.T) {
	loop := newTestLoop(t)
	root, _, _ := loop.NewCancellable()

	var hookRan bool
	root.SetCancelHandler(func() { hookRan = true })

	derived := root.ThenCancellable(func(v Result) Result { return v }, nil)
	derived.Cancel()

	runUntil(t, loop, func() bool { return root.State() != Pending })

	assert.True(t, hookRan)
	assert.Equal(t, Rejected, root.State())
	assert.True(t, derived.Cancelled())
}
