package asyncloop

import "sync"

// Cancellable is a Promise augmented with a single cancel hook and
// root-ancestor cancellation propagation (spec §4.6).
//
// Root-cancellation: every Cancellable created by chaining off another
// Cancellable (via ThenCancellable) shares a pointer back to the earliest
// cancellable ancestor in its chain. Calling Cancel on any downstream link
// walks straight to that root and cancels it there, so cancelling a derived
// promise always terminates the original producer (e.g. an in-flight
// Promisify-wrapped request), not just the local link.
type Cancellable struct {
	*Chained
	root *Cancellable // self, if this Cancellable has no cancellable ancestor

	mu         sync.Mutex
	cancelled  bool
	cancelHook func()
}

// NewCancellable creates a pending root Cancellable bound to loop.
func (l *Loop) NewCancellable() (*Cancellable, ResolveFunc, RejectFunc) {
	p, resolve, reject := l.NewPromise()
	c := &Cancellable{Chained: p}
	c.root = c
	return c, resolve, reject
}

// SetCancelHandler registers the single hook Cancel invokes (spec §4.6
// "set_cancel_handler(fn)"). Only meaningful on a root Cancellable — derived
// links forward Cancel to their root, so a hook set on a derived link would
// never run.
func (c *Cancellable) SetCancelHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelHook = fn
}

// Cancel walks to the earliest cancellable ancestor and, if it is still
// pending and not already cancelled, marks it cancelled, invokes its cancel
// hook exactly once, and rejects it with CancellationError (spec §4.6).
func (c *Cancellable) Cancel() {
	root := c.root
	root.mu.Lock()
	if root.cancelled || root.State() != Pending {
		root.mu.Unlock()
		return
	}
	root.cancelled = true
	hook := root.cancelHook
	root.mu.Unlock()

	if hook != nil {
		hook()
	}
	root.reject(&CancellationError{})
}

// Cancelled reports whether Cancel has run against this chain's root.
func (c *Cancellable) Cancelled() bool {
	c.root.mu.Lock()
	defer c.root.mu.Unlock()
	return c.root.cancelled
}

// ThenCancellable is Then, but the returned downstream keeps this chain's
// root pointer, so cancelling any link in the chain still cancels the
// original producer (spec §4.6).
func (c *Cancellable) ThenCancellable(onFulfilled, onRejected func(Result) Result) *Cancellable {
	downstream := c.Chained.Then(onFulfilled, onRejected)
	return &Cancellable{Chained: downstream, root: c.root}
}

// CatchCancellable is ThenCancellable(nil, onRejected).
func (c *Cancellable) CatchCancellable(onRejected func(Result) Result) *Cancellable {
	return c.ThenCancellable(nil, onRejected)
}
