package asyncloop

import (
	"context"
	"time"
)

// Run drives loop until fnOrPromise settles, returning its fulfillment value
// or the error equivalent of its rejection reason (spec §4.10 "public entry
// points"). fnOrPromise is adopted exactly as a combinator input would be
// (spec §4.8): a *Chained/*Cancellable promise, or a zero-argument function
// run as its own Task.
//
// Grounded on the teacher's examples' loop.Run(ctx) driving pattern, adapted
// to the spec's "block until this one promise settles" entry point rather
// than "run until shutdown is requested".
func Run(ctx context.Context, loop *Loop, fnOrPromise any) (Result, error) {
	root := adopt(loop, fnOrPromise)

	rootDone := func() bool { return root.State() != Pending }
	if err := loop.Run(ctx, rootDone); err != nil {
		return nil, err
	}

	if root.State() == Rejected {
		return nil, asError(root.Reason())
	}
	return root.Value(), nil
}

// RunAll is Run(ctx, loop, All(loop, tasks...)).
func RunAll(ctx context.Context, loop *Loop, tasks ...any) (Result, error) {
	return Run(ctx, loop, All(loop, tasks...))
}

// RunConcurrent is Run(ctx, loop, Concurrent(loop, limit, FailFast, tasks...)).
func RunConcurrent(ctx context.Context, loop *Loop, limit int, tasks ...any) (Result, error) {
	return Run(ctx, loop, Concurrent(loop, limit, FailFast, tasks...))
}

// RunWithTimeout is Run(ctx, loop, Timeout(loop, fnOrPromise, d)).
func RunWithTimeout(ctx context.Context, loop *Loop, fnOrPromise any, d time.Duration) (Result, error) {
	return Run(ctx, loop, Timeout(loop, fnOrPromise, d))
}
