package asyncloop

import (
	"context"
	"errors"
	"time"
)

// ErrGoexit rejects a Promisify promise when the wrapped function exits via
// runtime.Goexit instead of returning or panicking, so the promise never
// hangs unsettled.
var ErrGoexit = errors.New("asyncloop: goroutine exited via runtime.Goexit")

// Promisify bridges a blocking, non-cooperative Go function into the loop by
// running it on its own goroutine and reporting its outcome through a
// Promise settled back on the loop goroutine (spec §6, "external
// collaborator" seam).
//
// Grounded on the teacher's eventloop.Loop.Promisify: fn runs on its own
// goroutine; resolve/reject are safe to call directly from there since they
// trampoline onto the loop goroutine themselves (see Chained.resolve), and
// ExternalPendingInc/Dec keep the idle check (spec §4.4) honest about this
// in-flight work while fn is still running. If the loop has already torn
// down by the time fn finishes, the trampolined settlement simply never
// runs — but registry.rejectAll already force-rejected this promise during
// shutdown, so it never hangs pending.
func (l *Loop) Promisify(ctx context.Context, fn func(ctx context.Context) (Result, error)) *Chained {
	p, resolve, reject := l.NewPromise()

	if l.State() == StateTerminating || l.State() == StateTerminated {
		reject(ErrLoopTerminated)
		return p
	}

	l.ExternalPendingInc()

	go func() {
		defer l.ExternalPendingDec()

		completed := false

		select {
		case <-ctx.Done():
			completed = true
			reject(ctx.Err())
			return
		default:
		}

		defer func() {
			if r := recover(); r != nil {
				reject(&PanicError{Value: r})
				return
			}
			if !completed {
				reject(ErrGoexit)
			}
		}()

		res, err := fn(ctx)
		completed = true
		if err != nil {
			reject(err)
		} else {
			resolve(res)
		}
	}()

	return p
}

// PromisifyWithTimeout is Promisify composed with context.WithTimeout: fn's
// context is cancelled once d elapses. The promise still settles with
// whatever fn returns, so it rejects with context.DeadlineExceeded only when
// fn returns that error (or the deadline has passed before fn starts); a fn
// that ignores its context keeps the promise pending until it returns.
func (l *Loop) PromisifyWithTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) (Result, error)) *Chained {
	ctx, cancel := context.WithTimeout(parent, d)
	return l.Promisify(ctx, func(ctx context.Context) (Result, error) {
		defer cancel()
		return fn(ctx)
	})
}
