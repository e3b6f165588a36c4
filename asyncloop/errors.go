// Package asyncloop implements a single-threaded cooperative event loop with
// a Promise/A+ style core, a stackful-coroutine async/await bridge, promise
// combinators, and a bounded-concurrency task governor.
package asyncloop

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that aren't naturally an error value, so
// callers can errors.Is against them directly.
var (
	// ErrLoopTerminated is surfaced when an operation is attempted against a
	// loop that has already been closed/reset.
	ErrLoopTerminated = errors.New("asyncloop: loop has been terminated")

	// ErrReentrantRun is returned by Run when called from within the loop's
	// own goroutine (e.g. from inside a coroutine or microtask).
	ErrReentrantRun = errors.New("asyncloop: cannot call Run from within the loop")
)

// NotInCoroutineError is the fatal precondition failure for Await called
// outside of a running Task's coroutine (spec §4.7, §7).
type NotInCoroutineError struct{}

func (*NotInCoroutineError) Error() string {
	return "asyncloop: await called outside of a coroutine"
}

// InvalidArgumentError reports a caller bug: an out-of-range argument such
// as a non-positive concurrency limit or timeout (spec §7).
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	if e.Message == "" {
		return "asyncloop: invalid argument"
	}
	return "asyncloop: invalid argument: " + e.Message
}

// TypeError mirrors JavaScript's TypeError, used for chaining cycles and
// non-promise/non-callable combinator inputs (spec §4.5, §4.8).
type TypeError struct {
	Message string
	Cause   error
}

func (e *TypeError) Error() string {
	if e.Message == "" {
		return "asyncloop: type error"
	}
	return "asyncloop: type error: " + e.Message
}

func (e *TypeError) Unwrap() error { return e.Cause }

// CancellationError is the rejection reason a Cancellable settles with after
// Cancel() runs its cancel handler (spec §3, §4.6).
type CancellationError struct {
	Cause error
}

func (e *CancellationError) Error() string {
	if e.Cause != nil {
		return "asyncloop: cancelled: " + e.Cause.Error()
	}
	return "asyncloop: cancelled"
}

func (e *CancellationError) Unwrap() error { return e.Cause }

// TimeoutError is the rejection reason substituted by Timeout when its
// delay branch wins the race (spec §4.8).
type TimeoutError struct {
	After string
}

func (e *TimeoutError) Error() string {
	if e.After == "" {
		return "asyncloop: operation timed out"
	}
	return fmt.Sprintf("asyncloop: operation timed out after %s", e.After)
}

// NoPromisesError is the rejection reason for Race/Any called with no
// inputs (spec §4.8).
type NoPromisesError struct{}

func (*NoPromisesError) Error() string { return "asyncloop: no promises provided" }

// AggregateError carries the individual rejection reasons when Any's inputs
// all reject (spec §4.8).
type AggregateError struct {
	Message string
	Errors  []error
}

func (e *AggregateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("asyncloop: all %d promises were rejected", len(e.Errors))
}

// Unwrap exposes the individual reasons to errors.Is/errors.As (Go 1.20+
// multi-error unwrapping), mirroring the teacher's AggregateError.
func (e *AggregateError) Unwrap() []error { return e.Errors }

// RejectionError wraps a non-error rejection reason so it satisfies the
// error interface, per spec §6/§7 ("the core wraps non-throwable rejection
// reasons into a generic RejectionError carrying their string form").
type RejectionError struct {
	Value Result
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("asyncloop: rejected: %v", e.Value)
}

// PanicError wraps a value recovered from a panicking handler or coroutine
// body, grounded on the teacher's promisify.go PanicError.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("asyncloop: panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// asError coerces an arbitrary rejection reason to an error, wrapping
// non-error values in RejectionError. Used by Await (spec §4.7: "wraps
// non-throwables in a generic error carrying their string form").
func asError(reason Result) error {
	if reason == nil {
		return nil
	}
	if err, ok := reason.(error); ok {
		return err
	}
	return &RejectionError{Value: reason}
}

// WrapError wraps an error with a message, preserving the cause chain for
// errors.Is/errors.As. Mirrors the teacher's WrapError helper.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
