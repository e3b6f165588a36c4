package asyncloop

import (
	"strconv"
	"time"
)

// Settleable is a zero-argument function a combinator may adopt in place of
// a promise, run as its own Task so it may itself call Await (spec §4.8:
// "Inputs may be either promises or zero-argument functions. Functions are
// adopted as async(fn)() at combinator entry").
type Settleable = func(t *Task) (Result, error)

// adopt resolves an arbitrary combinator input to a *Chained, wrapping
// non-callable/non-promise inputs in a TypeError rejection per spec §4.8.
func adopt(loop *Loop, in any) *Chained {
	switch v := in.(type) {
	case *Chained:
		return v
	case *Cancellable:
		return v.Chained
	case Settleable:
		return Async(loop, v)()
	case func() (Result, error):
		return Async(loop, func(*Task) (Result, error) { return v() })()
	case func() Result:
		return Async(loop, func(*Task) (Result, error) { return v(), nil })()
	default:
		return loop.Rejected(&TypeError{Message: "combinator input is neither a promise nor a zero-argument function"})
	}
}

// keyedEntry pairs an adopted input with the key its outcome is reported
// under, unifying positional (All) and keyed (AllKeyed) combinators on one
// implementation.
type keyedEntry struct {
	key string
	p   *Chained
}

func positionalEntries(loop *Loop, inputs []any) []keyedEntry {
	entries := make([]keyedEntry, len(inputs))
	for i, in := range inputs {
		entries[i] = keyedEntry{key: strconv.Itoa(i), p: adopt(loop, in)}
	}
	return entries
}

func keyedEntries(loop *Loop, inputs map[string]any) []keyedEntry {
	entries := make([]keyedEntry, 0, len(inputs))
	for k, in := range inputs {
		entries = append(entries, keyedEntry{key: k, p: adopt(loop, in)})
	}
	return entries
}

// All resolves with a positional slice of values once every task resolves,
// or rejects immediately on the first rejection (spec §4.8). Empty input
// resolves with an empty slice.
func All(loop *Loop, inputs ...any) *Chained {
	return all(loop, positionalEntries(loop, inputs), func(vals map[string]Result) Result {
		return positionalize(vals, len(inputs))
	})
}

// AllKeyed is All for a string-keyed mapping of inputs.
func AllKeyed(loop *Loop, inputs map[string]any) *Chained {
	return all(loop, keyedEntries(loop, inputs), func(vals map[string]Result) Result { return vals })
}

func all(loop *Loop, entries []keyedEntry, shape func(map[string]Result) Result) *Chained {
	out, resolve, reject := loop.NewPromise()
	if len(entries) == 0 {
		resolve(shape(map[string]Result{}))
		return out
	}
	results := make(map[string]Result, len(entries))
	remaining := len(entries)
	settled := false
	for _, e := range entries {
		e := e
		e.p.Then(
			func(v Result) Result {
				if settled {
					return nil
				}
				results[e.key] = v
				remaining--
				if remaining == 0 {
					settled = true
					resolve(shape(results))
				}
				return nil
			},
			func(r Result) Result {
				if !settled {
					settled = true
					reject(r)
				}
				return nil
			},
		)
	}
	return out
}

func positionalize(vals map[string]Result, n int) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = vals[strconv.Itoa(i)]
	}
	return out
}

// Outcome is one entry of AllSettled's result (spec §4.8).
type Outcome struct {
	Status string // "fulfilled" or "rejected"
	Value  Result
	Reason Result
}

// AllSettled never rejects; it resolves with a positional slice of Outcome
// once every input has settled (spec §4.8).
func AllSettled(loop *Loop, inputs ...any) *Chained {
	return allSettled(loop, positionalEntries(loop, inputs), func(m map[string]Outcome) Result {
		out := make([]Outcome, len(inputs))
		for i := range out {
			out[i] = m[strconv.Itoa(i)]
		}
		return out
	})
}

// AllSettledKeyed is AllSettled for a string-keyed mapping of inputs.
func AllSettledKeyed(loop *Loop, inputs map[string]any) *Chained {
	return allSettled(loop, keyedEntries(loop, inputs), func(m map[string]Outcome) Result { return m })
}

func allSettled(loop *Loop, entries []keyedEntry, shape func(map[string]Outcome) Result) *Chained {
	out, resolve, _ := loop.NewPromise()
	if len(entries) == 0 {
		resolve(shape(map[string]Outcome{}))
		return out
	}
	results := make(map[string]Outcome, len(entries))
	remaining := len(entries)
	for _, e := range entries {
		e := e
		e.p.Then(
			func(v Result) Result {
				results[e.key] = Outcome{Status: "fulfilled", Value: v}
				remaining--
				if remaining == 0 {
					resolve(shape(results))
				}
				return nil
			},
			func(r Result) Result {
				results[e.key] = Outcome{Status: "rejected", Reason: r}
				remaining--
				if remaining == 0 {
					resolve(shape(results))
				}
				return nil
			},
		)
	}
	return out
}

// Race settles with the outcome of the first input to settle, cancelling
// every other cancellable input once one wins (spec §4.8). Empty input
// rejects with NoPromisesError.
func Race(loop *Loop, inputs ...any) *Chained {
	out, resolve, reject := loop.NewPromise()
	if len(inputs) == 0 {
		reject(&NoPromisesError{})
		return out
	}
	cancellables := make([]*Cancellable, 0, len(inputs))
	adopted := make([]*Chained, len(inputs))
	for i, in := range inputs {
		if c, ok := in.(*Cancellable); ok {
			cancellables = append(cancellables, c)
			adopted[i] = c.Chained
		} else {
			adopted[i] = adopt(loop, in)
		}
	}
	settled := false
	finish := func(fn func()) {
		if settled {
			return
		}
		settled = true
		fn()
		for _, c := range cancellables {
			c.Cancel()
		}
	}
	for _, p := range adopted {
		p.Then(
			func(v Result) Result { finish(func() { resolve(v) }); return nil },
			func(r Result) Result { finish(func() { reject(r) }); return nil },
		)
	}
	return out
}

// Any resolves with the first fulfillment; if every input rejects, it
// rejects with an AggregateError carrying each reason in input order (spec
// §4.8). Empty input rejects with NoPromisesError.
func Any(loop *Loop, inputs ...any) *Chained {
	out, resolve, reject := loop.NewPromise()
	if len(inputs) == 0 {
		reject(&NoPromisesError{})
		return out
	}
	reasons := make([]error, len(inputs))
	remaining := len(inputs)
	settled := false
	for i, in := range inputs {
		i := i
		adopt(loop, in).Then(
			func(v Result) Result {
				if !settled {
					settled = true
					resolve(v)
				}
				return nil
			},
			func(r Result) Result {
				reasons[i] = asError(r)
				remaining--
				if remaining == 0 && !settled {
					settled = true
					reject(&AggregateError{Errors: reasons})
				}
				return nil
			},
		)
	}
	return out
}

// Delay returns a Cancellable that resolves with nil after d; cancelling it
// also cancels the underlying timer (spec §4.8).
func Delay(loop *Loop, d time.Duration) *Cancellable {
	c, resolve, _ := loop.NewCancellable()
	id := loop.AddTimer(d, func() { resolve(nil) })
	c.SetCancelHandler(func() { loop.CancelTimer(id) })
	return c
}

// Timeout races op against Delay(d), rejecting with TimeoutError if the
// delay wins (spec §4.8). d must be positive, else it rejects immediately
// with InvalidArgumentError.
func Timeout(loop *Loop, op any, d time.Duration) *Chained {
	if d <= 0 {
		return loop.Rejected(&InvalidArgumentError{Message: "timeout duration must be positive"})
	}
	// delay's fulfillment is remapped to a TimeoutError rejection on a new
	// promise that shares delay's root, so Race's cancel-on-settle still
	// reaches the real timer via delay's cancel handler.
	delay := Delay(loop, d)
	losingBranch, _, rejectLosingBranch := loop.NewPromise()
	timeoutBranch := &Cancellable{Chained: losingBranch, root: delay.root}
	delay.Then(
		func(Result) Result { rejectLosingBranch(&TimeoutError{After: d.String()}); return nil },
		func(r Result) Result { rejectLosingBranch(r); return nil },
	)
	return Race(loop, op, timeoutBranch)
}
