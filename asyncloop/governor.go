package asyncloop

// FailurePolicy selects Concurrent's behavior on the first rejection (spec
// §4.9).
type FailurePolicy int

const (
	// FailFast rejects the aggregate on the first rejection and launches no
	// further pending tasks; already in-flight tasks continue running but
	// their outcomes are discarded. This is the default (spec §4.9).
	FailFast FailurePolicy = iota
	// Settled never rejects; it behaves like AllSettled but under a
	// concurrency limit.
	Settled
)

// Concurrent runs tasks under a bound of limit simultaneously in-flight,
// preserving each task's input key in the result mapping (spec §4.9).
//
// Grounded on microbatch's maxConcurrency channel-semaphore pattern
// (`chan struct{}` sized to the concurrency limit), adapted to the
// single-threaded loop: an in-flight counter plays the permits' role, and
// each settlement schedules the next launch as a microtask instead of
// releasing a channel slot.
func Concurrent(loop *Loop, limit int, policy FailurePolicy, inputs ...any) *Chained {
	out, resolve, reject := loop.NewPromise()
	if limit < 1 {
		reject(&InvalidArgumentError{Message: "concurrency limit must be >= 1"})
		return out
	}
	if len(inputs) == 0 {
		resolve([]Result{})
		return out
	}

	results := make([]Result, len(inputs))
	outcomes := make([]Outcome, len(inputs))
	next := 0
	inFlight := 0
	completed := 0
	stopped := false

	var launchNext func()
	launchNext = func() {
		for inFlight < limit && next < len(inputs) && !stopped {
			i := next
			next++
			inFlight++
			p := adopt(loop, inputs[i])
			p.Then(
				func(v Result) Result {
					inFlight--
					completed++
					results[i] = v
					outcomes[i] = Outcome{Status: "fulfilled", Value: v}
					if completed == len(inputs) && !stopped {
						if policy == Settled {
							resolve(outcomes)
						} else {
							resolve(results)
						}
						return nil
					}
					// Per spec §4.9: launch the next pending task on the
					// micro-task queue, never synchronously.
					loop.PostMicrotask(launchNext)
					return nil
				},
				func(r Result) Result {
					inFlight--
					completed++
					outcomes[i] = Outcome{Status: "rejected", Reason: r}
					if policy == FailFast {
						if !stopped {
							stopped = true
							reject(r)
						}
						return nil
					}
					if completed == len(inputs) {
						resolve(outcomes)
						return nil
					}
					loop.PostMicrotask(launchNext)
					return nil
				},
			)
		}
	}
	launchNext()
	return out
}

// Batch partitions inputs into contiguous groups of batchSize and runs
// Concurrent(batch, innerLimit) on each group sequentially — the next batch
// starts only once the previous one resolves. Any batch rejection rejects
// the aggregate immediately (spec §4.9).
func Batch(loop *Loop, batchSize, innerLimit int, inputs ...any) *Chained {
	out, resolve, reject := loop.NewPromise()
	if batchSize < 1 {
		reject(&InvalidArgumentError{Message: "batch size must be >= 1"})
		return out
	}
	if len(inputs) == 0 {
		resolve([]Result{})
		return out
	}

	var batches [][]any
	for i := 0; i < len(inputs); i += batchSize {
		end := i + batchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		batches = append(batches, inputs[i:end])
	}

	allResults := make([]Result, 0, len(inputs))
	var runBatch func(idx int)
	runBatch = func(idx int) {
		if idx == len(batches) {
			resolve(allResults)
			return
		}
		Concurrent(loop, innerLimit, FailFast, batches[idx]...).Then(
			func(v Result) Result {
				allResults = append(allResults, v.([]Result)...)
				runBatch(idx + 1)
				return nil
			},
			func(r Result) Result {
				reject(r)
				return nil
			},
		)
	}
	runBatch(0)
	return out
}
