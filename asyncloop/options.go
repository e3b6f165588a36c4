// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package asyncloop

// loopOptions holds configuration resolved from Option values at Loop
// construction (spec §6, Ambient Stack / Configuration).
type loopOptions struct {
	logger               *Logger
	debug                bool
	tickBudget           int
	clock                Clock
	maxPollMS            int
	onUnhandledRejection RejectionHandler
}

// Option configures a Loop instance.
type Option interface {
	applyLoop(*loopOptions) error
}

type optionFunc func(*loopOptions) error

func (f optionFunc) applyLoop(opts *loopOptions) error { return f(opts) }

// WithLogger attaches a structured Logger. Without this option the Loop logs
// nothing (see noopLogger).
func WithLogger(l *Logger) Option {
	return optionFunc(func(opts *loopOptions) error {
		opts.logger = l
		return nil
	})
}

// WithDebugMode makes every promise created on the Loop record its
// construction call stack, readable via Chained.CreationStackTrace. Log
// output is governed by the Logger's level, not by this option.
func WithDebugMode(enabled bool) Option {
	return optionFunc(func(opts *loopOptions) error {
		opts.debug = enabled
		return nil
	})
}

// WithTickBudget caps the number of ready-queue tasks drained per
// iteration of the loop's run-tasks phase (spec §4.4 step 2) before
// yielding to the microtask/timer/poller phases. Zero or negative means
// unbounded (keep draining until the ready queue is empty).
func WithTickBudget(n int) Option {
	return optionFunc(func(opts *loopOptions) error {
		opts.tickBudget = n
		return nil
	})
}

// WithClock overrides the time source used by the timer wheel. Intended for
// deterministic tests; production callers should leave this unset.
func WithClock(c Clock) Option {
	return optionFunc(func(opts *loopOptions) error {
		opts.clock = c
		return nil
	})
}

// WithMaxPollInterval bounds how long a single poll-phase wait (spec §4.4
// step 4) may block, whether or not a timer is pending, so the loop rechecks
// Close and context cancellation at least this often. Defaults to 1000ms;
// zero or negative removes the bound (an idle loop with no timers then
// waits indefinitely). With external-pending work the wait is always zero.
func WithMaxPollInterval(ms int) Option {
	return optionFunc(func(opts *loopOptions) error {
		opts.maxPollMS = ms
		return nil
	})
}

// WithUnhandledRejection registers a callback invoked once per promise whose
// rejection was never observed by a handler before it was garbage collected
// (spec §3 invariant iv).
func WithUnhandledRejection(h RejectionHandler) Option {
	return optionFunc(func(opts *loopOptions) error {
		opts.onUnhandledRejection = h
		return nil
	})
}

func resolveOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{
		maxPollMS: 1000,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger()
	}
	if cfg.clock == nil {
		cfg.clock = systemClock{}
	}
	return cfg, nil
}
