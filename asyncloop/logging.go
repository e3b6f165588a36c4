package asyncloop

import (
	"io"
	"os"

	"github.com/joeycumines/go-utilpkg/logiface"
	"github.com/joeycumines/go-utilpkg/logiface/stumpy"
)

// Logger is the structured logger type used throughout the loop. It is a
// thin alias over logiface's generic logger, instantiated with stumpy's
// fast JSON event type — the same pairing the teacher's own modules use
// (logiface as the facade, stumpy as the default writer backend).
type Logger = logiface.Logger[*stumpy.Event]

// logifaceBuilder is the concrete Builder type our Logger produces; aliased
// for brevity at call sites building up structured fields.
type logifaceBuilder = logiface.Builder[*stumpy.Event]

// NewJSONLogger builds a Logger that writes newline-delimited JSON to w via
// stumpy. level filters out events below the given severity.
func NewJSONLogger(w io.Writer, level logiface.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return logiface.New[*stumpy.Event](
		stumpy.WithStumpy(stumpy.WithWriter(w)),
		logiface.WithLevel[*stumpy.Event](level),
	)
}

// noopLogger is used whenever a Loop is constructed without WithLogger. It
// has no writer configured, so every Build call short-circuits via
// Builder.Enabled without allocating an event.
func noopLogger() *Logger {
	return logiface.New[*stumpy.Event]()
}

// logCategory values tag the "component" field on every loop-emitted log
// line, mirroring spec.md §2's component table (C1..C9).
type logCategory string

const (
	logTimer      logCategory = "timer"
	logPoller     logCategory = "poller"
	logLoop       logCategory = "loop"
	logPromise    logCategory = "promise"
	logCoroutine  logCategory = "coroutine"
	logGovernor   logCategory = "governor"
	logCombinator logCategory = "combinator"
)

func (l *Loop) logDebug(cat logCategory, msg string, fields func(*logifaceBuilder) *logifaceBuilder) {
	b := l.logger.Debug()
	if !b.Enabled() {
		b.Release()
		return
	}
	b = b.Str("component", string(cat))
	if fields != nil {
		b = fields(b)
	}
	b.Log(msg)
}

func (l *Loop) logWarn(cat logCategory, msg string, err error) {
	b := l.logger.Warning().Str("component", string(cat))
	if err != nil {
		b = b.Err(err)
	}
	b.Log(msg)
}
