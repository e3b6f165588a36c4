// I/O polling (C2, spec §4.2). Registers read/write interest on descriptors
// and reports readiness with a bounded wait, backed by the platform's native
// multiplexing primitive:
//
//   - Linux:   epoll  (poller_linux.go)
//   - Darwin:  kqueue (poller_darwin.go)
//   - other:   a portable fallback with registration bookkeeping but no
//     native readiness notification (poller_other.go)
//
// Grounded on the teacher's poller_linux.go/poller_darwin.go FastPoller.
// Simplified: the teacher targets sub-microsecond dispatch with cache-line
// padding and fixed 65536-entry direct-indexed arrays; a cooperative
// single-threaded loop has no concurrent pollers to protect against, so this
// version drops the RWMutex/atomics and uses a plain map keyed by fd.
package asyncloop

import "errors"

// IOEvents is a bitmask of I/O readiness conditions.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// IOCallback is invoked with the readiness bits that fired. It runs
// synchronously on the loop goroutine (spec §4.2: "callbacks, when invoked,
// push work into the loop's task/micro-task queues").
type IOCallback func(events IOEvents)

var (
	// ErrFDAlreadyRegistered is returned by RegisterFD for a descriptor that
	// is already registered.
	ErrFDAlreadyRegistered = errors.New("asyncloop: fd already registered")

	// ErrFDNotRegistered is returned by UnregisterFD/ModifyFD for a
	// descriptor with no active registration.
	ErrFDNotRegistered = errors.New("asyncloop: fd not registered")

	// ErrPollerClosed is returned once the poller has been torn down.
	ErrPollerClosed = errors.New("asyncloop: poller closed")
)

// poller is the interface the Loop depends on; satisfied by the
// platform-specific implementations in poller_linux.go, poller_darwin.go and
// poller_other.go.
type poller interface {
	Init() error
	Close() error
	RegisterFD(fd int, events IOEvents, cb IOCallback) error
	UnregisterFD(fd int) error
	ModifyFD(fd int, events IOEvents) error
	// PollIO blocks for up to timeoutMs milliseconds (negative meaning
	// indefinite, zero meaning a non-blocking poll) and dispatches callbacks
	// for descriptors that became ready. It returns the number of
	// descriptors dispatched.
	PollIO(timeoutMs int) (int, error)
	// Pending reports the number of descriptors currently registered.
	Pending() int
}
