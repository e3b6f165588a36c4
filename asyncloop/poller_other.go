//go:build !linux && !darwin

package asyncloop

import "sync"

// portablePoller is used on platforms without a native epoll/kqueue binding
// in golang.org/x/sys/unix. It supports registration bookkeeping so callers
// depending on RegisterFD/UnregisterFD still compile and behave predictably,
// but PollIO never reports readiness on its own; descriptors registered here
// only become ready once driven externally (e.g. a Promisify-wrapped
// goroutine completing the blocking read and resolving its promise).
type portablePoller struct {
	mu     sync.Mutex
	fds    map[int]fdInfo
	closed bool
}

type fdInfo struct {
	callback IOCallback
	events   IOEvents
}

func newPoller() poller {
	return &portablePoller{fds: make(map[int]fdInfo)}
}

func (p *portablePoller) Init() error { return nil }

func (p *portablePoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *portablePoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = fdInfo{callback: cb, events: events}
	return nil
}

func (p *portablePoller) UnregisterFD(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(p.fds, fd)
	return nil
}

func (p *portablePoller) ModifyFD(fd int, events IOEvents) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.fds[fd]
	if !ok {
		return ErrFDNotRegistered
	}
	info.events = events
	p.fds[fd] = info
	return nil
}

func (p *portablePoller) PollIO(timeoutMs int) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	return 0, nil
}

func (p *portablePoller) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fds)
}
