//go:build darwin

package asyncsock

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the Darwin/BSD [poller] backend: kqueue for socket
// readiness, plus a self-pipe for cross-goroutine wake-up (kqueue has
// no portable eventfd equivalent, so a classic self-pipe is used
// instead, as the rest of the BSD/Darwin ecosystem does).
type kqueuePoller struct {
	logger *Logger
	rates  *socketRateLimits

	kq         int
	wakeRead   int
	wakeWrite  int

	mu  sync.Mutex
	fds map[int]*Socket

	eventBuf [256]unix.Kevent_t
}

func newPoller(logger *Logger, rates *socketRateLimits) (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, errFromErrno("kqueue", err)
	}
	unix.CloseOnExec(kq)

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		_ = unix.Close(kq)
		return nil, errFromErrno("pipe", err)
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	_ = unix.SetNonblock(fds[0], true)
	_ = unix.SetNonblock(fds[1], true)

	p := &kqueuePoller{logger: logger, rates: rates, kq: kq, wakeRead: fds[0], wakeWrite: fds[1], fds: make(map[int]*Socket)}
	_, err = unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  uint64(p.wakeRead),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}}, nil, nil)
	if err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		_ = unix.Close(kq)
		return nil, errFromErrno("kevent", err)
	}
	return p, nil
}

func (p *kqueuePoller) registerSocket(s *Socket) error {
	fd := int(s.handle)
	p.mu.Lock()
	p.fds[fd] = s
	p.mu.Unlock()

	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE | unix.EV_CLEAR},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ENABLE | unix.EV_CLEAR},
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		p.mu.Lock()
		delete(p.fds, fd)
		p.mu.Unlock()
		return errFromErrno("kevent", err)
	}
	return nil
}

func (p *kqueuePoller) unregisterSocket(s *Socket) error {
	fd := int(s.handle)
	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(p.kq, changes, nil, nil)
	return nil
}

func (p *kqueuePoller) wait(timeout time.Duration) ([]pollEvent, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeout / time.Second),
			Nsec: int64(timeout % time.Second),
		}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			if p.rates.allow(Handle(p.kq), logCategoryReactor) {
				p.logger.Debug().Str("category", logCategoryReactor).Log("kevent interrupted by signal")
			}
			return nil, nil
		}
		return nil, errFromErrno("kevent", err)
	}

	byFD := make(map[int]*pollEvent, n)
	var order []int
	for i := 0; i < n; i++ {
		kev := p.eventBuf[i]
		fd := int(kev.Ident)
		if fd == p.wakeRead {
			var buf [512]byte
			for {
				if _, err := unix.Read(p.wakeRead, buf[:]); err != nil {
					break
				}
			}
			continue
		}
		p.mu.Lock()
		s := p.fds[fd]
		p.mu.Unlock()
		if s == nil {
			continue
		}
		ev, ok := byFD[fd]
		if !ok {
			order = append(order, fd)
			byFD[fd] = &pollEvent{socket: s}
			ev = byFD[fd]
		}
		switch kev.Filter {
		case unix.EVFILT_READ:
			ev.readable = true
		case unix.EVFILT_WRITE:
			ev.writable = true
		}
		if kev.Flags&unix.EV_ERROR != 0 {
			ev.errored = true
		}
		if kev.Flags&unix.EV_EOF != 0 {
			ev.hangup = true
		}
	}

	events := make([]pollEvent, 0, len(order))
	for _, fd := range order {
		events = append(events, *byFD[fd])
	}
	return events, nil
}

func (p *kqueuePoller) wake() error {
	_, err := unix.Write(p.wakeWrite, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return errFromErrno("pipe_write", err)
	}
	return nil
}

func (p *kqueuePoller) close() error {
	_ = unix.Close(p.wakeRead)
	_ = unix.Close(p.wakeWrite)
	if err := unix.Close(p.kq); err != nil {
		return errFromErrno("close", err)
	}
	return nil
}

// attachLoadBalance reports [KindOperationNotSupported]: Darwin/BSD
// expose no SO_REUSEPORT classifier hook equivalent to Linux's CBPF
// program attachment.
func attachLoadBalance(h Handle, program []byte) error {
	return newError("load_balance", KindOperationNotSupported, nil)
}
