//go:build linux

package asyncsock

import (
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux [poller] backend: edge-triggered epoll for
// socket readiness, plus an eventfd for cross-goroutine wake-up (e.g.
// [Reactor.Post] called from outside the reactor's driving thread).
type epollPoller struct {
	logger *Logger
	rates  *socketRateLimits

	epfd   int
	wakeFd int

	mu   sync.Mutex
	fds  map[int]*Socket

	eventBuf [256]unix.EpollEvent
}

func newPoller(logger *Logger, rates *socketRateLimits) (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errFromErrno("epoll_create1", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, errFromErrno("eventfd", err)
	}
	p := &epollPoller{logger: logger, rates: rates, epfd: epfd, wakeFd: wfd, fds: make(map[int]*Socket)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wfd),
	}); err != nil {
		_ = unix.Close(wfd)
		_ = unix.Close(epfd)
		return nil, errFromErrno("epoll_ctl", err)
	}
	return p, nil
}

func (p *epollPoller) registerSocket(s *Socket) error {
	fd := int(s.handle)
	p.mu.Lock()
	p.fds[fd] = s
	p.mu.Unlock()

	// Edge-triggered: both directions are always armed. Readiness is
	// re-derived from each side's pending queue, not from re-arming.
	ev := &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.mu.Lock()
		delete(p.fds, fd)
		p.mu.Unlock()
		return errFromErrno("epoll_ctl", err)
	}
	return nil
}

func (p *epollPoller) unregisterSocket(s *Socket) error {
	fd := int(s.handle)
	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	return nil
}

func (p *epollPoller) wait(timeout time.Duration) ([]pollEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			if p.rates.allow(Handle(p.epfd), logCategoryReactor) {
				p.logger.Debug().Str("category", logCategoryReactor).Log("epoll_wait interrupted by signal")
			}
			return nil, nil
		}
		return nil, errFromErrno("epoll_wait", err)
	}

	events := make([]pollEvent, 0, n)
	for i := 0; i < n; i++ {
		raw := p.eventBuf[i]
		if int(raw.Fd) == p.wakeFd {
			var buf [8]byte
			_, _ = unix.Read(p.wakeFd, buf[:])
			continue
		}
		p.mu.Lock()
		s := p.fds[int(raw.Fd)]
		p.mu.Unlock()
		if s == nil {
			continue
		}
		events = append(events, pollEvent{
			socket:   s,
			readable: raw.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
			writable: raw.Events&unix.EPOLLOUT != 0,
			errored:  raw.Events&unix.EPOLLERR != 0,
			hangup:   raw.Events&unix.EPOLLHUP != 0,
		})
	}
	return events, nil
}

func (p *epollPoller) wake() error {
	var val [8]byte
	val[0] = 1
	_, err := unix.Write(p.wakeFd, val[:])
	if err != nil && err != unix.EAGAIN {
		return errFromErrno("eventfd_write", err)
	}
	return nil
}

func (p *epollPoller) close() error {
	_ = unix.Close(p.wakeFd)
	if err := unix.Close(p.epfd); err != nil {
		return errFromErrno("close", err)
	}
	return nil
}

// soAttachReusePortCBPF is SO_ATTACH_REUSEPORT_CBPF from linux/socket.h,
// not yet exported by golang.org/x/sys/unix.
const soAttachReusePortCBPF = 51

// attachLoadBalance installs program, a classic-BPF bytecode blob (8
// bytes per instruction: u16 code, u8 jt, u8 jf, u32 k, all
// little-endian — the same layout SO_ATTACH_FILTER expects), as the
// SO_REUSEPORT classifier for h.
func attachLoadBalance(h Handle, program []byte) error {
	if len(program) == 0 || len(program)%8 != 0 {
		return newError("load_balance", KindInvalidArgument, nil)
	}
	filters := make([]unix.SockFilter, len(program)/8)
	for i := range filters {
		off := i * 8
		filters[i] = unix.SockFilter{
			Code: binary.LittleEndian.Uint16(program[off:]),
			Jt:   program[off+2],
			Jf:   program[off+3],
			K:    binary.LittleEndian.Uint32(program[off+4:]),
		}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(filters)),
		Filter: &filters[0],
	}
	if err := unix.SetsockoptSockFprog(int(h), unix.SOL_SOCKET, soAttachReusePortCBPF, &prog); err != nil {
		return errFromErrno("attach_reuseport_cbpf", err)
	}
	return nil
}
