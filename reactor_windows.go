//go:build windows

package asyncsock

import (
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sys/windows"

	"code.hybscloud.com/asyncsock/endpoint"
)

// wsaPollPoller is the Windows [poller] backend. Full per-request
// overlapped I/O (WSARecv/WSASend routed through a real IOCP) would
// let the reactor learn of readiness without re-checking every
// registered socket; this backend instead multiplexes with WSAPoll,
// the readiness-style API Winsock exposes as the closest analogue to
// epoll/kqueue, trading some IOCP-class scalability for one poller
// shape shared conceptually across all three platforms. Wake-up uses
// a connected loopback UDP pair rather than IOCP, since a readiness
// poll and a completion port are not straightforward to wait on
// together from the same call.
type wsaPollPoller struct {
	logger *Logger
	rates  *socketRateLimits

	mu  sync.Mutex
	fds map[windows.Handle]*Socket

	wakeRecv Handle
	wakeSend Handle
	wakeAddr endpoint.Endpoint
}

func newPoller(logger *Logger, rates *socketRateLimits) (poller, error) {
	if err := ensureWSAStartup(); err != nil {
		return nil, errFromErrno("wsastartup", err)
	}

	recv, err := openHandle(FamilyIPv4, TypeDatagram)
	if err != nil {
		return nil, err
	}
	loopback := endpoint.FromAddrPort(netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), 0))
	if err := bindHandle(recv, loopback); err != nil {
		_ = closeHandle(recv)
		return nil, err
	}
	addr, err := localEndpoint(recv)
	if err != nil {
		_ = closeHandle(recv)
		return nil, err
	}

	send, err := openHandle(FamilyIPv4, TypeDatagram)
	if err != nil {
		_ = closeHandle(recv)
		return nil, err
	}

	return &wsaPollPoller{
		logger:   logger,
		rates:    rates,
		fds:      make(map[windows.Handle]*Socket),
		wakeRecv: recv,
		wakeSend: send,
		wakeAddr: addr,
	}, nil
}

func (p *wsaPollPoller) registerSocket(s *Socket) error {
	p.mu.Lock()
	p.fds[windows.Handle(s.handle)] = s
	p.mu.Unlock()
	return nil
}

func (p *wsaPollPoller) unregisterSocket(s *Socket) error {
	p.mu.Lock()
	delete(p.fds, windows.Handle(s.handle))
	p.mu.Unlock()
	return nil
}

func (p *wsaPollPoller) wait(timeout time.Duration) ([]pollEvent, error) {
	p.mu.Lock()
	fds := make([]windows.WSAPollFd, 0, len(p.fds)+1)
	sockets := make([]*Socket, 0, len(p.fds)+1)
	fds = append(fds, windows.WSAPollFd{Fd: windows.Handle(p.wakeRecv), Events: windows.POLLIN})
	sockets = append(sockets, nil)
	for h, s := range p.fds {
		fds = append(fds, windows.WSAPollFd{Fd: h, Events: windows.POLLIN | windows.POLLOUT})
		sockets = append(sockets, s)
	}
	p.mu.Unlock()

	_, err := windows.WSAPoll(fds, int32(timeoutMillis(timeout)))
	if err != nil {
		if err == windows.WSAEINTR {
			if p.rates.allow(p.wakeRecv, logCategoryReactor) {
				p.logger.Debug().Str("category", logCategoryReactor).Log("wsapoll interrupted by signal")
			}
			return nil, nil
		}
		return nil, errFromErrno("wsapoll", err)
	}

	var events []pollEvent
	for i, fd := range fds {
		if fd.REvents == 0 {
			continue
		}
		if sockets[i] == nil {
			var buf [512]byte
			for {
				if _, _, err := windows.Recvfrom(windows.Handle(p.wakeRecv), buf[:], 0); err != nil {
					break
				}
			}
			continue
		}
		events = append(events, pollEvent{
			socket:   sockets[i],
			readable: fd.REvents&(windows.POLLIN|windows.POLLHUP) != 0,
			writable: fd.REvents&windows.POLLOUT != 0,
			errored:  fd.REvents&windows.POLLERR != 0,
			hangup:   fd.REvents&windows.POLLHUP != 0,
		})
	}
	return events, nil
}

func (p *wsaPollPoller) wake() error {
	_, err := sendtoHandle(p.wakeSend, []byte{1}, p.wakeAddr)
	return err
}

func (p *wsaPollPoller) close() error {
	_ = closeHandle(p.wakeSend)
	return closeHandle(p.wakeRecv)
}

// attachLoadBalance reports [KindOperationNotSupported]: Winsock has no
// socket option that classifies traffic across a reuse-port-style
// listener group the way Linux's CBPF attachment does.
func attachLoadBalance(h Handle, program []byte) error {
	return newError("load_balance", KindOperationNotSupported, nil)
}
