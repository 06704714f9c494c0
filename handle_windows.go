//go:build windows

package asyncsock

import (
	"net/netip"
	"sync"

	"golang.org/x/sys/windows"

	"code.hybscloud.com/asyncsock/endpoint"
)

var wsaInit sync.Once

// ensureWSAStartup brings up Winsock exactly once per process, lazily,
// the first time a socket is opened.
func ensureWSAStartup() error {
	var startupErr error
	wsaInit.Do(func() {
		var data windows.WSAData
		startupErr = windows.WSAStartup(uint32(0x0202), &data)
	})
	return startupErr
}

// platformInit brings up Winsock once per process.
func platformInit() error { return ensureWSAStartup() }

func addressFamilyToDomain(f AddressFamily) int {
	if f == FamilyIPv6 {
		return windows.AF_INET6
	}
	return windows.AF_INET
}

func socketTypeToRaw(t Type) int {
	if t == TypeDatagram {
		return windows.SOCK_DGRAM
	}
	return windows.SOCK_STREAM
}

func openHandle(family AddressFamily, sockType Type) (Handle, error) {
	if err := ensureWSAStartup(); err != nil {
		return InvalidHandle, errFromErrno("open", err)
	}
	proto := 0
	if sockType == TypeDatagram {
		proto = windows.IPPROTO_UDP
	} else {
		proto = windows.IPPROTO_TCP
	}
	s, err := windows.WSASocket(int32(addressFamilyToDomain(family)), int32(socketTypeToRaw(sockType)), int32(proto), nil, 0, windows.WSA_FLAG_OVERLAPPED|windows.WSA_FLAG_NO_HANDLE_INHERIT)
	if err != nil {
		return InvalidHandle, errFromErrno("open", err)
	}
	h := Handle(s)
	if err := setNonblocking(h, true); err != nil {
		_ = closeHandle(h)
		return InvalidHandle, err
	}
	return h, nil
}

func closeHandle(h Handle) error {
	if err := windows.Closesocket(windows.Handle(h)); err != nil {
		return errFromErrno("close", err)
	}
	return nil
}

func bindHandle(h Handle, local endpoint.Endpoint) error {
	if err := windows.Bind(windows.Handle(h), endpointToSockaddr(local)); err != nil {
		return errFromErrno("bind", err)
	}
	return nil
}

// listenHandle starts listening. Unlike POSIX, WSAListen on an unbound
// socket fails with WSAEINVAL; this emulates POSIX's implicit bind to
// the family's wildcard address first, to match accept/connect
// behavior across platforms.
func listenHandle(h Handle, family AddressFamily, backlog int) error {
	err := windows.Listen(windows.Handle(h), backlog)
	if err == windows.WSAEINVAL {
		if bindErr := bindHandle(h, wildcardEndpoint(family)); bindErr != nil {
			return bindErr
		}
		err = windows.Listen(windows.Handle(h), backlog)
	}
	if err != nil {
		return errFromErrno("listen", err)
	}
	return nil
}

func wildcardEndpoint(family AddressFamily) endpoint.Endpoint {
	addr := netip.IPv4Unspecified()
	if family == FamilyIPv6 {
		addr = netip.IPv6Unspecified()
	}
	return endpoint.FromAddrPort(netip.AddrPortFrom(addr, 0))
}

func acceptHandle(h Handle) (Handle, endpoint.Endpoint, error) {
	nfd, sa, err := windows.Accept(windows.Handle(h))
	if err != nil {
		return InvalidHandle, endpoint.Endpoint{}, errFromErrno("accept", err)
	}
	newHandle := Handle(nfd)
	if err := setNonblocking(newHandle, true); err != nil {
		_ = closeHandle(newHandle)
		return InvalidHandle, endpoint.Endpoint{}, err
	}
	return newHandle, sockaddrToEndpoint(sa), nil
}

func connectHandle(h Handle, remote endpoint.Endpoint) error {
	err := windows.Connect(windows.Handle(h), endpointToSockaddr(remote))
	if err == nil || err == windows.WSAEWOULDBLOCK {
		return nil
	}
	return errFromErrno("connect", err)
}

func shutdownHandle(h Handle, how int) error {
	if err := windows.Shutdown(windows.Handle(h), how); err != nil {
		return errFromErrno("shutdown", err)
	}
	return nil
}

func setNonblocking(h Handle, nonblocking bool) error {
	var arg uint32
	if nonblocking {
		arg = 1
	}
	if err := windows.Ioctlsocket(windows.Handle(h), windows.FIONBIO, &arg); err != nil {
		return errFromErrno("set_nonblocking", err)
	}
	return nil
}

// isNonblocking always reports true, the mode every handle asyncsock
// opens or accepts is put in. Windows exposes no ioctl to query
// FIONBIO, and nothing records later setNonblocking calls, so a handle
// switched back to blocking mode is still reported as non-blocking.
func isNonblocking(h Handle) (bool, error) {
	return true, nil
}

// waitHandle blocks until h is ready for the requested direction,
// mirroring handle_unix.go's waitHandle for the synchronous socket
// surface.
func waitHandle(h Handle, write bool) error {
	events := int16(windows.POLLIN)
	if write {
		events = windows.POLLOUT
	}
	fds := []windows.WSAPollFd{{Fd: windows.Handle(h), Events: events}}
	for {
		_, err := windows.WSAPoll(fds, -1)
		if err == nil {
			return nil
		}
		if err == windows.WSAEINTR {
			continue
		}
		return errFromErrno("poll", err)
	}
}

func socketpairHandles(family AddressFamily, sockType Type) (Handle, Handle, error) {
	// AF_UNIX socketpair support landed late on Windows and is
	// unreliable across versions; asyncsock loopback-connects a pair
	// of TCP sockets instead.
	if sockType != TypeStream {
		return InvalidHandle, InvalidHandle, newError("socketpair", KindProtocolNotSupported, nil)
	}
	listener, err := openHandle(FamilyIPv4, TypeStream)
	if err != nil {
		return InvalidHandle, InvalidHandle, err
	}
	defer closeHandle(listener)

	loopback := endpoint.FromAddrPort(netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), 0))
	if err := bindHandle(listener, loopback); err != nil {
		return InvalidHandle, InvalidHandle, err
	}
	if err := listenHandle(listener, FamilyIPv4, 1); err != nil {
		return InvalidHandle, InvalidHandle, err
	}
	addr, err := localEndpoint(listener)
	if err != nil {
		return InvalidHandle, InvalidHandle, err
	}

	client, err := openHandle(FamilyIPv4, TypeStream)
	if err != nil {
		return InvalidHandle, InvalidHandle, err
	}
	if err := connectHandle(client, addr); err != nil && !Is(err, KindOperationWouldBlock) {
		_ = closeHandle(client)
		return InvalidHandle, InvalidHandle, err
	}

	server, _, err := acceptHandle(listener)
	if err != nil {
		_ = closeHandle(client)
		return InvalidHandle, InvalidHandle, err
	}
	return server, client, nil
}

func localEndpoint(h Handle) (endpoint.Endpoint, error) {
	sa, err := windows.Getsockname(windows.Handle(h))
	if err != nil {
		return endpoint.Endpoint{}, errFromErrno("getsockname", err)
	}
	return sockaddrToEndpoint(sa), nil
}

func peerEndpoint(h Handle) (endpoint.Endpoint, error) {
	sa, err := windows.Getpeername(windows.Handle(h))
	if err != nil {
		return endpoint.Endpoint{}, errFromErrno("getpeername", err)
	}
	return sockaddrToEndpoint(sa), nil
}

func pendingSocketError(h Handle) error {
	v, err := getsockoptInt(windows.Handle(h), windows.SOL_SOCKET, windows.SO_ERROR)
	if err != nil {
		return err
	}
	code := v.(int)
	if code == 0 {
		return nil
	}
	return errFromErrno("pending_error", windows.Errno(code))
}

func writeHandle(h Handle, buf []byte) (int, error) {
	n, err := windows.Write(windows.Handle(h), buf)
	if err != nil {
		return 0, errFromErrno("send", err)
	}
	return n, nil
}

func readHandle(h Handle, buf []byte) (int, error) {
	n, err := windows.Read(windows.Handle(h), buf)
	if err != nil {
		return 0, errFromErrno("receive", err)
	}
	return n, nil
}

func sendtoHandle(h Handle, buf []byte, to endpoint.Endpoint) (int, error) {
	if err := windows.Sendto(windows.Handle(h), buf, 0, endpointToSockaddr(to)); err != nil {
		return 0, errFromErrno("send_to", err)
	}
	return len(buf), nil
}

// recvfromTruncated receives one datagram. Windows reports truncation
// as WSAEMSGSIZE rather than a flag; the partial payload is still
// delivered into buf, so that case is translated into a successful,
// full-buffer read carrying [FlagMessageTruncated] instead of an error.
func recvfromTruncated(h Handle, buf []byte) (int, endpoint.Endpoint, RequestFlags, error) {
	n, from, err := windows.Recvfrom(windows.Handle(h), buf, 0)
	if err == windows.WSAEMSGSIZE {
		var ep endpoint.Endpoint
		if from != nil {
			ep = sockaddrToEndpoint(from)
		}
		return len(buf), ep, FlagMessageTruncated, nil
	}
	if err != nil {
		return 0, endpoint.Endpoint{}, 0, errFromErrno("receive_from", err)
	}
	var ep endpoint.Endpoint
	if from != nil {
		ep = sockaddrToEndpoint(from)
	}
	return n, ep, 0, nil
}
