//go:build linux || darwin

package asyncsock

import (
	"golang.org/x/sys/unix"

	"code.hybscloud.com/asyncsock/endpoint"
)

// platformInit is a no-op on POSIX: no process-wide setup is needed
// before opening the first socket (unlike Windows' WSAStartup).
func platformInit() error { return nil }

// addressFamilyToDomain maps a portable AddressFamily to its raw
// syscall domain constant.
func addressFamilyToDomain(f AddressFamily) int {
	if f == FamilyIPv6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

func socketTypeToRaw(t Type) int {
	if t == TypeDatagram {
		return unix.SOCK_DGRAM
	}
	return unix.SOCK_STREAM
}

// openHandle opens a new non-blocking, close-on-exec native socket.
func openHandle(family AddressFamily, sockType Type) (Handle, error) {
	fd, err := unix.Socket(addressFamilyToDomain(family), socketTypeToRaw(sockType)|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return InvalidHandle, errFromErrno("open", err)
	}
	return Handle(fd), nil
}

func closeHandle(h Handle) error {
	if err := unix.Close(int(h)); err != nil {
		return errFromErrno("close", err)
	}
	return nil
}

func bindHandle(h Handle, local endpoint.Endpoint) error {
	if err := unix.Bind(int(h), endpointToSockaddr(local)); err != nil {
		return errFromErrno("bind", err)
	}
	return nil
}

// listenHandle starts listening. family is unused on POSIX, where
// listen on an unbound socket auto-binds to the wildcard address; it
// exists only so the call signature matches handle_windows.go, which
// must emulate that behavior explicitly.
func listenHandle(h Handle, family AddressFamily, backlog int) error {
	if err := unix.Listen(int(h), backlog); err != nil {
		return errFromErrno("listen", err)
	}
	return nil
}

// acceptHandle accepts one pending connection, returning the new
// non-blocking handle and the peer's endpoint. On EAGAIN it returns
// operation_would_block, which callers distinguish to keep the
// request pending rather than failing it.
func acceptHandle(h Handle) (Handle, endpoint.Endpoint, error) {
	nfd, sa, err := unix.Accept4(int(h), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return InvalidHandle, endpoint.Endpoint{}, errFromErrno("accept", err)
	}
	return Handle(nfd), sockaddrToEndpoint(sa), nil
}

// connectHandle starts a non-blocking connect. EINPROGRESS is not an
// error here: completion is observed via writability.
func connectHandle(h Handle, remote endpoint.Endpoint) error {
	err := unix.Connect(int(h), endpointToSockaddr(remote))
	if err == nil || err == unix.EINPROGRESS {
		return nil
	}
	return errFromErrno("connect", err)
}

func shutdownHandle(h Handle, how int) error {
	if err := unix.Shutdown(int(h), how); err != nil {
		return errFromErrno("shutdown", err)
	}
	return nil
}

func setNonblocking(h Handle, nonblocking bool) error {
	if err := unix.SetNonblock(int(h), nonblocking); err != nil {
		return errFromErrno("set_nonblocking", err)
	}
	return nil
}

func isNonblocking(h Handle) (bool, error) {
	flags, err := unix.FcntlInt(uintptr(h), unix.F_GETFL, 0)
	if err != nil {
		return false, errFromErrno("fcntl", err)
	}
	return flags&unix.O_NONBLOCK != 0, nil
}

// waitHandle blocks until h is ready for the requested direction, used
// by the synchronous socket surface (every handle is non-blocking from
// [openHandle] onward, so sync ops poll rather than relying on the
// kernel to block the calling thread directly).
func waitHandle(h Handle, write bool) error {
	events := int16(unix.POLLIN)
	if write {
		events = unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(h), Events: events}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			return nil
		}
		if err == unix.EINTR {
			continue
		}
		return errFromErrno("poll", err)
	}
}

func socketpairHandles(family AddressFamily, sockType Type) (Handle, Handle, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, socketTypeToRaw(sockType)|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return InvalidHandle, InvalidHandle, errFromErrno("socketpair", err)
	}
	return Handle(fds[0]), Handle(fds[1]), nil
}

func localEndpoint(h Handle) (endpoint.Endpoint, error) {
	sa, err := unix.Getsockname(int(h))
	if err != nil {
		return endpoint.Endpoint{}, errFromErrno("getsockname", err)
	}
	return sockaddrToEndpoint(sa), nil
}

func peerEndpoint(h Handle) (endpoint.Endpoint, error) {
	sa, err := unix.Getpeername(int(h))
	if err != nil {
		return endpoint.Endpoint{}, errFromErrno("getpeername", err)
	}
	return sockaddrToEndpoint(sa), nil
}

// pendingSocketError extracts and clears SO_ERROR, the mechanism
// readiness backends use to discover a failed non-blocking connect.
func pendingSocketError(h Handle) error {
	errno, err := unix.GetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return errFromErrno("getsockopt", err)
	}
	if errno == 0 {
		return nil
	}
	return errFromErrno("pending_error", unix.Errno(errno))
}

// writeHandle writes buf to a connected socket, returning bytes
// written on a partial/short write rather than an error.
func writeHandle(h Handle, buf []byte) (int, error) {
	n, err := unix.Write(int(h), buf)
	if err != nil {
		return 0, errFromErrno("send", err)
	}
	return n, nil
}

func readHandle(h Handle, buf []byte) (int, error) {
	n, err := unix.Read(int(h), buf)
	if err != nil {
		return 0, errFromErrno("receive", err)
	}
	return n, nil
}

func sendtoHandle(h Handle, buf []byte, to endpoint.Endpoint) (int, error) {
	if err := unix.Sendto(int(h), buf, 0, endpointToSockaddr(to)); err != nil {
		return 0, errFromErrno("send_to", err)
	}
	return len(buf), nil
}

// recvfromTruncated receives one datagram, reporting via
// [FlagMessageTruncated] whether it was larger than buf (MSG_TRUNC),
// per the "message-truncated" boundary behavior. The returned count
// never exceeds len(buf).
func recvfromTruncated(h Handle, buf []byte) (int, endpoint.Endpoint, RequestFlags, error) {
	n, _, flags, from, err := unix.Recvmsg(int(h), buf, nil, unix.MSG_TRUNC)
	if err != nil {
		return 0, endpoint.Endpoint{}, 0, errFromErrno("receive_from", err)
	}
	var rf RequestFlags
	if flags&unix.MSG_TRUNC != 0 {
		rf |= FlagMessageTruncated
	}
	if n > len(buf) {
		// Linux reports the datagram's full length when MSG_TRUNC is set.
		n = len(buf)
	}
	var ep endpoint.Endpoint
	if from != nil {
		ep = sockaddrToEndpoint(from)
	}
	return n, ep, rf, nil
}
