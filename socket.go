package asyncsock

import (
	"sync"

	"code.hybscloud.com/asyncsock/endpoint"
)

// Socket holds a native handle, its protocol family and type, and an
// optional back-pointer to the reactor it is registered with. At most
// one reactor registration per socket is permitted; registering twice
// is a programming error (see [Reactor.Register]).
//
// Receive-side and send-side request queues are separate; an acceptor
// socket reinterprets its send side as the accept queue, per spec.
type Socket struct {
	mu       sync.Mutex
	handle   Handle
	family   AddressFamily
	sockType Type
	reactor  *Reactor

	recv side
	send side

	acceptor bool
	closed   bool

	// EnableConnectionAborted, when false (the default), treats
	// ECONNABORTED during accept as transient and retries rather than
	// surfacing it to the caller.
	EnableConnectionAborted bool
}

// Open creates a new non-blocking socket of the given family and type.
func Open(family AddressFamily, sockType Type) (*Socket, error) {
	if err := ensureProcessInit(); err != nil {
		return nil, err
	}
	h, err := openHandle(family, sockType)
	if err != nil {
		return nil, err
	}
	return &Socket{handle: h, family: family, sockType: sockType}, nil
}

// Assign takes ownership of an externally created handle.
func Assign(family AddressFamily, sockType Type, h Handle) *Socket {
	return &Socket{handle: h, family: family, sockType: sockType}
}

// Socketpair creates a connected pair of sockets, for tests and
// internal loopback use, without binding a real network port.
func Socketpair(family AddressFamily, sockType Type) (*Socket, *Socket, error) {
	if err := ensureProcessInit(); err != nil {
		return nil, nil, err
	}
	a, b, err := socketpairHandles(family, sockType)
	if err != nil {
		return nil, nil, err
	}
	return &Socket{handle: a, family: family, sockType: sockType},
		&Socket{handle: b, family: family, sockType: sockType}, nil
}

// Release yields the handle and marks this Socket closed without
// closing the underlying handle; the caller takes ownership.
func (s *Socket) Release() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handle
	s.handle = InvalidHandle
	s.closed = true
	return h
}

// NativeHandle returns the underlying OS handle.
func (s *Socket) NativeHandle() Handle { return s.handle }

// Family returns the socket's address family.
func (s *Socket) Family() AddressFamily { return s.family }

// Type returns the socket's type.
func (s *Socket) Type() Type { return s.sockType }

// Reactor returns the reactor this socket is registered with, or nil.
func (s *Socket) Reactor() *Reactor { return s.reactor }

// Bind binds the socket to local.
func (s *Socket) Bind(local endpoint.Endpoint) error {
	return bindHandle(s.handle, local)
}

// Listen marks the socket as an acceptor and starts listening.
func (s *Socket) Listen(backlog int) error {
	if err := listenHandle(s.handle, s.family, backlog); err != nil {
		return err
	}
	s.acceptor = true
	return nil
}

// Connect performs a synchronous, blocking connect: the call does not
// return until the connection is established or fails.
func (s *Socket) Connect(remote endpoint.Endpoint) error {
	if err := connectHandle(s.handle, remote); err != nil {
		return err
	}
	if err := waitHandle(s.handle, true); err != nil {
		return err
	}
	return pendingSocketError(s.handle)
}

// Accept performs a synchronous, blocking accept, retrying
// ECONNABORTED unless EnableConnectionAborted is set.
func (s *Socket) Accept() (*Socket, endpoint.Endpoint, error) {
	for {
		nh, peer, err := acceptHandle(s.handle)
		if err == nil {
			return &Socket{handle: nh, family: s.family, sockType: s.sockType}, peer, nil
		}
		if Is(err, KindConnectionAborted) && !s.EnableConnectionAborted {
			continue
		}
		if Is(err, KindOperationWouldBlock) {
			if werr := waitHandle(s.handle, false); werr != nil {
				return nil, endpoint.Endpoint{}, werr
			}
			continue
		}
		return nil, endpoint.Endpoint{}, err
	}
}

// Send writes every buffer in iov to a connected socket, blocking
// until all bytes are written or an error occurs.
func (s *Socket) Send(iov [][]byte) (int, error) {
	total := 0
	for _, buf := range iov {
		for len(buf) > 0 {
			n, err := writeHandle(s.handle, buf)
			if err != nil {
				if Is(err, KindOperationWouldBlock) {
					if werr := waitHandle(s.handle, true); werr != nil {
						return total, werr
					}
					continue
				}
				return total, err
			}
			total += n
			buf = buf[n:]
		}
	}
	return total, nil
}

// Receive reads into the first buffer of iov, blocking until data
// arrives or an error occurs. Only the first buffer is used: the sync
// surface does not implement scatter reads across multiple buffers.
func (s *Socket) Receive(iov [][]byte) (int, error) {
	if len(iov) == 0 {
		return 0, nil
	}
	for {
		n, err := readHandle(s.handle, iov[0])
		if err == nil {
			return n, nil
		}
		if Is(err, KindOperationWouldBlock) {
			if werr := waitHandle(s.handle, false); werr != nil {
				return 0, werr
			}
			continue
		}
		return 0, err
	}
}

// SendTo sends buf as one datagram to peer.
func (s *Socket) SendTo(buf []byte, peer endpoint.Endpoint) (int, error) {
	for {
		n, err := sendtoHandle(s.handle, buf, peer)
		if err == nil {
			return n, nil
		}
		if Is(err, KindOperationWouldBlock) {
			if werr := waitHandle(s.handle, true); werr != nil {
				return 0, werr
			}
			continue
		}
		return 0, err
	}
}

// ReceiveFrom receives one datagram into buf, reporting the sender's
// endpoint and whether the datagram was truncated to fit buf.
func (s *Socket) ReceiveFrom(buf []byte) (int, endpoint.Endpoint, RequestFlags, error) {
	for {
		n, from, flags, err := recvfromTruncated(s.handle, buf)
		if err == nil {
			return n, from, flags, nil
		}
		if Is(err, KindOperationWouldBlock) {
			if werr := waitHandle(s.handle, false); werr != nil {
				return 0, endpoint.Endpoint{}, 0, werr
			}
			continue
		}
		return 0, endpoint.Endpoint{}, 0, err
	}
}

// Shutdown half-closes the connection in the given direction(s).
func (s *Socket) Shutdown(how int) error {
	return shutdownHandle(s.handle, how)
}

// Close closes the underlying handle. It is idempotent from the
// outside: closing an already-closed Socket reports
// [KindBadFileDescriptor] rather than panicking. If registered with a
// reactor, all outstanding requests on both sides are failed with
// [KindBadFileDescriptor] before the handle is closed.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return newError("close", KindBadFileDescriptor, nil)
	}
	s.closed = true
	h := s.handle
	reactor := s.reactor
	s.mu.Unlock()

	if reactor != nil {
		reactor.unregister(s)
	}
	s.mu.Lock()
	s.handle = InvalidHandle
	s.mu.Unlock()
	return closeHandle(h)
}

// SetNonblocking toggles the handle's non-blocking mode explicitly,
// for the reactor's registration step ("each socket is made
// non-blocking on registration").
func (s *Socket) SetNonblocking(nonblocking bool) error {
	return setNonblocking(s.handle, nonblocking)
}

// IsNonblocking reports the handle's current non-blocking mode.
func (s *Socket) IsNonblocking() (bool, error) {
	return isNonblocking(s.handle)
}

// LocalEndpoint returns the socket's bound local address.
func (s *Socket) LocalEndpoint() (endpoint.Endpoint, error) {
	return localEndpoint(s.handle)
}

// RemoteEndpoint returns the socket's connected peer address.
func (s *Socket) RemoteEndpoint() (endpoint.Endpoint, error) {
	return peerEndpoint(s.handle)
}

// GetOption reads a socket option.
func (s *Socket) GetOption(name OptionName) (any, error) {
	return getOption(s.handle, name)
}

// SetOption sets a socket option.
func (s *Socket) SetOption(name OptionName, value any) error {
	return setOption(s.handle, name, value)
}

// maxIOV bounds scatter/gather length, mirroring the platform IOV_MAX
// most backends enforce (Linux/Darwin: 1024, Windows WSABUF arrays are
// typically capped far lower but 1024 keeps one constant for all
// platforms since nothing here issues a raw writev/WSASend with more
// elements than a handful in practice).
const maxIOV = 1024

// validateIov synchronously fails req with [KindArgumentListTooLong]
// if its buffer list exceeds the platform limit, per spec: such
// failures bypass the pending queue entirely.
func (s *Socket) validateIov(req *Request) bool {
	if len(req.Iov) > maxIOV {
		req.fail("validate", KindArgumentListTooLong)
		if s.reactor != nil {
			s.reactor.complete(req)
		}
		return false
	}
	return true
}

// Cork suppresses draining of side (true = send/accept side, false =
// receive side) until Uncork is called. Requests may still be posted
// while corked.
func (s *Socket) Cork(send bool) {
	if send {
		s.send.cork()
	} else {
		s.recv.cork()
	}
}

// Uncork re-enables draining of side and immediately attempts to drain
// whatever is pending.
func (s *Socket) Uncork(send bool) {
	if send {
		s.send.uncork()
		if s.acceptor {
			s.drainAccept()
		} else {
			s.drainSend()
		}
	} else {
		s.recv.uncork()
		s.drainReceive()
	}
}

func (s *Socket) drainReceive() {
	if s.reactor == nil {
		return
	}
	s.recv.drain(func(req *Request) bool { return s.reactor.issueReceive(s, req) })
}

func (s *Socket) drainSend() {
	if s.reactor == nil {
		return
	}
	s.send.drain(func(req *Request) bool { return s.reactor.issueSend(s, req) })
}

// StartReceive links req as a pending Receive and attempts to issue it
// immediately if the receive side is not corked.
func (s *Socket) StartReceive(req *Request) error {
	if s.reactor == nil {
		return newError("start_receive", KindInvalidArgument, nil)
	}
	req.reset()
	req.Variant = VariantReceive
	req.socket = s
	if !s.validateIov(req) {
		return nil
	}
	s.recv.push(req)
	s.drainReceive()
	return nil
}

// StartReceiveFrom links req as a pending ReceiveFrom.
func (s *Socket) StartReceiveFrom(req *Request) error {
	if s.reactor == nil {
		return newError("start_receive_from", KindInvalidArgument, nil)
	}
	req.reset()
	req.Variant = VariantReceiveFrom
	req.socket = s
	if !s.validateIov(req) {
		return nil
	}
	s.recv.push(req)
	s.drainReceive()
	return nil
}

// StartSend links req as a pending Send.
func (s *Socket) StartSend(req *Request) error {
	if s.reactor == nil {
		return newError("start_send", KindInvalidArgument, nil)
	}
	req.reset()
	req.Variant = VariantSend
	req.socket = s
	if !s.validateIov(req) {
		return nil
	}
	s.send.push(req)
	s.drainSend()
	return nil
}

// StartSendTo links req as a pending SendTo with destination peer.
func (s *Socket) StartSendTo(req *Request, peer endpoint.Endpoint) error {
	if s.reactor == nil {
		return newError("start_send_to", KindInvalidArgument, nil)
	}
	req.reset()
	req.Variant = VariantSendTo
	req.Peer = peer
	req.socket = s
	if !s.validateIov(req) {
		return nil
	}
	s.send.push(req)
	s.drainSend()
	return nil
}

// StartConnect links req as a pending Connect, sharing the send side's
// queue (a connect completes by way of writability, same as a send).
func (s *Socket) StartConnect(req *Request, remote endpoint.Endpoint) error {
	if s.reactor == nil {
		return newError("start_connect", KindInvalidArgument, nil)
	}
	req.reset()
	req.Variant = VariantConnect
	req.Peer = remote
	req.socket = s
	if err := connectHandle(s.handle, remote); err != nil {
		req.err = wrapAsError(err)
		s.reactor.complete(req)
		return nil
	}
	s.send.push(req)
	s.drainSend()
	return nil
}

// StartAccept links req as a pending Accept, sharing the acceptor's
// send-side queue reinterpreted as an accept queue.
func (s *Socket) StartAccept(req *Request) error {
	if s.reactor == nil {
		return newError("start_accept", KindInvalidArgument, nil)
	}
	req.reset()
	req.Variant = VariantAccept
	req.socket = s
	s.send.push(req)
	s.drainAccept()
	return nil
}

// drainAccept drains the acceptor's accept queue (stored on the send
// side, per spec) using the same issueReceive dispatch as ordinary
// receives; issueReceive switches on req.Variant to call acceptHandle.
func (s *Socket) drainAccept() {
	if s.reactor == nil {
		return
	}
	s.send.drain(func(req *Request) bool { return s.reactor.issueReceive(s, req) })
}
