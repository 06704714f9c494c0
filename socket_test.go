//go:build linux || darwin

package asyncsock

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"code.hybscloud.com/asyncsock/endpoint"
	"code.hybscloud.com/asyncsock/intrusive"
)

func loopback(port uint16) endpoint.Endpoint {
	return endpoint.FromAddrPort(netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), port))
}

// TestSocket_SyncSurface exercises the blocking Bind/Listen/Accept/
// Connect/Shutdown/GetOption/SetOption surface directly, without a
// reactor.
func TestSocket_SyncSurface(t *testing.T) {
	listener, err := Open(FamilyIPv4, TypeStream)
	require.NoError(t, err)
	defer listener.Close()

	require.NoError(t, listener.Bind(loopback(0)))
	require.NoError(t, listener.Listen(16))

	addr, err := listener.LocalEndpoint()
	require.NoError(t, err)

	require.NoError(t, listener.SetOption(OptKeepAlive, true))
	v, err := listener.GetOption(OptKeepAlive)
	require.NoError(t, err)
	require.Equal(t, true, v)

	_, err = listener.GetOption(OptionName(255))
	require.Error(t, err)
	require.True(t, Is(err, KindNoProtocolOption))

	client, err := Open(FamilyIPv4, TypeStream)
	require.NoError(t, err)
	defer client.Close()

	acceptDone := make(chan struct{})
	var server *Socket
	var acceptErr error
	go func() {
		defer close(acceptDone)
		server, _, acceptErr = listener.Accept()
	}()

	require.NoError(t, client.Connect(addr))
	<-acceptDone
	require.NoError(t, acceptErr)
	defer server.Close()

	n, err := client.Send([][]byte{[]byte("ping")})
	require.NoError(t, err)
	require.Equal(t, 4, n)

	buf := make([]byte, 4)
	n, err = server.Receive([][]byte{buf})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "ping", string(buf))

	require.NoError(t, client.Shutdown(unix.SHUT_WR))
}

// TestSocket_UDPEcho exercises the synchronous SendTo/ReceiveFrom
// surface between two bound UDP sockets.
func TestSocket_UDPEcho(t *testing.T) {
	server, err := Open(FamilyIPv4, TypeDatagram)
	require.NoError(t, err)
	defer server.Close()
	require.NoError(t, server.Bind(loopback(0)))
	serverAddr, err := server.LocalEndpoint()
	require.NoError(t, err)

	client, err := Open(FamilyIPv4, TypeDatagram)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Bind(loopback(0)))

	n, err := client.SendTo([]byte("hello"), serverAddr)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, from, flags, err := server.ReceiveFrom(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf[:n]))
	require.Zero(t, flags)

	n, err = server.SendTo(buf[:n], from)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	n, _, flags, err = client.ReceiveFrom(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf[:n]))
	require.Zero(t, flags)
}

// TestSocket_AsyncSendToReceiveFrom exercises StartSendTo/
// StartReceiveFrom through a Reactor.
func TestSocket_AsyncSendToReceiveFrom(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()

	server, err := Open(FamilyIPv4, TypeDatagram)
	require.NoError(t, err)
	require.NoError(t, server.Bind(loopback(0)))
	serverAddr, err := server.LocalEndpoint()
	require.NoError(t, err)
	require.NoError(t, r.Register(server))
	defer server.Close()

	client, err := Open(FamilyIPv4, TypeDatagram)
	require.NoError(t, err)
	require.NoError(t, client.Bind(loopback(0)))
	require.NoError(t, r.Register(client))
	defer client.Close()

	recvBuf := make([]byte, 16)
	recvReq := &Request{Iov: [][]byte{recvBuf}}
	require.NoError(t, server.StartReceiveFrom(recvReq))

	sendReq := &Request{Iov: [][]byte{[]byte("datagram")}}
	require.NoError(t, client.StartSendTo(sendReq, serverAddr))

	var done intrusive.FIFO[Request, *Request]
	deadline := time.Now().Add(2 * time.Second)
	for done.Len() < 2 && time.Now().Before(deadline) {
		require.NoError(t, r.Poll(50*time.Millisecond))
		r.Drain(&done)
	}
	require.Equal(t, 2, done.Len())

	for {
		req, ok := done.Pop()
		if !ok {
			break
		}
		require.NoError(t, req.Err())
		if req.Variant == VariantReceiveFrom {
			require.Equal(t, 8, req.BytesTransferred)
			require.Equal(t, "datagram", string(recvBuf[:8]))
		}
	}
}

// TestSocket_TwoReceivesOneDatagram posts two StartReceiveFrom
// requests before any data arrives; only the head-of-queue request may
// be satisfied by the single arriving datagram, the other stays
// pending.
func TestSocket_TwoReceivesOneDatagram(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()

	server, err := Open(FamilyIPv4, TypeDatagram)
	require.NoError(t, err)
	require.NoError(t, server.Bind(loopback(0)))
	serverAddr, err := server.LocalEndpoint()
	require.NoError(t, err)
	require.NoError(t, r.Register(server))
	defer server.Close()

	client, err := Open(FamilyIPv4, TypeDatagram)
	require.NoError(t, err)
	require.NoError(t, client.Bind(loopback(0)))
	defer client.Close()

	buf1 := make([]byte, 16)
	buf2 := make([]byte, 16)
	req1 := &Request{Iov: [][]byte{buf1}}
	req2 := &Request{Iov: [][]byte{buf2}}
	require.NoError(t, server.StartReceiveFrom(req1))
	require.NoError(t, server.StartReceiveFrom(req2))

	n, err := client.SendTo([]byte("one-shot"), serverAddr)
	require.NoError(t, err)
	require.Equal(t, 8, n)

	var done intrusive.FIFO[Request, *Request]
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.NoError(t, r.Poll(20*time.Millisecond))
		r.Drain(&done)
	}
	require.Equal(t, 1, done.Len(), "only the first queued receive should complete for a single datagram")

	completed, ok := done.Pop()
	require.True(t, ok)
	require.Same(t, req1, completed)
	require.NoError(t, completed.Err())
	require.Equal(t, 8, completed.BytesTransferred)
	require.Equal(t, "one-shot", string(buf1[:8]))
}

// TestSocket_AsyncAcceptConnect exercises StartAccept/StartConnect
// through a Reactor end to end, covering the fix that keeps an async
// Connect queued until a genuine writable-readiness dispatch — not
// StartConnect's own synchronous issue attempt — resolves it.
func TestSocket_AsyncAcceptConnect(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()

	listener, err := Open(FamilyIPv4, TypeStream)
	require.NoError(t, err)
	require.NoError(t, listener.Bind(loopback(0)))
	require.NoError(t, listener.Listen(16))
	addr, err := listener.LocalEndpoint()
	require.NoError(t, err)
	require.NoError(t, r.Register(listener))
	defer listener.Close()

	client, err := Open(FamilyIPv4, TypeStream)
	require.NoError(t, err)
	require.NoError(t, r.Register(client))
	defer client.Close()

	acceptReq := &Request{}
	require.NoError(t, listener.StartAccept(acceptReq))

	connectReq := &Request{}
	require.NoError(t, client.StartConnect(connectReq, addr))

	var done intrusive.FIFO[Request, *Request]
	deadline := time.Now().Add(2 * time.Second)
	for done.Len() < 2 && time.Now().Before(deadline) {
		require.NoError(t, r.Poll(50*time.Millisecond))
		r.Drain(&done)
	}
	require.Equal(t, 2, done.Len())

	var sawAccept, sawConnect bool
	for {
		req, ok := done.Pop()
		if !ok {
			break
		}
		require.NoError(t, req.Err())
		switch req.Variant {
		case VariantAccept:
			sawAccept = true
			require.NotNil(t, req.Accepted)
			defer req.Accepted.Close()
		case VariantConnect:
			sawConnect = true
		}
	}
	require.True(t, sawAccept)
	require.True(t, sawConnect)
}
