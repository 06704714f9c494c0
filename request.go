package asyncsock

import (
	"code.hybscloud.com/asyncsock/endpoint"
	"code.hybscloud.com/asyncsock/intrusive"
)

// Variant identifies the kind of operation a [Request] describes.
type Variant uint8

const (
	VariantNone Variant = iota
	VariantSend
	VariantReceive
	VariantSendTo
	VariantReceiveFrom
	VariantConnect
	VariantAccept
)

func (v Variant) String() string {
	switch v {
	case VariantSend:
		return "send"
	case VariantReceive:
		return "receive"
	case VariantSendTo:
		return "send_to"
	case VariantReceiveFrom:
		return "receive_from"
	case VariantConnect:
		return "connect"
	case VariantAccept:
		return "accept"
	default:
		return "none"
	}
}

// RequestFlags carries per-operation flags, both requested (Flags) and
// reported back on completion (ResultFlags).
type RequestFlags uint32

const (
	// FlagMessageTruncated is set on a completed receive whose buffer
	// was smaller than the datagram actually received.
	FlagMessageTruncated RequestFlags = 1 << iota
)

// Request is caller-owned storage describing one in-flight
// asynchronous operation. The runtime never allocates a Request: the
// caller embeds or pools one and passes a pointer to a Socket's
// Start* method. A Request is linked into at most one queue at a
// time — a socket's pending queue, then the reactor's completion
// queue — and must not be mutated by the caller while linked.
type Request struct {
	hook intrusive.Hook[Request]

	Variant Variant

	// Iov is the buffer list for send/receive variants. For
	// Send/SendTo it is the data to write; for Receive/ReceiveFrom it
	// is the destination buffer. The asynchronous paths issue only
	// Iov[0]; any further buffers are ignored (the list length is still
	// checked against the iov limit).
	Iov [][]byte

	// Peer is the destination for SendTo, or the observed sender for
	// ReceiveFrom/Accept (the accepted connection's remote endpoint).
	Peer endpoint.Endpoint

	Flags RequestFlags

	// BytesTransferred is the number of bytes actually sent or
	// received, populated on completion.
	BytesTransferred int

	// Accepted holds the newly accepted Socket once an Accept
	// variant request completes successfully.
	Accepted *Socket

	// socket is the Socket this request is (or was) pending on.
	socket *Socket

	// err holds the portable error slot; nil on success.
	err *Error

	// userData is opaque caller storage round-tripped through the
	// completion queue, e.g. to correlate a request to higher-level
	// application state without a map lookup.
	userData any

	// connectArmed distinguishes a Connect request's first issue
	// attempt (made synchronously by StartConnect, before any
	// writability has actually been observed) from a later one made
	// because the poller dispatched a genuine writable event. Only the
	// latter may inspect SO_ERROR and complete the request.
	connectArmed bool
}

// Link implements [intrusive.Linked].
func (r *Request) Link() *intrusive.Hook[Request] { return &r.hook }

// Err returns the portable error recorded on this request, or nil if
// the operation succeeded.
func (r *Request) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// SetUserData stores an opaque value on the request, retrievable via
// UserData after the request completes.
func (r *Request) SetUserData(v any) { r.userData = v }

// UserData returns the value last passed to SetUserData.
func (r *Request) UserData() any { return r.userData }

// reset clears a request for reuse, e.g. when recycled from a
// [intrusive.Stack] free list between operations.
func (r *Request) reset() {
	r.Variant = VariantNone
	r.Iov = nil
	r.Peer = endpoint.Endpoint{}
	r.Flags = 0
	r.BytesTransferred = 0
	r.Accepted = nil
	r.socket = nil
	r.err = nil
	r.userData = nil
	r.connectArmed = false
}

func (r *Request) iovTotalLen() int {
	n := 0
	for _, b := range r.Iov {
		n += len(b)
	}
	return n
}

// fail populates the request's error slot, classifying kind, and
// returns it ready for completion delivery.
func (r *Request) fail(op string, kind Kind) *Request {
	r.err = newError(op, kind, nil)
	return r
}
