package asyncsock

import "code.hybscloud.com/asyncsock/intrusive"

// side is one direction's worth of per-socket request-queue state:
// the pending FIFO of not-yet-issued or partially-issued requests,
// and a corked flag suppressing draining. Acceptor sockets reuse the
// send side's storage, reinterpreting it as an accept queue.
type side struct {
	pending intrusive.FIFO[Request, *Request]
	corked  bool
}

// cork suppresses draining of this side until uncork is called.
func (s *side) cork() { s.corked = true }

// uncork re-enables draining. Callers are responsible for triggering
// a drain afterward ([Socket.Uncork] does this immediately).
func (s *side) uncork() { s.corked = false }

// push links req onto the tail of the pending queue.
func (s *side) push(req *Request) { s.pending.Push(req) }

// empty reports whether the side has no pending requests.
func (s *side) empty() bool { return s.pending.Empty() }

// drain repeatedly calls issue for the head-of-queue request until
// the side is corked, empty, or issue reports that further attempts
// would block. issue must return (done=true) once it either
// completed the request (successfully or with a terminal error, in
// which case it also calls complete) or determined the syscall would
// block (done=false, nothing consumed). drain pops req off the queue
// before calling issue, so issue may hand it straight to the
// completion queue; when issue reports done=false, req is put back at
// the head of the queue, ahead of the requests still waiting behind it.
//
// This is the reactor's edge-triggered drain obligation made
// explicit: callers loop here, not in the backend, so the same
// algorithm serves every platform backend.
func (s *side) drain(issue func(req *Request) (done bool)) {
	for !s.corked {
		req, ok := s.pending.Pop()
		if !ok {
			return
		}
		if !issue(req) {
			var rest intrusive.FIFO[Request, *Request]
			rest.Push(req)
			rest.Splice(&s.pending)
			s.pending = rest
			return
		}
	}
}

// cancelAll pops every pending request on this side and fails it with
// kind, used when the owning socket is closed.
func (s *side) cancelAll(kind Kind, complete func(*Request)) {
	for {
		req, ok := s.pending.Pop()
		if !ok {
			return
		}
		req.fail(req.Variant.String(), kind)
		complete(req)
	}
}
