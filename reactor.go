package asyncsock

import (
	"io"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"code.hybscloud.com/asyncsock/intrusive"
)

// LoadBalanceClassifier installs a platform-specific packet classifier
// so sockets sharing a reuse-port group keep the same logical 5-tuple
// pinned to the same socket. Linux wires this as a classic-BPF
// SO_REUSEPORT program via SO_ATTACH_REUSEPORT_CBPF; Darwin and
// Windows expose no equivalent socket option, so [Reactor.Register]
// reports [KindOperationNotSupported] there when Program is set.
type LoadBalanceClassifier struct {
	// Program is a raw classifier bytecode blob, platform-specific in
	// encoding (a CBPF program on Linux). Nil disables the hook.
	Program []byte
}

// poller is the narrow per-backend interface spec.md §9 calls for:
// above this line (in this file) the request machinery is portable;
// below it, reactor_linux.go / reactor_darwin.go / reactor_windows.go
// each provide one platform's readiness multiplexer.
type poller interface {
	registerSocket(s *Socket) error
	unregisterSocket(s *Socket) error
	wait(timeout time.Duration) ([]pollEvent, error)
	wake() error
	close() error
}

// pollEvent reports one socket's readiness, as translated from the
// platform-native event by the active poller.
type pollEvent struct {
	socket     *Socket
	readable   bool
	writable   bool
	errored    bool
	hangup     bool
}

// Reactor owns a platform poller, a completion queue, and a timer set.
// A Reactor is not safe for concurrent use from multiple goroutines:
// every socket operation against sockets registered with it, and every
// call to Poll/RunOnce/RunFor/Run, must come from the thread driving
// that reactor (see spec.md §5).
type Reactor struct {
	logger *Logger
	rates  *socketRateLimits

	maxBatchSize            int
	enableConnectionAborted bool
	loadBalance             LoadBalanceClassifier

	backend poller

	completions intrusive.MPSC[Request, *Request]

	timers   intrusive.FIFO[timerNode, *timerNode]
	timerSeq uint64

	state fastState

	closed bool
}

type timerNode struct {
	hook     intrusive.Hook[timerNode]
	deadline time.Time
	seq      uint64
	fn       func()
}

func (t *timerNode) Link() *intrusive.Hook[timerNode] { return &t.hook }

func timerLess(a, b *timerNode) bool {
	if !a.deadline.Equal(b.deadline) {
		return a.deadline.Before(b.deadline)
	}
	return a.seq < b.seq
}

// ReactorOption configures a [Reactor] at construction time.
type ReactorOption func(*reactorConfig)

type reactorConfig struct {
	logger                  *Logger
	logLevel                *logiface.Level
	maxBatchSize            int
	enableConnectionAborted bool
	loadBalance             LoadBalanceClassifier
}

// WithLogger installs a fully-configured [Logger], overriding the
// default no-op logger.
func WithLogger(l *Logger) ReactorOption {
	return func(c *reactorConfig) { c.logger = l }
}

// WithLogLevel builds the default stumpy-backed logger at the given
// level; ignored if WithLogger is also supplied.
func WithLogLevel(level logiface.Level) ReactorOption {
	return func(c *reactorConfig) { c.logLevel = &level }
}

// WithMaxBatchSize records a per-side batch size on the reactor. The
// drain loops do not read it: each drain issues requests until the
// side is corked, empty, or the next call would block.
func WithMaxBatchSize(n int) ReactorOption {
	return func(c *reactorConfig) { c.maxBatchSize = n }
}

// WithEnableConnectionAborted makes ECONNABORTED during accept surface
// as an error rather than being retried transiently; the default (not
// calling this option) matches spec.md's default of retrying.
func WithEnableConnectionAborted(enabled bool) ReactorOption {
	return func(c *reactorConfig) { c.enableConnectionAborted = enabled }
}

// WithLoadBalanceClassifier installs the platform-specific reuse-port
// classifier described by [LoadBalanceClassifier].
func WithLoadBalanceClassifier(lb LoadBalanceClassifier) ReactorOption {
	return func(c *reactorConfig) { c.loadBalance = lb }
}

// NewReactor creates a reactor bound to the platform's native poller.
func NewReactor(opts ...ReactorOption) (*Reactor, error) {
	cfg := reactorConfig{maxBatchSize: 256}
	for _, o := range opts {
		o(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		if cfg.logLevel == nil {
			logger = defaultLogger()
		} else {
			logger = stumpy.L.New(
				stumpy.L.WithStumpy(stumpy.WithWriter(io.Discard)),
				logiface.WithLevel[*stumpy.Event](*cfg.logLevel),
			)
		}
	}

	rates := newSocketRateLimits()

	backend, err := newPoller(logger, rates)
	if err != nil {
		return nil, err
	}

	r := &Reactor{
		logger:                  logger,
		rates:                   rates,
		maxBatchSize:            cfg.maxBatchSize,
		enableConnectionAborted: cfg.enableConnectionAborted,
		loadBalance:             cfg.loadBalance,
		backend:                 backend,
	}
	r.state.Store(StateAwake)
	return r, nil
}

// Register binds s to this reactor, making it non-blocking and
// eligible for async operations. Registering an already-registered
// socket is a programming error: debug builds panic, release builds
// return [KindInvalidArgument].
func (r *Reactor) Register(s *Socket) error {
	if s.reactor != nil {
		if debugChecks {
			panic("asyncsock: socket registered with a reactor twice")
		}
		return newError("register", KindInvalidArgument, nil)
	}
	if err := s.SetNonblocking(true); err != nil {
		return err
	}
	if err := r.backend.registerSocket(s); err != nil {
		return err
	}
	if r.loadBalance.Program != nil {
		if err := attachLoadBalance(s.handle, r.loadBalance.Program); err != nil {
			_ = r.backend.unregisterSocket(s)
			return err
		}
	}
	s.reactor = r
	return nil
}

// unregister removes s from the backend and fails every still-pending
// request on both sides with [KindBadFileDescriptor]. Called from
// Socket.Close.
func (r *Reactor) unregister(s *Socket) {
	if s.reactor != r {
		return
	}
	_ = r.backend.unregisterSocket(s)
	s.recv.cancelAll(KindBadFileDescriptor, r.complete)
	s.send.cancelAll(KindBadFileDescriptor, r.complete)
	s.reactor = nil
}

// complete enqueues req on the completion queue; it is the only way a
// request transitions out of a socket's pending queue in this
// package.
func (r *Reactor) complete(req *Request) {
	req.socket = nil
	r.completions.Push(req)
}

// Drain moves up to all currently-available completions into dst,
// returning how many were moved. This is the application- (or task
// service-) facing consumer side of the MPSC completion queue.
func (r *Reactor) Drain(dst *intrusive.FIFO[Request, *Request]) int {
	return r.completions.Drain(dst)
}

// Poll drives one iteration of the platform poller, waiting up to
// timeout for readiness, dispatching completions, and firing any
// timers whose deadline has passed.
func (r *Reactor) Poll(timeout time.Duration) error {
	if d := r.nextTimerDelay(); d >= 0 && (timeout < 0 || d < timeout) {
		timeout = d
	}
	events, err := r.backend.wait(timeout)
	for _, ev := range events {
		r.dispatch(ev)
	}
	r.runTimers()
	if err != nil {
		return err
	}
	return nil
}

func (r *Reactor) dispatch(ev pollEvent) {
	s := ev.socket
	if s == nil {
		return
	}
	if ev.errored {
		if err := pendingSocketError(s.handle); err != nil {
			if r.rates.allow(s.handle, logCategorySocket) {
				r.logger.Warning().Str("category", logCategorySocket).Err(err).Log("socket error observed by poller")
			}
			kind := wrapAsError(err).Kind
			s.recv.cancelAll(kind, r.complete)
			s.send.cancelAll(kind, r.complete)
			return
		}
	}
	if ev.hangup {
		if r.rates.allow(s.handle, logCategorySocket) {
			r.logger.Info().Str("category", logCategorySocket).Log("peer hung up")
		}
		s.recv.cancelAll(KindConnectionAborted, r.complete)
		s.send.cancelAll(KindConnectionAborted, r.complete)
		return
	}
	if ev.readable {
		if s.acceptor {
			s.drainAccept()
		} else {
			s.drainReceive()
		}
	}
	if ev.writable && !s.acceptor {
		s.drainSend()
	}
}

// maxInterruptRetries bounds the local retry loop issueReceive/issueSend
// run when a syscall reports EINTR: a signal delivered on every single
// retry would otherwise spin here instead of yielding back to Poll, so
// after this many immediate retries the request is left queued for the
// next dispatch instead.
const maxInterruptRetries = 4

// logInterrupted emits a rate-limited diagnostic for a syscall retried
// locally after EINTR, so a signal-heavy process doesn't turn this into
// a log flood.
func (r *Reactor) logInterrupted(h Handle, category string) {
	if r.rates.allow(h, category) {
		r.logger.Debug().Str("category", category).Log("retrying syscall after EINTR")
	}
}

// issueReceive attempts one receive-family operation for req, without
// popping it from its queue: the side's drain loop does that once this
// reports done=true. Returns false (stay queued) on would-block.
func (r *Reactor) issueReceive(s *Socket, req *Request) bool {
	switch req.Variant {
	case VariantReceive:
		if len(req.Iov) == 0 {
			req.BytesTransferred = 0
			r.complete(req)
			return true
		}
		n, err := readHandle(s.handle, req.Iov[0])
		for i := 0; err != nil && Is(err, KindInterrupted) && i < maxInterruptRetries; i++ {
			r.logInterrupted(s.handle, logCategoryRequest)
			n, err = readHandle(s.handle, req.Iov[0])
		}
		if err != nil {
			if Is(err, KindOperationWouldBlock) || Is(err, KindInterrupted) {
				return false
			}
			req.err = wrapAsError(err)
			r.complete(req)
			return true
		}
		req.BytesTransferred = n
		r.complete(req)
		return true

	case VariantReceiveFrom:
		if len(req.Iov) == 0 {
			req.BytesTransferred = 0
			r.complete(req)
			return true
		}
		n, from, flags, err := recvfromTruncated(s.handle, req.Iov[0])
		for i := 0; err != nil && Is(err, KindInterrupted) && i < maxInterruptRetries; i++ {
			r.logInterrupted(s.handle, logCategoryRequest)
			n, from, flags, err = recvfromTruncated(s.handle, req.Iov[0])
		}
		if err != nil {
			if Is(err, KindOperationWouldBlock) || Is(err, KindInterrupted) {
				return false
			}
			req.err = wrapAsError(err)
			r.complete(req)
			return true
		}
		req.BytesTransferred = n
		req.Peer = from
		req.Flags = flags
		r.complete(req)
		return true

	case VariantAccept:
		nh, peer, err := acceptHandle(s.handle)
		for i := 0; err != nil && Is(err, KindInterrupted) && i < maxInterruptRetries; i++ {
			r.logInterrupted(s.handle, logCategoryAccept)
			nh, peer, err = acceptHandle(s.handle)
		}
		if err != nil {
			if Is(err, KindOperationWouldBlock) || Is(err, KindInterrupted) {
				return false
			}
			if Is(err, KindConnectionAborted) {
				if r.rates.allow(s.handle, logCategoryAccept) {
					r.logger.Info().Str("category", logCategoryAccept).Log("connection aborted before accept")
				}
				if !s.EnableConnectionAborted && !r.enableConnectionAborted {
					return false
				}
			}
			req.err = wrapAsError(err)
			r.complete(req)
			return true
		}
		req.Accepted = &Socket{handle: nh, family: s.family, sockType: s.sockType}
		req.Peer = peer
		r.complete(req)
		return true

	default:
		req.fail("issue", KindInvalidArgument)
		r.complete(req)
		return true
	}
}

// issueSend is issueReceive's send-side counterpart.
func (r *Reactor) issueSend(s *Socket, req *Request) bool {
	switch req.Variant {
	case VariantSend:
		if len(req.Iov) == 0 {
			req.BytesTransferred = 0
			r.complete(req)
			return true
		}
		n, err := writeHandle(s.handle, req.Iov[0])
		for i := 0; err != nil && Is(err, KindInterrupted) && i < maxInterruptRetries; i++ {
			r.logInterrupted(s.handle, logCategoryRequest)
			n, err = writeHandle(s.handle, req.Iov[0])
		}
		if err != nil {
			if Is(err, KindOperationWouldBlock) || Is(err, KindInterrupted) {
				return false
			}
			req.err = normalizeSendErr(err)
			r.complete(req)
			return true
		}
		req.BytesTransferred = n
		r.complete(req)
		return true

	case VariantSendTo:
		n, err := sendtoHandle(s.handle, req.Iov[0], req.Peer)
		for i := 0; err != nil && Is(err, KindInterrupted) && i < maxInterruptRetries; i++ {
			r.logInterrupted(s.handle, logCategoryRequest)
			n, err = sendtoHandle(s.handle, req.Iov[0], req.Peer)
		}
		if err != nil {
			if Is(err, KindOperationWouldBlock) || Is(err, KindInterrupted) {
				return false
			}
			req.err = normalizeSendErr(err)
			r.complete(req)
			return true
		}
		req.BytesTransferred = n
		r.complete(req)
		return true

	case VariantConnect:
		// The very first issue attempt is made synchronously by
		// StartConnect, immediately after the non-blocking connect(2)
		// call returns EINPROGRESS — before the poller has ever
		// reported this socket writable. SO_ERROR reads 0 the whole
		// time a connect is merely in progress, so completing here
		// would report success regardless of how the handshake
		// actually concludes. Defer to the first real writable
		// dispatch (reactor.go's dispatch, via drainSend) instead.
		if !req.connectArmed {
			req.connectArmed = true
			return false
		}
		if err := pendingSocketError(s.handle); err != nil {
			if r.rates.allow(s.handle, logCategorySocket) {
				r.logger.Warning().Str("category", logCategorySocket).Err(err).Log("async connect failed")
			}
			req.err = wrapAsError(err)
		}
		r.complete(req)
		return true

	default:
		req.fail("issue", KindInvalidArgument)
		r.complete(req)
		return true
	}
}

// normalizeSendErr maps a connection-level send failure to
// [KindNotConnected], the portable signal for "no destination",
// regardless of the platform-specific errno that produced it.
func normalizeSendErr(err error) *Error {
	e := wrapAsError(err)
	switch e.Kind {
	case KindConnectionReset, KindConnectionRefused, KindNotConnected:
		return newError(e.Op, KindNotConnected, e.Err)
	default:
		return e
	}
}

// Close releases the platform poller. The reactor must have no
// outstanding socket registrations; dropping one with registrations
// still attached is a logic error per spec.md §5. Close does not check
// for remaining registrations, in debug builds or otherwise.
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.state.Store(StateTerminated)
	return r.backend.close()
}
