// Package asyncsock provides a cross-platform asynchronous socket
// reactor: a single-threaded, cooperatively-scheduled runtime driving
// per-socket send/receive state machines over the host's native
// readiness or completion mechanism.
//
// # Architecture
//
// The runtime is built around a [Reactor] core that owns a platform
// poller, a lock-free completion queue, and a timer set. Sockets
// register with a reactor and issue operations against it; the reactor
// drains readiness or completion events and delivers finished
// [Request] values on its completion queue.
//
// # Platform support
//
// Each reactor is backed by a readiness facility of the host:
//   - Linux: epoll, edge-triggered.
//   - Darwin/BSD: kqueue, EV_CLEAR filters.
//   - Windows: WSAPoll. No I/O completion port or overlapped
//     WSARecv/WSASend is used.
//
// On every platform a side's pending requests are issued one at a
// time, one read/write/recvmsg/sendto call per request, until the side
// is empty or the call would block; multi-message calls such as
// recvmmsg/sendmmsg are not used.
//
// # Concurrency model
//
// A [Reactor] is not safe for concurrent use from more than one
// goroutine: every socket operation against a reactor, and its
// [Reactor.Poll] call, must be issued from the single goroutine that
// drives that reactor. Applications scale by running one reactor per
// worker goroutine, each owning a disjoint set of sockets. This
// includes [Reactor.Post] and [Reactor.PostAfter]: they insert into the
// reactor's timer set, which has no synchronization, and the posted
// function runs on the reactor's goroutine during a later poll.
//
// # Requests
//
// [Request] values are caller-owned storage, never allocated by the
// runtime: the caller embeds one per in-flight operation (or pools
// them with [intrusive.Stack]) and passes a pointer to an async method.
// A request is linked into at most one queue at a time — the socket's
// pending queue, then the reactor's completion queue — and must not be
// mutated by the caller while linked.
//
// # Error handling
//
// All operations that may fail report a portable [Kind] rather than a
// raw errno or Windows error code; see [Error]. Async failures are
// reported by populating a request's error field before delivering it
// on the completion queue exactly once.
package asyncsock
