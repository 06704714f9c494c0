//go:build linux

package asyncsock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errnoKind classifies a Linux errno into the portable taxonomy.
// Transient errnos are classified too (EINTR as interrupted,
// EAGAIN/EWOULDBLOCK as operation_would_block) so callers can retry or
// keep a request queued by Kind; anything not recognized below is
// reported as operation_not_supported rather than leaking the raw
// errno to callers that only understand Kind.
func errnoKind(errno unix.Errno) Kind {
	switch errno {
	case unix.ENOMEM:
		return KindNotEnoughMemory
	case unix.EINVAL:
		return KindInvalidArgument
	case unix.EPROTONOSUPPORT, unix.EPROTOTYPE, unix.EAFNOSUPPORT:
		return KindProtocolNotSupported
	case unix.EADDRINUSE:
		return KindAddressInUse
	case unix.EADDRNOTAVAIL:
		return KindAddressNotAvailable
	case unix.EBADF:
		return KindBadFileDescriptor
	case unix.ENOTCONN:
		return KindNotConnected
	case unix.EISCONN:
		return KindAlreadyConnected
	case unix.ECONNREFUSED:
		return KindConnectionRefused
	case unix.ECONNABORTED:
		return KindConnectionAborted
	case unix.ECONNRESET, unix.EPIPE:
		return KindConnectionReset
	case unix.ETIMEDOUT:
		return KindTimedOut
	case unix.EAGAIN:
		return KindOperationWouldBlock
	case unix.EMSGSIZE:
		return KindMessageTooLarge
	case unix.E2BIG:
		return KindArgumentListTooLong
	case unix.ENOPROTOOPT:
		return KindNoProtocolOption
	case unix.EACCES, unix.EPERM:
		return KindPermissionDenied
	case unix.EOPNOTSUPP, unix.ENOSYS:
		return KindOperationNotSupported
	case unix.EINTR:
		return KindInterrupted
	default:
		return KindOperationNotSupported
	}
}

// errFromErrno builds a portable *Error from a raw syscall error
// returned by op. Non-errno causes (should not normally occur from
// golang.org/x/sys/unix calls) fall back to operation_not_supported.
func errFromErrno(op string, err error) *Error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return newError(op, KindOperationNotSupported, err)
	}
	return newError(op, errnoKind(errno), err)
}

// isTransient reports whether err is EINTR, the transient,
// locally-retried condition that must never be surfaced to the caller
// as a completion error. EAGAIN is not reported here.
func isTransient(err error) bool {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}
	return errno == unix.EINTR
}
