//go:build windows

package asyncsock

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// errnoKind classifies a Windows socket error code into the portable
// taxonomy, normalizing WSA codes that have direct POSIX equivalents
// (e.g. WSAECONNRESET / ECONNRESET) to the same Kind.
func errnoKind(errno syscall.Errno) Kind {
	switch errno {
	case windows.ERROR_NOT_ENOUGH_MEMORY, windows.ERROR_OUTOFMEMORY, syscall.ENOMEM:
		return KindNotEnoughMemory
	case windows.WSAEINVAL, syscall.EINVAL:
		return KindInvalidArgument
	case windows.WSAEPROTONOSUPPORT, windows.WSAEPROTOTYPE, windows.WSAEAFNOSUPPORT:
		return KindProtocolNotSupported
	case windows.WSAEADDRINUSE:
		return KindAddressInUse
	case windows.WSAEADDRNOTAVAIL:
		return KindAddressNotAvailable
	case windows.ERROR_INVALID_HANDLE, windows.WSAEBADF, syscall.EBADF:
		return KindBadFileDescriptor
	case windows.WSAENOTCONN:
		return KindNotConnected
	case windows.WSAEISCONN:
		return KindAlreadyConnected
	case windows.WSAECONNREFUSED:
		return KindConnectionRefused
	case windows.WSAECONNABORTED:
		return KindConnectionAborted
	case windows.WSAECONNRESET, windows.WSAESHUTDOWN:
		return KindConnectionReset
	case windows.WSAETIMEDOUT:
		return KindTimedOut
	case windows.WSAEWOULDBLOCK:
		return KindOperationWouldBlock
	case windows.WSAEMSGSIZE:
		return KindMessageTooLarge
	case windows.WSAEOPNOTSUPP:
		return KindOperationNotSupported
	case windows.WSAENOPROTOOPT:
		return KindNoProtocolOption
	case windows.WSAEACCES:
		return KindPermissionDenied
	case windows.WSAEINTR:
		return KindInterrupted
	default:
		return KindOperationNotSupported
	}
}

func errFromErrno(op string, err error) *Error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return newError(op, KindOperationNotSupported, err)
	}
	return newError(op, errnoKind(errno), err)
}

// isTransient reports whether err is WSAEINTR, the one condition the
// Windows backend retries locally rather than surfacing.
func isTransient(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	return errno == windows.WSAEINTR
}
