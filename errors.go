package asyncsock

import (
	"errors"
	"fmt"
)

// Kind is a portable error classification, stable across the epoll,
// kqueue, and WSAPoll backends. Every failure the core surfaces to a caller, sync
// or async, is reported through one of these kinds rather than a raw
// errno or Windows error code.
type Kind uint8

const (
	KindNone Kind = iota
	KindNotEnoughMemory
	KindInvalidArgument
	KindProtocolNotSupported
	KindAddressInUse
	KindAddressNotAvailable
	KindBadFileDescriptor
	KindNotConnected
	KindAlreadyConnected
	KindConnectionRefused
	KindConnectionAborted
	KindConnectionReset
	KindTimedOut
	KindOperationWouldBlock
	KindArgumentListTooLong
	KindNoProtocolOption
	KindPermissionDenied
	KindOperationNotSupported
	KindMessageTooLarge
	KindInterrupted
)

var kindNames = [...]string{
	KindNone:                  "none",
	KindNotEnoughMemory:       "not_enough_memory",
	KindInvalidArgument:       "invalid_argument",
	KindProtocolNotSupported:  "protocol_not_supported",
	KindAddressInUse:          "address_in_use",
	KindAddressNotAvailable:   "address_not_available",
	KindBadFileDescriptor:     "bad_file_descriptor",
	KindNotConnected:          "not_connected",
	KindAlreadyConnected:      "already_connected",
	KindConnectionRefused:     "connection_refused",
	KindConnectionAborted:     "connection_aborted",
	KindConnectionReset:       "connection_reset",
	KindTimedOut:              "timed_out",
	KindOperationWouldBlock:   "operation_would_block",
	KindArgumentListTooLong:   "argument_list_too_long",
	KindNoProtocolOption:      "no_protocol_option",
	KindPermissionDenied:      "permission_denied",
	KindOperationNotSupported: "operation_not_supported",
	KindMessageTooLarge:       "message_too_large",
	KindInterrupted:           "interrupted",
}

// String returns the kind's snake_case name, matching the taxonomy
// names used throughout the package's documentation.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Error is the portable error type returned across the package's API
// boundary. Op identifies the failing operation (e.g. "accept",
// "send"); Err, when non-nil, is the underlying platform error wrapped
// for diagnostics but never required for correct handling — callers
// should always switch on Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asyncsock: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("asyncsock: %s: %s", e.Op, e.Kind)
}

// Unwrap exposes the underlying cause for [errors.Is] / [errors.As].
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind. This lets
// callers write errors.Is(err, &asyncsock.Error{Kind: asyncsock.KindNotConnected})
// without caring about Op or the wrapped cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// newError constructs a portable Error for op, classified as kind,
// optionally wrapping cause.
func newError(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// reporting KindNone and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindNone, false
}

// Is reports whether err is an asyncsock error of the given kind. It
// is the package-level convenience form of (*Error).Is, usable without
// constructing a comparison Error by hand:
//
//	if asyncsock.Is(err, asyncsock.KindNotConnected) { ... }
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// wrapAsError normalizes err into *Error, for call sites that received
// a plain error from a helper not guaranteed to already return one.
func wrapAsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError("asyncsock", KindInvalidArgument, err)
}
