//go:build linux || darwin

package asyncsock

import (
	"time"

	"golang.org/x/sys/unix"
)

func setOption(h Handle, name OptionName, value any) error {
	fd := int(h)
	switch name {
	case OptReuseAddress:
		return setsockoptBool(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, value)
	case OptReusePort:
		return setsockoptBool(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, value)
	case OptKeepAlive:
		return setsockoptBool(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, value)
	case OptBroadcast:
		return setsockoptBool(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, value)
	case OptDoNotRoute:
		return setsockoptBool(fd, unix.SOL_SOCKET, unix.SO_DONTROUTE, value)
	case OptOutOfBandInline:
		return setsockoptBool(fd, unix.SOL_SOCKET, unix.SO_OOBINLINE, value)
	case OptSendBufferSize:
		return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, value)
	case OptReceiveBufferSize:
		return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, value)
	case OptReceiveLowWatermark:
		return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVLOWAT, value)
	case OptSendLowWatermark:
		return setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDLOWAT, value)
	case OptReceiveTimeout:
		return setsockoptTimeout(fd, unix.SO_RCVTIMEO, value)
	case OptSendTimeout:
		return setsockoptTimeout(fd, unix.SO_SNDTIMEO, value)
	case OptLinger:
		l, ok := value.(Linger)
		if !ok {
			return errNoProtocolOption(name)
		}
		onoff := int32(0)
		if l.Enabled {
			onoff = 1
		}
		return wrapErrno("setsockopt", unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{
			Onoff:  onoff,
			Linger: int32(l.Timeout / time.Second),
		}))
	case OptNonBlockingIO:
		nb, ok := value.(bool)
		if !ok {
			return errNoProtocolOption(name)
		}
		return setNonblocking(h, nb)
	case OptDebug:
		return setsockoptBool(fd, unix.SOL_SOCKET, unix.SO_DEBUG, value)
	default:
		return errNoProtocolOption(name)
	}
}

func getOption(h Handle, name OptionName) (v any, err error) {
	fd := int(h)
	defer func() {
		if _, ok := err.(*Error); err != nil && !ok {
			err = errFromErrno("getsockopt", err)
		}
	}()
	switch name {
	case OptReuseAddress:
		return getsockoptBool(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR)
	case OptReusePort:
		return getsockoptBool(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT)
	case OptKeepAlive:
		return getsockoptBool(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE)
	case OptBroadcast:
		return getsockoptBool(fd, unix.SOL_SOCKET, unix.SO_BROADCAST)
	case OptDoNotRoute:
		return getsockoptBool(fd, unix.SOL_SOCKET, unix.SO_DONTROUTE)
	case OptOutOfBandInline:
		return getsockoptBool(fd, unix.SOL_SOCKET, unix.SO_OOBINLINE)
	case OptSendBufferSize:
		return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF)
	case OptReceiveBufferSize:
		return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
	case OptReceiveLowWatermark:
		return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVLOWAT)
	case OptSendLowWatermark:
		return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDLOWAT)
	case OptNonBlockingIO:
		return isNonblocking(h)
	case OptDebug:
		return getsockoptBool(fd, unix.SOL_SOCKET, unix.SO_DEBUG)
	default:
		return nil, errNoProtocolOption(name)
	}
}

func setsockoptBool(fd, level, opt int, value any) error {
	b, ok := value.(bool)
	if !ok {
		return newError("option", KindInvalidArgument, nil)
	}
	v := 0
	if b {
		v = 1
	}
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, level, opt, v))
}

func getsockoptBool(fd, level, opt int) (any, error) {
	v, err := unix.GetsockoptInt(fd, level, opt)
	if err != nil {
		return nil, errFromErrno("getsockopt", err)
	}
	return v != 0, nil
}

func setsockoptInt(fd, level, opt int, value any) error {
	v, ok := value.(int)
	if !ok {
		return newError("option", KindInvalidArgument, nil)
	}
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, level, opt, v))
}

func setsockoptTimeout(fd, opt int, value any) error {
	d, ok := value.(time.Duration)
	if !ok {
		return newError("option", KindInvalidArgument, nil)
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return wrapErrno("setsockopt", unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, opt, &tv))
}

func wrapErrno(op string, err error) error {
	if err == nil {
		return nil
	}
	return errFromErrno(op, err)
}
