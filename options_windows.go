//go:build windows

package asyncsock

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

func setOption(h Handle, name OptionName, value any) error {
	s := windows.Handle(h)
	switch name {
	case OptReuseAddress:
		return setsockoptBool(s, windows.SOL_SOCKET, windows.SO_REUSEADDR, value)
	case OptKeepAlive:
		return setsockoptBool(s, windows.SOL_SOCKET, windows.SO_KEEPALIVE, value)
	case OptBroadcast:
		return setsockoptBool(s, windows.SOL_SOCKET, windows.SO_BROADCAST, value)
	case OptSendBufferSize:
		return setsockoptInt(s, windows.SOL_SOCKET, windows.SO_SNDBUF, value)
	case OptReceiveBufferSize:
		return setsockoptInt(s, windows.SOL_SOCKET, windows.SO_RCVBUF, value)
	case OptReceiveTimeout:
		return setsockoptMillis(s, windows.SO_RCVTIMEO, value)
	case OptSendTimeout:
		return setsockoptMillis(s, windows.SO_SNDTIMEO, value)
	case OptLinger:
		l, ok := value.(Linger)
		if !ok {
			return errNoProtocolOption(name)
		}
		onoff := uint16(0)
		if l.Enabled {
			onoff = 1
		}
		lg := windows.Linger{Onoff: onoff, Linger: uint16(l.Timeout / time.Second)}
		return wrapWSAErr("setsockopt", windows.Setsockopt(s, windows.SOL_SOCKET, windows.SO_LINGER,
			(*byte)(unsafe.Pointer(&lg)), int32(unsafe.Sizeof(lg))))
	case OptNonBlockingIO:
		nb, ok := value.(bool)
		if !ok {
			return errNoProtocolOption(name)
		}
		var arg uint32
		if nb {
			arg = 1
		}
		return wrapWSAErr("ioctlsocket", windows.Ioctlsocket(s, windows.FIONBIO, &arg))
	case OptReusePort, OptDoNotRoute, OptOutOfBandInline, OptReceiveLowWatermark, OptSendLowWatermark, OptDebug:
		return errNoProtocolOption(name)
	default:
		return errNoProtocolOption(name)
	}
}

func getOption(h Handle, name OptionName) (any, error) {
	s := windows.Handle(h)
	switch name {
	case OptReuseAddress:
		return getsockoptBool(s, windows.SOL_SOCKET, windows.SO_REUSEADDR)
	case OptKeepAlive:
		return getsockoptBool(s, windows.SOL_SOCKET, windows.SO_KEEPALIVE)
	case OptBroadcast:
		return getsockoptBool(s, windows.SOL_SOCKET, windows.SO_BROADCAST)
	case OptSendBufferSize:
		return getsockoptInt(s, windows.SOL_SOCKET, windows.SO_SNDBUF)
	case OptReceiveBufferSize:
		return getsockoptInt(s, windows.SOL_SOCKET, windows.SO_RCVBUF)
	default:
		return nil, errNoProtocolOption(name)
	}
}

func setsockoptBool(s windows.Handle, level, opt int32, value any) error {
	b, ok := value.(bool)
	if !ok {
		return newError("option", KindInvalidArgument, nil)
	}
	var v int32
	if b {
		v = 1
	}
	return wrapWSAErr("setsockopt", windows.Setsockopt(s, level, opt, (*byte)(unsafe.Pointer(&v)), 4))
}

func getsockoptBool(s windows.Handle, level, opt int32) (any, error) {
	v, err := getsockoptInt(s, level, opt)
	if err != nil {
		return nil, err
	}
	return v.(int) != 0, nil
}

func setsockoptInt(s windows.Handle, level, opt int32, value any) error {
	v, ok := value.(int)
	if !ok {
		return newError("option", KindInvalidArgument, nil)
	}
	v32 := int32(v)
	return wrapWSAErr("setsockopt", windows.Setsockopt(s, level, opt, (*byte)(unsafe.Pointer(&v32)), 4))
}

func getsockoptInt(s windows.Handle, level, opt int32) (any, error) {
	var v int32
	l := int32(4)
	if err := windows.Getsockopt(s, level, opt, (*byte)(unsafe.Pointer(&v)), &l); err != nil {
		return nil, wrapWSAErr("getsockopt", err)
	}
	return int(v), nil
}

func setsockoptMillis(s windows.Handle, opt int32, value any) error {
	d, ok := value.(time.Duration)
	if !ok {
		return newError("option", KindInvalidArgument, nil)
	}
	ms := int32(d.Milliseconds())
	return wrapWSAErr("setsockopt", windows.Setsockopt(s, windows.SOL_SOCKET, opt, (*byte)(unsafe.Pointer(&ms)), 4))
}

func wrapWSAErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return errFromErrno(op, err)
}
