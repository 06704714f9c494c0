package asyncsock

import "time"

// OptionName identifies a socket option recognized by GetOption and
// SetOption. Unsupported options (on a given platform, or always)
// return a [KindNoProtocolOption] error rather than silently
// succeeding.
type OptionName uint8

const (
	OptReuseAddress OptionName = iota
	OptReusePort
	OptKeepAlive
	OptBroadcast
	OptLinger
	OptDoNotRoute
	OptOutOfBandInline
	OptSendBufferSize
	OptReceiveBufferSize
	OptReceiveLowWatermark
	OptSendLowWatermark
	OptReceiveTimeout
	OptSendTimeout
	OptDebug
	OptNonBlockingIO
)

func (n OptionName) String() string {
	switch n {
	case OptReuseAddress:
		return "reuse_address"
	case OptReusePort:
		return "reuse_port"
	case OptKeepAlive:
		return "keepalive"
	case OptBroadcast:
		return "broadcast"
	case OptLinger:
		return "linger"
	case OptDoNotRoute:
		return "do_not_route"
	case OptOutOfBandInline:
		return "out_of_band_inline"
	case OptSendBufferSize:
		return "send_buffer_size"
	case OptReceiveBufferSize:
		return "receive_buffer_size"
	case OptReceiveLowWatermark:
		return "receive_low_watermark"
	case OptSendLowWatermark:
		return "send_low_watermark"
	case OptReceiveTimeout:
		return "receive_timeout"
	case OptSendTimeout:
		return "send_timeout"
	case OptDebug:
		return "debug"
	case OptNonBlockingIO:
		return "non_blocking_io"
	default:
		return "unknown"
	}
}

// Linger is the value type for [OptLinger].
type Linger struct {
	Enabled bool
	Timeout time.Duration
}

// errNoProtocolOption builds the portable error returned for any
// option unsupported on the current platform or socket type.
func errNoProtocolOption(name OptionName) error {
	return newError("option:"+name.String(), KindNoProtocolOption, nil)
}
