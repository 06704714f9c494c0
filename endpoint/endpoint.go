package endpoint

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
)

// maxAddrLen is the capacity of the fixed address buffer: big enough
// for the larger of the two tagged families, IPv6.
const maxAddrLen = 16

// ErrValueTooLarge is returned by [Endpoint.ToChars] when dst is too
// small to hold the formatted endpoint; dst is left unmodified.
var ErrValueTooLarge = errors.New("endpoint: value too large for destination buffer")

// ErrInvalidAddress is returned by [Parse] and [FromChars] when the
// input is not a well-formed address, or carries trailing garbage.
var ErrInvalidAddress = errors.New("endpoint: invalid address")

// Family identifies which tagged address an [Endpoint] holds.
type Family uint8

const (
	FamilyNone Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "none"
	}
}

// Endpoint is a tagged IPv4 or IPv6 address plus a 16-bit port and,
// for IPv6, a numeric scope/zone id, stored in a fixed-capacity
// buffer rather than heap allocated. The zero value is the empty
// endpoint (FamilyNone). Endpoint is comparable and copied by value.
type Endpoint struct {
	family Family
	size   uint8 // bytes of addr in use: 4 for IPv4, 16 for IPv6
	addr   [maxAddrLen]byte
	port   uint16
	zone   uint32
}

// Family reports which address family e holds.
func (e Endpoint) Family() Family { return e.family }

// Port reports the endpoint's port in host byte order.
func (e Endpoint) Port() uint16 { return e.port }

// Size reports the number of address bytes in use (0, 4, or 16).
func (e Endpoint) Size() int { return int(e.size) }

// Capacity reports the fixed address buffer capacity.
func (Endpoint) Capacity() int { return maxAddrLen }

// IsValid reports whether e holds an address (is not the zero value).
func (e Endpoint) IsValid() bool { return e.family != FamilyNone }

// FromAddrPort builds an Endpoint from a [netip.AddrPort], the
// interop point with the standard library's address types.
func FromAddrPort(ap netip.AddrPort) Endpoint {
	var e Endpoint
	e.port = ap.Port()
	addr := ap.Addr().Unmap()
	if addr.Is4() {
		e.family = FamilyIPv4
		e.size = 4
		b := addr.As4()
		copy(e.addr[:4], b[:])
		return e
	}
	e.family = FamilyIPv6
	e.size = 16
	b := addr.As16()
	copy(e.addr[:16], b[:])
	if z := addr.Zone(); z != "" {
		if zi, err := strconv.ParseUint(z, 10, 32); err == nil {
			e.zone = uint32(zi)
		}
	}
	return e
}

// AddrPort converts e back to a [netip.AddrPort]. A nonzero scope id
// is rendered as its decimal zone string, matching what FromAddrPort
// accepts, so FromAddrPort(e.AddrPort()) round-trips.
func (e Endpoint) AddrPort() netip.AddrPort {
	switch e.family {
	case FamilyIPv4:
		var b [4]byte
		copy(b[:], e.addr[:4])
		return netip.AddrPortFrom(netip.AddrFrom4(b), e.port)
	case FamilyIPv6:
		var b [16]byte
		copy(b[:], e.addr[:16])
		addr := netip.AddrFrom16(b)
		if e.zone != 0 {
			addr = addr.WithZone(strconv.FormatUint(uint64(e.zone), 10))
		}
		return netip.AddrPortFrom(addr, e.port)
	default:
		return netip.AddrPort{}
	}
}

// Format renders e as decimal-dotted IPv4 ("1.2.3.4:80") or bracketed
// RFC 5952 IPv6 ("[::1]:60000"). The zero Endpoint formats as "".
func (e Endpoint) Format() string {
	if e.family == FamilyNone {
		return ""
	}
	return e.AddrPort().String()
}

func (e Endpoint) String() string { return e.Format() }

// ToChars writes e's formatted form into dst and returns the number
// of bytes written. It returns [ErrValueTooLarge] without writing
// anything if dst is too small to hold the result.
func (e Endpoint) ToChars(dst []byte) (int, error) {
	s := e.Format()
	if len(dst) < len(s) {
		return 0, ErrValueTooLarge
	}
	return copy(dst, s), nil
}

// Parse parses a formatted endpoint ("host:port", IPv6 bracketed),
// accepting any textual address form [net/netip] accepts and
// rejecting trailing garbage.
func Parse(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return FromAddrPort(ap), nil
}

// FromChars is the []byte counterpart of [Parse], the inverse of
// [Endpoint.ToChars].
func FromChars(b []byte) (Endpoint, error) {
	return Parse(string(b))
}
