//go:build linux || darwin

package asyncsock

import (
	"net/netip"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/asyncsock/endpoint"
)

// endpointToSockaddr converts a portable Endpoint into the
// golang.org/x/sys/unix Sockaddr the syscall layer expects.
func endpointToSockaddr(e endpoint.Endpoint) unix.Sockaddr {
	ap := e.AddrPort()
	addr := ap.Addr()
	if addr.Is4() {
		sa := &unix.SockaddrInet4{Port: int(ap.Port())}
		sa.Addr = addr.As4()
		return sa
	}
	sa := &unix.SockaddrInet6{Port: int(ap.Port())}
	sa.Addr = addr.As16()
	if z := addr.Zone(); z != "" {
		// zone is the numeric scope id encoded by endpoint.FromAddrPort
		sa.ZoneId = zoneToScopeID(z)
	}
	return sa
}

// sockaddrToEndpoint converts a raw syscall sockaddr back into a
// portable Endpoint.
func sockaddrToEndpoint(sa unix.Sockaddr) endpoint.Endpoint {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		addr := netip.AddrFrom4(sa.Addr)
		return endpoint.FromAddrPort(netip.AddrPortFrom(addr, uint16(sa.Port)))
	case *unix.SockaddrInet6:
		addr := netip.AddrFrom16(sa.Addr)
		if sa.ZoneId != 0 {
			addr = addr.WithZone(scopeIDToZone(sa.ZoneId))
		}
		return endpoint.FromAddrPort(netip.AddrPortFrom(addr, uint16(sa.Port)))
	default:
		return endpoint.Endpoint{}
	}
}

func zoneToScopeID(zone string) uint32 {
	var id uint32
	for _, c := range zone {
		if c < '0' || c > '9' {
			return 0
		}
		id = id*10 + uint32(c-'0')
	}
	return id
}

func scopeIDToZone(id uint32) string {
	if id == 0 {
		return ""
	}
	// decimal, matches endpoint.FromAddrPort's zone encoding
	buf := [10]byte{}
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[i:])
}
