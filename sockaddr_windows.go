//go:build windows

package asyncsock

import (
	"net/netip"

	"golang.org/x/sys/windows"

	"code.hybscloud.com/asyncsock/endpoint"
)

func endpointToSockaddr(e endpoint.Endpoint) windows.Sockaddr {
	ap := e.AddrPort()
	addr := ap.Addr()
	if addr.Is4() {
		return &windows.SockaddrInet4{Port: int(ap.Port()), Addr: addr.As4()}
	}
	sa := &windows.SockaddrInet6{Port: int(ap.Port()), Addr: addr.As16()}
	if z := addr.Zone(); z != "" {
		sa.ZoneId = zoneToScopeID(z)
	}
	return sa
}

func sockaddrToEndpoint(sa windows.Sockaddr) endpoint.Endpoint {
	switch sa := sa.(type) {
	case *windows.SockaddrInet4:
		addr := netip.AddrFrom4(sa.Addr)
		return endpoint.FromAddrPort(netip.AddrPortFrom(addr, uint16(sa.Port)))
	case *windows.SockaddrInet6:
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
	buf := [10]byte{}
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[i:])
}
