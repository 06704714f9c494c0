// Package endpoint implements the portable socket-endpoint type: a
// tagged IPv4 or IPv6 address plus port and, for IPv6, a scope id,
// stored in a fixed-capacity buffer sized for IPv6 rather than heap
// allocated. It formats addresses per RFC 5952 and interoperates with
// [net/netip].
package endpoint
