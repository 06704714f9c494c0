//go:build asyncsock_debug

package intrusive

// debugChecks is true when built with -tags asyncsock_debug: pushing an
// already-linked node panics instead of silently corrupting the
// container it is still linked into.
const debugChecks = true
