//go:build !asyncsock_debug

package intrusive

// debugChecks gates the linked-node invariant checks. Build with
// -tags asyncsock_debug to enable them; the checks compile away
// entirely otherwise.
const debugChecks = false
