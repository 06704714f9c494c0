//go:build !asyncsock_debug

package asyncsock

// debugChecks gates the programming-error panics. Build with
// -tags asyncsock_debug to enable them; they compile away otherwise.
const debugChecks = false
