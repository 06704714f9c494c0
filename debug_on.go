//go:build asyncsock_debug

package asyncsock

// debugChecks is true when built with -tags asyncsock_debug: programming
// errors that are otherwise silently tolerated (e.g. double-registering a
// socket with a reactor) panic instead.
const debugChecks = true
