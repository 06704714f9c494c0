package asyncsock

import (
	"io"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type accepted throughout this
// package (via [WithLogger]). It is a thin alias over logiface's
// generic logger, instantiated with stumpy's JSON event encoding.
type Logger = logiface.Logger[*stumpy.Event]

// Log categories, attached to every reactor/socket/request/timer
// diagnostic so a downstream consumer can filter by subsystem.
const (
	logCategoryReactor = "reactor"
	logCategorySocket  = "socket"
	logCategoryRequest = "request"
	logCategoryTimer   = "timer"
	logCategoryDrain   = "drain"
	logCategoryAccept  = "accept"
)

// defaultLogger returns a no-op stumpy logger, used by [NewReactor]
// when the caller does not supply one via [WithLogger].
func defaultLogger() *Logger {
	return stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(io.Discard)))
}

// socketRateLimits bounds how often a single socket's diagnostics can
// repeat, so a peer that triggers the same warning on every packet
// (EINTR retry storms, ECONNRESET floods on a busy listener) cannot
// flood the log. A single limiter is shared by the reactor; each
// (socket handle, log category) pair is its own rate-limit category
// within it, tracked from first use for the process lifetime.
type socketRateLimits struct {
	limiter *catrate.Limiter
}

func newSocketRateLimits() *socketRateLimits {
	return &socketRateLimits{
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second:      5,
			time.Minute:      60,
			10 * time.Minute: 200,
		}),
	}
}

// allow reports whether a diagnostic for h/category should be emitted
// right now, given recent history for that socket.
func (r *socketRateLimits) allow(h Handle, category string) bool {
	if r == nil || r.limiter == nil {
		return true
	}
	_, ok := r.limiter.Allow([2]any{h, category})
	return ok
}
