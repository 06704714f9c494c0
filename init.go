package asyncsock

import "sync"

var processInit sync.Once

// ensureProcessInit performs process-wide, idempotent setup required
// before any socket is opened (currently: bringing up Winsock on
// Windows; a no-op on POSIX). Called automatically by [Open] and
// [Socketpair]; [Assign] does not call it.
func ensureProcessInit() error {
	var err error
	processInit.Do(func() {
		err = platformInit()
	})
	return err
}
