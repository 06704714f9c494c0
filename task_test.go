package asyncsock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestReactor_TimerOrdering exercises PostAfter at three different
// delays and checks RunFor delivers them in deadline order (T2, T1,
// T3), not posting order.
func TestReactor_TimerOrdering(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()

	var fired []string

	r.PostAfter(50*time.Millisecond, func() { fired = append(fired, "T1") })
	r.PostAfter(20*time.Millisecond, func() { fired = append(fired, "T2") })
	r.PostAfter(70*time.Millisecond, func() { fired = append(fired, "T3") })

	require.NoError(t, r.RunFor(500*time.Millisecond))
	require.Equal(t, []string{"T2", "T1", "T3"}, fired)
}

// TestReactor_PostRunsNextPoll checks that Post (a zero-delay PostAfter)
// runs on the very next RunOnce rather than waiting for a real timeout.
func TestReactor_PostRunsNextPoll(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()

	done := make(chan struct{})
	r.Post(func() { close(done) })

	require.NoError(t, r.RunOnce(time.Second))
	select {
	case <-done:
	default:
		t.Fatal("posted function did not run during RunOnce")
	}
}

// TestReactor_TimerRecursionCappedAtOnePollPass checks that a timer
// callback re-scheduling itself with a zero delay is not fired again
// within the same runTimers pass (spec's recursion-depth rule).
func TestReactor_TimerRecursionCappedAtOnePollPass(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()

	var calls int
	var reschedule func()
	reschedule = func() {
		calls++
		if calls < 3 {
			r.PostAfter(0, reschedule)
		}
	}
	r.PostAfter(0, reschedule)

	require.NoError(t, r.RunOnce(time.Second))
	require.Equal(t, 1, calls, "only the first timer should fire within one RunOnce pass")

	require.NoError(t, r.RunOnce(time.Second))
	require.Equal(t, 2, calls)
}
