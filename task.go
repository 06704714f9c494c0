package asyncsock

import (
	"time"
)

// timeoutMillis converts a poll timeout to the millisecond form every
// platform wait syscall expects: negative blocks indefinitely, zero
// polls without blocking.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms > int64(^uint32(0)>>1) {
		ms = int64(^uint32(0) >> 1)
	}
	return int(ms)
}

// nextTimerDelay reports how long until the earliest scheduled timer
// fires, or -1 if there are none, used to cap Poll's wait so a timer
// is never discovered later than its deadline.
func (r *Reactor) nextTimerDelay() time.Duration {
	head, ok := r.timers.Peek()
	if !ok {
		return -1
	}
	d := head.deadline.Sub(r.now())
	if d < 0 {
		return 0
	}
	return d
}

// now returns the reactor's notion of the current time. Exists as a
// method (rather than a bare time.Now() call) so tests can observe
// the same timestamp the reactor used when scheduling followed firing
// within a single poll.
func (r *Reactor) now() time.Time {
	return time.Now()
}

// runTimers fires every timer whose deadline has passed, in deadline
// order, then tie-broken by insertion order. A timer's fn may itself
// call Post or PostAfter; the newly scheduled work is not visited
// again in this same pass, capping recursion at one level per poll
// (see spec.md's timer/task-service recursion-depth rule).
func (r *Reactor) runTimers() {
	now := r.now()
	for {
		head, ok := r.timers.Peek()
		if !ok || head.deadline.After(now) {
			return
		}
		r.timers.Pop()
		if r.rates.allow(InvalidHandle, logCategoryTimer) {
			r.logger.Debug().Str("category", logCategoryTimer).Log("timer fired")
		}
		head.fn()
	}
}

// Post schedules fn to run on the reactor's driving thread during the
// next Poll iteration, after that iteration's readiness wait. Like
// every other reactor operation it must be called from the reactor's
// own goroutine: the timer set it inserts into is not synchronized. It
// also wakes the backend so the next wait returns immediately.
func (r *Reactor) Post(fn func()) {
	r.PostAfter(0, fn)
}

// PostAfter schedules fn to run once delay has elapsed, measured from
// the call to PostAfter rather than from the next Poll.
func (r *Reactor) PostAfter(delay time.Duration, fn func()) {
	r.timerSeq++
	node := &timerNode{deadline: r.now().Add(delay), seq: r.timerSeq, fn: fn}
	r.timers.InsertSorted(node, timerLess)
	if delay <= 0 {
		_ = r.backend.wake()
	}
}

// RunOnce drives exactly one Poll iteration, waiting up to timeout.
func (r *Reactor) RunOnce(timeout time.Duration) error {
	return r.Poll(timeout)
}

// RunFor drives Poll iterations until d has elapsed.
func (r *Reactor) RunFor(d time.Duration) error {
	deadline := r.now().Add(d)
	for {
		remaining := deadline.Sub(r.now())
		if remaining <= 0 {
			return nil
		}
		if !r.state.TryTransition(StateAwake, StateRunning) {
			r.state.TryTransition(StateSleeping, StateRunning)
		}
		if err := r.Poll(remaining); err != nil {
			return err
		}
	}
}

// Run drives Poll indefinitely until Close is called.
func (r *Reactor) Run() error {
	r.state.TryTransition(StateAwake, StateRunning)
	for !r.state.IsTerminal() {
		r.state.TryTransition(StateRunning, StateSleeping)
		if err := r.Poll(-1); err != nil {
			return err
		}
		r.state.TryTransition(StateSleeping, StateRunning)
	}
	return nil
}
