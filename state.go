package asyncsock

import (
	"sync/atomic"
)

// ReactorState is the lifecycle state of a [Reactor].
//
//	StateAwake (0) → StateRunning (3)      [Run/RunFor, CAS]
//	StateRunning (3) → StateSleeping (2)   [Run, before each Poll, CAS]
//	StateSleeping (2) → StateRunning (3)   [Run after Poll, RunFor, CAS]
//	any → StateTerminated (1)              [Close, Store]
//	StateTerminated (1) → (terminal)
//
// RunOnce and Poll do not change the state. StateTerminating (4) is
// defined but never entered: Close stores StateTerminated directly.
type ReactorState uint64

const (
	StateAwake ReactorState = 0
	StateTerminated ReactorState = 1
	StateSleeping ReactorState = 2
	StateRunning ReactorState = 3
	StateTerminating ReactorState = 4
)

func (s ReactorState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine with cache-line padding to
// avoid false sharing between the poll goroutine and other cores
// reading it (e.g. a concurrent Close).
type fastState struct { // betteralign:ignore
	_ [sizeOfCacheLine]byte
	v atomic.Uint64
	_ [sizeOfCacheLine - sizeOfAtomicUint64]byte
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

func (s *fastState) Load() ReactorState {
	return ReactorState(s.v.Load())
}

func (s *fastState) Store(state ReactorState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically move from state from to to.
func (s *fastState) TryTransition(from, to ReactorState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// TransitionAny attempts to move from any state in validFrom to to.
func (s *fastState) TransitionAny(validFrom []ReactorState, to ReactorState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint64(from), uint64(to)) {
			return true
		}
	}
	return false
}

func (s *fastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

func (s *fastState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}

func (s *fastState) CanAcceptWork() bool {
	state := s.Load()
	return state == StateAwake || state == StateRunning || state == StateSleeping
}
