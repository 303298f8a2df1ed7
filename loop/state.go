package loop

import "sync/atomic"

// State is the lifecycle of a Loop, matching spec.md's state machine:
// created idle, first submission starts the worker, shutdown drains pending
// work before terminating.
type State uint32

const (
	// StateIdle: constructed, worker goroutine not yet started.
	StateIdle State = iota
	// StateRunning: worker goroutine executing or about to run a tick.
	StateRunning
	// StateSleeping: worker parked waiting for work or a timer deadline.
	StateSleeping
	// StateShuttingDown: shutdown requested, worker draining queued tasks.
	StateShuttingDown
	// StateTerminated: worker exited, cleanup ran exactly once.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// fastState is a cache-line-padded CAS state holder, the same shape as the
// teacher's FastState, generalized from uint64 to the State enum above.
type fastState struct {
	_     [64]byte
	value atomic.Uint32
	_     [60]byte
}

func newFastState(initial State) *fastState {
	fs := &fastState{}
	fs.value.Store(uint32(initial))
	return fs
}

func (f *fastState) Load() State {
	return State(f.value.Load())
}

func (f *fastState) Store(s State) {
	f.value.Store(uint32(s))
}

func (f *fastState) TryTransition(from, to State) bool {
	return f.value.CompareAndSwap(uint32(from), uint32(to))
}

// TransitionAny moves to `to` from whichever of validFrom the state currently
// holds, retrying on concurrent transitions among the candidate set. Returns
// false if the current state is not one of validFrom.
func (f *fastState) TransitionAny(validFrom []State, to State) bool {
	for {
		cur := f.Load()
		ok := false
		for _, v := range validFrom {
			if v == cur {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
		if f.value.CompareAndSwap(uint32(cur), uint32(to)) {
			return true
		}
	}
}

func (f *fastState) IsTerminal() bool {
	return f.Load() == StateTerminated
}

func (f *fastState) IsShutdown() bool {
	s := f.Load()
	return s == StateShuttingDown || s == StateTerminated
}

// CanAcceptWork reports whether a task submitted now is guaranteed to run
// (i.e. the loop has not yet begun shutting down).
func (f *fastState) CanAcceptWork() bool {
	s := f.Load()
	return s != StateShuttingDown && s != StateTerminated
}
