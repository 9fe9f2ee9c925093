package engine

import "sync/atomic"

// State is the engine loop's lifecycle phase. Transitions only move forward:
// Starting -> Running -> Draining -> Stopped. Draining may also be entered
// directly from Starting when the initial script load fails.
type State uint32

const (
	// StateStarting means the loop goroutine is up but the initial script
	// has not finished loading. Liveness is not evaluated in this phase.
	StateStarting State = iota
	// StateRunning is normal operation: dispatch envelopes, run loop jobs,
	// evaluate liveness each tick.
	StateRunning
	// StateDraining means teardown has begun: already-queued work is
	// flushed, new registrations are rejected.
	StateDraining
	// StateStopped is terminal.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "invalid"
	}
}

// stateMachine is a lock-free forward-only state holder.
type stateMachine struct {
	v atomic.Uint32
}

func (m *stateMachine) load() State {
	return State(m.v.Load())
}

// transition performs a compare-and-swap from one state to another and
// reports whether it won. Losing means another goroutine already moved the
// state, which callers treat as "someone else got there first", not a fault.
func (m *stateMachine) transition(from, to State) bool {
	return m.v.CompareAndSwap(uint32(from), uint32(to))
}

func (m *stateMachine) store(s State) {
	m.v.Store(uint32(s))
}
