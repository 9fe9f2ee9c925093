package engine

import (
	"sync"
	"sync/atomic"
)

// Liveness decides whether the engine still has a reason to run. The loop
// asks once per tick, after dispatch, and begins draining the first time the
// answer is no.
//
// The engine continues if and only if at least one of these holds: a
// non-persistent callback is pending, an interval is active, an extra check
// (e.g. outstanding bridge commands) reports work, or run-forever is set.
type Liveness struct {
	reg        *Registry
	timers     *Timers
	extra      []func() bool
	mu         sync.Mutex
	runForever atomic.Bool
}

// NewLiveness creates a monitor over the given registry and timers.
func NewLiveness(reg *Registry, timers *Timers) *Liveness {
	return &Liveness{reg: reg, timers: timers}
}

// AddCheck registers an additional liveness source. Checks must be cheap and
// safe to call from the loop goroutine every tick.
func (v *Liveness) AddCheck(check func() bool) {
	if check == nil {
		return
	}
	v.mu.Lock()
	v.extra = append(v.extra, check)
	v.mu.Unlock()
}

// SetRunForever forces ShouldContinue to true regardless of pending work,
// for daemon-style scripts that only react to external events.
func (v *Liveness) SetRunForever(b bool) {
	v.runForever.Store(b)
}

// RunForever reports the run-forever flag.
func (v *Liveness) RunForever() bool {
	return v.runForever.Load()
}

// ShouldContinue reports whether any pending work justifies another tick.
func (v *Liveness) ShouldContinue() bool {
	if v.runForever.Load() {
		return true
	}
	if v.reg.PendingCount() > 0 {
		return true
	}
	if v.timers.ActiveIntervals() > 0 {
		return true
	}
	v.mu.Lock()
	checks := v.extra
	v.mu.Unlock()
	for _, check := range checks {
		if check() {
			return true
		}
	}
	return false
}
