package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// timerProducer tags envelopes posted by the native timer layer.
const timerProducer = "timer"

// Timers schedules one-shot and repeating delays on top of the host
// scheduler (runtime timers via time.AfterFunc) and fires into registry
// entries. A native timer never invokes the script callback directly from
// the runtime timer goroutine; it posts an envelope through the mailbox so
// all script-visible invocation happens on the engine loop.
type Timers struct {
	reg       *Registry
	mail      *Mailbox
	intervals map[Handle]*intervalState
	mu        sync.Mutex
}

// NewTimers creates a timer subsystem bound to the given registry and
// mailbox.
func NewTimers(reg *Registry, mail *Mailbox) *Timers {
	return &Timers{
		reg:       reg,
		mail:      mail,
		intervals: make(map[Handle]*intervalState),
	}
}

// After schedules fire to run once after delayMs milliseconds. A negative
// delay is a synchronous registration error; zero is valid and fires on the
// next tick after the delay elapses (immediately, modulo scheduler jitter).
func (t *Timers) After(delayMs int, fire Callback) (Handle, error) {
	if fire == nil {
		return 0, registrationErrorf("timer callback must not be nil")
	}
	if delayMs < 0 {
		return 0, registrationErrorf("timer delay must not be negative: %d", delayMs)
	}

	h := t.reg.Register(KindOneShot, fire)
	tm := time.AfterFunc(time.Duration(delayMs)*time.Millisecond, func() {
		t.mail.Post(Envelope{Target: h, Producer: timerProducer})
	})
	t.reg.SetCancel(h, func() { tm.Stop() })
	return h, nil
}

// Every schedules fire to run repeatedly every delayMs milliseconds.
//
// An interval is a self-rescheduling chain of one-shot native timers rather
// than a native repeating primitive: each firing runs the callback on the
// loop, then (if the interval is still active) arms a fresh one-shot with
// the same delay. At most one live native timer exists per active interval
// at any instant, and cancellation or a callback failure stops the chain
// before the next rearm.
func (t *Timers) Every(delayMs int, fire Callback) (Handle, error) {
	if fire == nil {
		return 0, registrationErrorf("interval callback must not be nil")
	}
	if delayMs < 0 {
		return 0, registrationErrorf("interval delay must not be negative: %d", delayMs)
	}

	st := &intervalState{
		timers: t,
		delay:  time.Duration(delayMs) * time.Millisecond,
	}

	// A dispatch failure returns before the rearm, so the loop's fail-stop
	// policy (Cancel on error) finds no further native timer to suppress.
	wrapped := func(payload any, err error) error {
		if cbErr := fire(payload, err); cbErr != nil {
			return cbErr
		}
		st.arm()
		return nil
	}

	h := t.reg.Register(KindInterval, wrapped, WithPersistent(), WithCancel(st.stop))
	st.handle = h

	t.mu.Lock()
	t.intervals[h] = st
	t.mu.Unlock()

	st.arm()
	return h, nil
}

// Cancel cancels a timer or interval handle. Best-effort at the scheduling
// layer; always effective at the delivery layer. Idempotent.
func (t *Timers) Cancel(h Handle) bool {
	return t.reg.Cancel(h)
}

// ActiveIntervals returns the number of intervals that have not been
// cancelled or deactivated.
func (t *Timers) ActiveIntervals() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.intervals)
}

func (t *Timers) removeInterval(h Handle) {
	t.mu.Lock()
	delete(t.intervals, h)
	t.mu.Unlock()
}

// intervalState tracks one logical interval id across its chain of native
// one-shot timers.
type intervalState struct {
	timers   *Timers
	current  *time.Timer
	handle   Handle
	delay    time.Duration
	m        sync.Mutex
	canceled atomic.Bool
}

// arm schedules the next native one-shot for this interval. No-op once
// cancelled; the canceled flag is checked again under the lock so a cancel
// racing an in-flight rearm cannot leave a live timer behind.
func (st *intervalState) arm() {
	if st.canceled.Load() {
		return
	}
	st.m.Lock()
	defer st.m.Unlock()
	if st.canceled.Load() {
		return
	}
	st.current = time.AfterFunc(st.delay, func() {
		st.timers.mail.Post(Envelope{Target: st.handle, Producer: timerProducer})
	})
}

// stop deactivates the interval: marks it cancelled, stops any pending
// native timer, and drops it from the active set. An envelope already in
// flight at stop time finds no registry entry and is dropped, so zero
// further firings are observed after cancellation.
func (st *intervalState) stop() {
	st.canceled.Store(true)
	st.m.Lock()
	if st.current != nil {
		st.current.Stop()
	}
	st.m.Unlock()
	st.timers.removeInterval(st.handle)
}
