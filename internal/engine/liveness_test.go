package engine

import "testing"

func newTestLiveness() (*Liveness, *Registry, *Timers) {
	reg := NewRegistry()
	timers := NewTimers(reg, NewMailbox())
	return NewLiveness(reg, timers), reg, timers
}

func TestShouldContinueFalseWhenIdle(t *testing.T) {
	live, _, _ := newTestLiveness()
	if live.ShouldContinue() {
		t.Error("an idle engine has no reason to continue")
	}
}

func TestPendingCallbackKeepsAlive(t *testing.T) {
	live, reg, _ := newTestLiveness()

	h := reg.Register(KindThreadResult, noopCallback)
	if !live.ShouldContinue() {
		t.Error("a pending callback must keep the engine alive")
	}

	reg.Unregister(h)
	if live.ShouldContinue() {
		t.Error("no reason to continue after the last pending callback is gone")
	}
}

func TestPersistentEntryAloneDoesNotKeepAlive(t *testing.T) {
	live, reg, _ := newTestLiveness()

	// Event subscriptions are persistent but passive; they must not pin the
	// engine on their own.
	reg.Register(KindBridgeResult, noopCallback, WithPersistent())
	if live.ShouldContinue() {
		t.Error("a persistent subscription alone must not keep the engine alive")
	}
}

func TestActiveIntervalKeepsAlive(t *testing.T) {
	live, _, timers := newTestLiveness()

	h, err := timers.Every(1000, noopCallback)
	if err != nil {
		t.Fatalf("Every failed: %v", err)
	}
	if !live.ShouldContinue() {
		t.Error("an active interval must keep the engine alive")
	}

	timers.Cancel(h)
	if live.ShouldContinue() {
		t.Error("no reason to continue after the interval is cancelled")
	}
}

func TestExtraCheckKeepsAlive(t *testing.T) {
	live, _, _ := newTestLiveness()

	busy := true
	live.AddCheck(func() bool { return busy })
	live.AddCheck(nil) // ignored

	if !live.ShouldContinue() {
		t.Error("a reporting extra check must keep the engine alive")
	}
	busy = false
	if live.ShouldContinue() {
		t.Error("no reason to continue once the extra check clears")
	}
}

func TestRunForeverOverridesEverything(t *testing.T) {
	live, _, _ := newTestLiveness()

	live.SetRunForever(true)
	if !live.RunForever() {
		t.Error("RunForever should report the set flag")
	}
	if !live.ShouldContinue() {
		t.Error("run-forever must keep the engine alive with no work at all")
	}

	live.SetRunForever(false)
	if live.ShouldContinue() {
		t.Error("clearing run-forever must allow drain")
	}
}
