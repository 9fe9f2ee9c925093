package engine

import (
	"sync"
	"testing"
)

func noopCallback(any, error) error { return nil }

func TestRegisterAssignsUniqueMonotonicHandles(t *testing.T) {
	reg := NewRegistry()

	var prev Handle
	for i := 0; i < 100; i++ {
		h := reg.Register(KindOneShot, noopCallback)
		if h == 0 {
			t.Fatal("handle 0 must be reserved as the null marker")
		}
		if h <= prev {
			t.Fatalf("handle %d not strictly greater than previous %d", h, prev)
		}
		prev = h
	}
}

func TestHandlesNeverReusedAfterRemoval(t *testing.T) {
	reg := NewRegistry()

	seen := make(map[Handle]bool)
	for i := 0; i < 50; i++ {
		h := reg.Register(KindOneShot, noopCallback)
		if seen[h] {
			t.Fatalf("handle %d was issued twice", h)
		}
		seen[h] = true
		reg.Unregister(h)
	}
}

func TestConcurrentRegistrationHandleUniqueness(t *testing.T) {
	reg := NewRegistry()

	const goroutines = 8
	const perGoroutine = 200

	results := make([][]Handle, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				results[g] = append(results[g], reg.Register(KindThreadResult, noopCallback))
			}
		}(g)
	}
	wg.Wait()

	seen := make(map[Handle]bool)
	for _, hs := range results {
		for _, h := range hs {
			if seen[h] {
				t.Fatalf("handle %d issued to more than one registration", h)
			}
			seen[h] = true
		}
	}
	if len(seen) != goroutines*perGoroutine {
		t.Fatalf("expected %d unique handles, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestResolveAndUnregister(t *testing.T) {
	reg := NewRegistry()
	h := reg.Register(KindOneShot, noopCallback)

	p, ok := reg.Resolve(h)
	if !ok {
		t.Fatal("expected handle to resolve")
	}
	if p.Handle() != h {
		t.Errorf("expected handle %d, got %d", h, p.Handle())
	}
	if p.Kind() != KindOneShot {
		t.Errorf("expected kind %v, got %v", KindOneShot, p.Kind())
	}
	if p.Persistent() {
		t.Error("one-shot entry should not be persistent")
	}

	if !reg.Unregister(h) {
		t.Error("first unregister should report removal")
	}
	if reg.Unregister(h) {
		t.Error("second unregister must be a no-op")
	}
	if _, ok := reg.Resolve(h); ok {
		t.Error("unregistered handle must not resolve")
	}
}

func TestCancelInvokesNativeHook(t *testing.T) {
	reg := NewRegistry()

	cancelled := false
	h := reg.Register(KindOneShot, noopCallback, WithCancel(func() { cancelled = true }))

	if !reg.Cancel(h) {
		t.Fatal("cancel of a live handle should report removal")
	}
	if !cancelled {
		t.Error("cancel hook was not invoked")
	}
	if reg.Cancel(h) {
		t.Error("second cancel must be a no-op")
	}
}

func TestSetCancelReplacesHook(t *testing.T) {
	reg := NewRegistry()

	var fired string
	h := reg.Register(KindOneShot, noopCallback, WithCancel(func() { fired = "original" }))
	reg.SetCancel(h, func() { fired = "replacement" })

	reg.Cancel(h)
	if fired != "replacement" {
		t.Errorf("expected replacement hook to run, got %q", fired)
	}

	// Unknown handle must not panic.
	reg.SetCancel(Handle(99999), func() {})
}

func TestCounts(t *testing.T) {
	reg := NewRegistry()

	reg.Register(KindOneShot, noopCallback)
	reg.Register(KindThreadResult, noopCallback)
	reg.Register(KindInterval, noopCallback, WithPersistent())

	if got := reg.Count(nil); got != 3 {
		t.Errorf("expected total count 3, got %d", got)
	}
	if got := reg.PendingCount(); got != 2 {
		t.Errorf("persistent entries must not count as pending, got %d", got)
	}
	if got := reg.CountKind(KindInterval); got != 1 {
		t.Errorf("expected 1 interval entry, got %d", got)
	}
	if got := reg.CountKind(KindBridgeResult); got != 0 {
		t.Errorf("expected 0 bridge entries, got %d", got)
	}
}

func TestFlushDropsEverythingAndRejectsFutureEntries(t *testing.T) {
	reg := NewRegistry()

	cancelled := 0
	h1 := reg.Register(KindOneShot, noopCallback, WithCancel(func() { cancelled++ }))
	h2 := reg.Register(KindInterval, noopCallback, WithPersistent(), WithCancel(func() { cancelled++ }))

	reg.Flush()

	if cancelled != 2 {
		t.Errorf("expected both cancel hooks to run, got %d", cancelled)
	}
	if _, ok := reg.Resolve(h1); ok {
		t.Error("flushed handle must not resolve")
	}
	if _, ok := reg.Resolve(h2); ok {
		t.Error("flushed persistent handle must not resolve")
	}

	// Registrations after flush still hand out handles, but they never resolve.
	h3 := reg.Register(KindOneShot, noopCallback)
	if h3 <= h2 {
		t.Error("handle allocation must stay monotonic after flush")
	}
	if _, ok := reg.Resolve(h3); ok {
		t.Error("post-flush registration must not resolve")
	}
	if got := reg.Count(nil); got != 0 {
		t.Errorf("expected empty registry after flush, got %d", got)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindOneShot:      "one-shot",
		KindInterval:     "interval",
		KindThreadResult: "thread-result",
		KindBridgeResult: "bridge-result",
		Kind(42):         "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
