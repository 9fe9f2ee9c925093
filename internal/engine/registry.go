package engine

import (
	"sync"
	"sync/atomic"
)

// Handle is an opaque identifier for a registered asynchronous operation.
// Handles are monotonically increasing and unique for the process lifetime;
// they are never reused, even after the entry is removed, so a stale handle
// can never collide with a later registration.
type Handle uint64

// Kind classifies a pending callback by the subsystem that registered it.
type Kind uint8

const (
	// KindOneShot is a single-fire timer callback.
	KindOneShot Kind = iota
	// KindInterval is a repeating timer callback (persistent; fires many times).
	KindInterval
	// KindThreadResult is the completion of work offloaded to a worker goroutine.
	KindThreadResult
	// KindBridgeResult is the reply to a command sent across the UI bridge.
	KindBridgeResult
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindOneShot:
		return "one-shot"
	case KindInterval:
		return "interval"
	case KindThreadResult:
		return "thread-result"
	case KindBridgeResult:
		return "bridge-result"
	default:
		return "unknown"
	}
}

// Callback is the typed dispatch target installed at registration time.
// It is always invoked on the engine-loop goroutine, with the envelope's
// payload and error. A returned error is caught at the dispatch boundary
// and logged; it never propagates to unrelated callbacks.
type Callback func(payload any, err error) error

// PendingCallback is the registry's record of one registered asynchronous
// operation. Owned exclusively by the Registry; callers only ever see
// immutable snapshots via Resolve.
type PendingCallback struct {
	fire       Callback
	cancel     func()
	handle     Handle
	kind       Kind
	persistent bool
}

// Handle returns the callback's handle.
func (p *PendingCallback) Handle() Handle { return p.handle }

// Kind returns the callback's kind.
func (p *PendingCallback) Kind() Kind { return p.kind }

// Persistent reports whether the entry survives firing. Persistent entries
// must be explicitly unregistered by the code that registered them.
func (p *PendingCallback) Persistent() bool { return p.persistent }

// Fire invokes the callback closure. Engine-loop goroutine only.
func (p *PendingCallback) Fire(payload any, err error) error {
	return p.fire(payload, err)
}

// RegisterOption configures a registration.
type RegisterOption func(*PendingCallback)

// WithPersistent marks the entry as surviving dispatch; it stays registered
// after firing until explicitly unregistered.
func WithPersistent() RegisterOption {
	return func(p *PendingCallback) { p.persistent = true }
}

// WithCancel attaches a best-effort hook into the native scheduler, invoked
// by Cancel to suppress a not-yet-fired operation. Suppression at delivery
// time (an unresolvable envelope is dropped) is the authoritative guard.
func WithCancel(cancel func()) RegisterOption {
	return func(p *PendingCallback) { p.cancel = cancel }
}

// Registry owns the mapping from handle to pending-callback metadata. It is
// safe for concurrent use; the lock is coarse-grained and held only for the
// duration of an insert, remove, or count, never across a callback
// invocation.
type Registry struct {
	entries map[Handle]*PendingCallback
	next    atomic.Uint64
	mu      sync.Mutex
	closed  bool
}

// NewRegistry creates an empty registry. Handles start at 1 so the zero
// Handle can serve as a null marker.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]*PendingCallback)}
}

// Register allocates the next handle, inserts a pending callback, and
// returns the handle. Registration never fails; after Flush the entry is
// inserted and immediately dropped, so the returned handle simply never
// resolves.
func (r *Registry) Register(kind Kind, fire Callback, opts ...RegisterOption) Handle {
	h := Handle(r.next.Add(1))
	p := &PendingCallback{
		handle: h,
		kind:   kind,
		fire:   fire,
	}
	for _, opt := range opts {
		opt(p)
	}

	r.mu.Lock()
	if !r.closed {
		r.entries[h] = p
	}
	r.mu.Unlock()
	return h
}

// SetCancel attaches or replaces the native cancel hook on an existing
// entry. Used when the underlying native operation is created after the
// handle (e.g. interval rearming swaps in a fresh one-shot native timer).
// No-op for unknown handles.
func (r *Registry) SetCancel(h Handle, cancel func()) {
	r.mu.Lock()
	if p, ok := r.entries[h]; ok {
		p.cancel = cancel
	}
	r.mu.Unlock()
}

// Resolve looks up the entry for dispatch. The second return is false when
// the handle was never registered, already fired, or was cancelled; the
// caller is expected to drop the envelope silently in that case.
func (r *Registry) Resolve(h Handle) (*PendingCallback, bool) {
	r.mu.Lock()
	p, ok := r.entries[h]
	r.mu.Unlock()
	return p, ok
}

// Unregister removes the entry. Idempotent: unregistering an already-removed
// or unknown handle is a no-op, not an error, since scripts may race a
// cancel against a fire. Reports whether an entry was removed.
func (r *Registry) Unregister(h Handle) bool {
	r.mu.Lock()
	_, ok := r.entries[h]
	if ok {
		delete(r.entries, h)
	}
	r.mu.Unlock()
	return ok
}

// Cancel unregisters the entry AND instructs the underlying scheduler to
// suppress a not-yet-fired native operation if possible. Firing after
// cancel is suppressed at delivery time even if the native layer could not
// be stopped in time. Idempotent.
func (r *Registry) Cancel(h Handle) bool {
	r.mu.Lock()
	p, ok := r.entries[h]
	if ok {
		delete(r.entries, h)
	}
	r.mu.Unlock()

	// Native suppression happens outside the lock; hooks may take their
	// own locks (interval state) or stop runtime timers.
	if ok && p.cancel != nil {
		p.cancel()
	}
	return ok
}

// Count returns the number of entries matching the predicate. A nil
// predicate counts everything.
func (r *Registry) Count(pred func(*PendingCallback) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pred == nil {
		return len(r.entries)
	}
	n := 0
	for _, p := range r.entries {
		if pred(p) {
			n++
		}
	}
	return n
}

// PendingCount returns the number of non-persistent pending entries, the
// quantity the liveness monitor cares about.
func (r *Registry) PendingCount() int {
	return r.Count(func(p *PendingCallback) bool { return !p.persistent })
}

// CountKind returns the number of entries of the given kind.
func (r *Registry) CountKind(k Kind) int {
	return r.Count(func(p *PendingCallback) bool { return p.kind == k })
}

// Flush cancels and drops every entry and rejects future registrations.
// Called once when engine teardown begins; no entry fires after Flush
// returns (their envelopes, if any arrive, find no entry and are dropped).
func (r *Registry) Flush() {
	r.mu.Lock()
	dropped := make([]*PendingCallback, 0, len(r.entries))
	for _, p := range r.entries {
		dropped = append(dropped, p)
	}
	r.entries = make(map[Handle]*PendingCallback)
	r.closed = true
	r.mu.Unlock()

	for _, p := range dropped {
		if p.cancel != nil {
			p.cancel()
		}
	}
}
