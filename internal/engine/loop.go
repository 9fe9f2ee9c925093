package engine

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/script-host/internal/goroutineid"
)

const (
	// defaultPollInterval bounds how long the loop sleeps between ticks
	// when no wake signal arrives. Liveness re-evaluation rides on it.
	defaultPollInterval = 50 * time.Millisecond

	// defaultSyncTimeout bounds RunOnLoopSync waits.
	defaultSyncTimeout = 10 * time.Second
)

// Loop is the single-consumer engine loop. It owns exclusive invocation
// rights over registered callbacks: every script-visible callback runs on
// the loop goroutine, one at a time, never concurrently (the single-flight
// guarantee). Producers (timers, workers, the UI host) never touch callbacks
// directly; they post envelopes and the loop dispatches them.
type Loop struct {
	log     *slog.Logger
	reg     *Registry
	mail    *Mailbox
	timers  *Timers
	live    *Liveness
	jobWake chan struct{}
	stopCh  chan struct{}
	done    chan struct{}

	jobMu sync.Mutex
	jobs  []func()

	startOnce sync.Once
	stopOnce  sync.Once

	loopGoroutine atomic.Int64
	state         stateMachine

	syncTimeout  time.Duration
	pollInterval time.Duration
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) {
		if log != nil {
			l.log = log
		}
	}
}

// WithSyncTimeout bounds how long RunOnLoopSync waits for the loop to
// execute the submitted function.
func WithSyncTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.syncTimeout = d
		}
	}
}

// WithPollInterval sets the idle tick interval used for periodic liveness
// evaluation. Mostly useful to tighten tests.
func WithPollInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// New creates a stopped-cold loop with its registry, mailbox, timer
// subsystem, and liveness monitor wired together. Call Start to begin.
func New(opts ...Option) *Loop {
	reg := NewRegistry()
	mail := NewMailbox()
	timers := NewTimers(reg, mail)
	l := &Loop{
		log:          slog.Default(),
		reg:          reg,
		mail:         mail,
		timers:       timers,
		live:         NewLiveness(reg, timers),
		jobWake:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		syncTimeout:  defaultSyncTimeout,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the loop's callback registry.
func (l *Loop) Registry() *Registry { return l.reg }

// Mailbox returns the loop's result mailbox. Producers post here.
func (l *Loop) Mailbox() *Mailbox { return l.mail }

// Timers returns the loop's timer subsystem.
func (l *Loop) Timers() *Timers { return l.timers }

// Liveness returns the loop's liveness monitor.
func (l *Loop) Liveness() *Liveness { return l.live }

// State returns the current lifecycle state.
func (l *Loop) State() State { return l.state.load() }

// Done returns a channel closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Start launches the loop goroutine. Safe to call once; further calls are
// no-ops.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

// Wait blocks until the loop has fully stopped.
func (l *Loop) Wait() {
	<-l.done
}

// MarkLoaded transitions Starting -> Running once the initial script load
// has completed. Until then the loop idles without evaluating liveness, so
// a script whose only work is scheduled late in the load is not torn down
// prematurely.
func (l *Loop) MarkLoaded() {
	l.state.transition(StateStarting, StateRunning)
}

// Stop requests teardown. The loop finishes the current callback, flushes
// already-queued envelopes and jobs, flushes the registry, and stops.
// Idempotent and callable from any goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		if !l.state.transition(StateRunning, StateDraining) {
			l.state.transition(StateStarting, StateDraining)
		}
		close(l.stopCh)
	})
}

// OnLoop reports whether the caller is running on the loop goroutine.
func (l *Loop) OnLoop() bool {
	id := l.loopGoroutine.Load()
	return id != 0 && id == goroutineid.Get()
}

// RunOnLoop submits fn for asynchronous execution on the loop goroutine.
// Returns false if the loop is draining or stopped (fn will never run).
// Never blocks the caller.
func (l *Loop) RunOnLoop(fn func()) bool {
	if fn == nil {
		return false
	}
	if s := l.state.load(); s == StateDraining || s == StateStopped {
		return false
	}
	l.jobMu.Lock()
	l.jobs = append(l.jobs, fn)
	l.jobMu.Unlock()
	select {
	case l.jobWake <- struct{}{}:
	default:
	}
	return true
}

// RunOnLoopSync executes fn on the loop goroutine and waits for its result.
// When already on the loop goroutine it executes fn directly instead of
// deadlocking on itself. Returns ErrLoopClosed if the loop cannot accept
// work, or a TimeoutError if the loop does not get to fn within the
// configured sync timeout.
func (l *Loop) RunOnLoopSync(fn func() error) error {
	if fn == nil {
		return nil
	}
	if l.OnLoop() {
		return fn()
	}

	errCh := make(chan error, 1)
	if !l.RunOnLoop(func() { errCh <- fn() }) {
		return ErrLoopClosed
	}

	timer := time.NewTimer(l.syncTimeout)
	defer timer.Stop()
	select {
	case err := <-errCh:
		return err
	case <-l.done:
		// The loop may have executed fn during its final flush.
		select {
		case err := <-errCh:
			return err
		default:
			return ErrLoopClosed
		}
	case <-timer.C:
		return &TimeoutError{Message: "engine: sync loop call timed out", Cause: ErrOnLoop}
	}
}

func (l *Loop) run() {
	defer close(l.done)
	l.loopGoroutine.Store(goroutineid.Get())

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		l.runJobs()
		l.dispatchAll()

		switch l.state.load() {
		case StateDraining:
			l.drain()
			return
		case StateRunning:
			if l.mail.Len() == 0 && !l.pendingJobs() && !l.live.ShouldContinue() {
				if l.state.transition(StateRunning, StateDraining) {
					l.drain()
					return
				}
			}
		}

		select {
		case <-l.mail.Wake():
		case <-l.jobWake:
		case <-ticker.C:
		case <-l.stopCh:
		}
	}
}

// drain performs the final flush: remaining jobs and envelopes run in order,
// then the registry is flushed so nothing registered later can ever fire.
func (l *Loop) drain() {
	l.runJobs()
	l.dispatchAll()
	l.reg.Flush()
	l.state.store(StateStopped)
	l.log.Debug("engine loop stopped")
}

func (l *Loop) pendingJobs() bool {
	l.jobMu.Lock()
	defer l.jobMu.Unlock()
	return len(l.jobs) > 0
}

func (l *Loop) runJobs() {
	l.jobMu.Lock()
	jobs := l.jobs
	l.jobs = nil
	l.jobMu.Unlock()
	for _, fn := range jobs {
		l.safely(fn)
	}
}

func (l *Loop) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("loop job panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (l *Loop) dispatchAll() {
	for _, env := range l.mail.DrainAll() {
		l.dispatch(env)
	}
}

// dispatch is the single boundary between host plumbing and script
// callbacks. Unresolvable envelopes (cancelled, already fired, never
// registered) are dropped silently; a failing callback is logged and, for
// intervals, deactivates that interval without affecting anything else.
func (l *Loop) dispatch(env Envelope) {
	p, ok := l.reg.Resolve(env.Target)
	if !ok {
		l.log.Debug("dropped envelope for unknown handle",
			"handle", uint64(env.Target),
			"producer", env.Producer)
		return
	}

	err := l.invoke(p, env)

	if !p.Persistent() {
		l.reg.Unregister(env.Target)
	}

	if err != nil {
		derr := &DispatchError{Handle: env.Target, Kind: p.Kind(), Cause: err}
		l.log.Error("callback failed",
			"handle", uint64(env.Target),
			"kind", p.Kind().String(),
			"producer", env.Producer,
			"error", derr)
		if p.Kind() == KindInterval {
			// Fail-stop per interval: a throwing interval callback stops
			// repeating instead of erroring forever.
			l.reg.Cancel(env.Target)
		}
	}
}

func (l *Loop) invoke(p *PendingCallback, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return p.Fire(env.Payload, env.Err)
}
