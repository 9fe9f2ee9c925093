// Package bridge carries commands from script code to a foreign-thread host
// (the terminal UI program) and routes each host reply back to exactly one
// registered callback on the engine loop.
package bridge

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/script-host/internal/engine"
)

// ErrUnknownVerb is returned synchronously when a command names a verb the
// host does not handle. Unknown verbs never cross the bridge.
var ErrUnknownVerb = errors.New("bridge: unknown verb")

// bridgeProducer tags envelopes posted on behalf of the host.
const bridgeProducer = "bridge"

// Command is one request delivered to the host. IDs are unique per command;
// ReplyTo is the engine handle the eventual result resolves to.
type Command struct {
	Args    map[string]any
	ID      string
	Verb    string
	ReplyTo engine.Handle
}

// Result is the host's reply to one command. Exactly one result must be
// posted per delivered command; a host that drops a command leaves the
// callback permanently pending.
type Result struct {
	Value   any
	Err     error
	ID      string
	ReplyTo engine.Handle
}

// ResultFunc is the sink a host posts results through. Safe to call from
// the host's own goroutine.
type ResultFunc func(Result)

// Host is the foreign-thread consumer of bridge commands. Start receives
// the result sink; Deliver must not block the caller for longer than a
// queue insert.
type Host interface {
	Start(post ResultFunc) error
	Deliver(cmd Command)
	Verbs() []string
	Close() error
}

// Bridge validates and dispatches commands, owning the handle bookkeeping
// on the engine side. Construction wires the verb table from the host, so
// validation needs no cross-thread round trip.
type Bridge struct {
	loop    *engine.Loop
	host    Host
	log     *slog.Logger
	verbs   map[string]struct{}
	timeout time.Duration

	subMu sync.Mutex
	subs  map[string][]engine.Handle
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout enables a per-command deadline: if the host has not replied
// within d, a synthesized failure result is posted and the real reply, if
// it ever arrives, is dropped. Zero disables the deadline (the default).
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// WithBridgeLogger sets the structured logger. Defaults to slog.Default().
func WithBridgeLogger(log *slog.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// New wires a bridge between the engine loop and the given host.
func New(loop *engine.Loop, host Host, opts ...Option) *Bridge {
	b := &Bridge{
		loop:  loop,
		host:  host,
		log:   slog.Default(),
		verbs: make(map[string]struct{}),
		subs:  make(map[string][]engine.Handle),
	}
	for _, verb := range host.Verbs() {
		b.verbs[verb] = struct{}{}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the host with the bridge's result sink.
func (b *Bridge) Start() error {
	return b.host.Start(b.complete)
}

// Close shuts the host down. Outstanding commands will never complete;
// their handles die with the registry flush at loop teardown.
func (b *Bridge) Close() error {
	return b.host.Close()
}

// Verbs returns the sorted-at-source verb list the host advertised.
func (b *Bridge) Verbs() []string {
	return b.host.Verbs()
}

// Knows reports whether the host handles the given verb.
func (b *Bridge) Knows(verb string) bool {
	_, ok := b.verbs[verb]
	return ok
}

// Outstanding returns the number of commands sent but not yet completed.
func (b *Bridge) Outstanding() int {
	return b.loop.Registry().CountKind(engine.KindBridgeResult)
}

// Send validates the verb, registers a result callback, and enqueues the
// command to the host. It returns immediately; fire runs later on the
// engine loop with the host's result. Callable from any goroutine.
func (b *Bridge) Send(verb string, args map[string]any, fire engine.Callback) (engine.Handle, error) {
	if fire == nil {
		return 0, &engine.RegistrationError{Message: "bridge: result callback must not be nil"}
	}
	if !b.Knows(verb) {
		return 0, &engine.RegistrationError{
			Cause:   ErrUnknownVerb,
			Message: "bridge: unknown verb " + verb,
		}
	}

	h := b.loop.Registry().Register(engine.KindBridgeResult, fire)
	cmd := Command{
		ID:      uuid.NewString(),
		Verb:    verb,
		Args:    args,
		ReplyTo: h,
	}

	if b.timeout > 0 {
		tm := time.AfterFunc(b.timeout, func() {
			// If the real result landed first the handle is gone and this
			// envelope is dropped at dispatch.
			b.complete(Result{
				ID:      cmd.ID,
				ReplyTo: h,
				Err: &engine.TimeoutError{
					Message: "bridge: no reply for " + verb + " command " + cmd.ID,
				},
			})
		})
		b.loop.Registry().SetCancel(h, func() { tm.Stop() })
	}

	b.host.Deliver(cmd)
	return h, nil
}

// Call sends a command and blocks until its result arrives. It refuses to
// run on the engine-loop goroutine, where blocking on a loop-dispatched
// result would deadlock.
func (b *Bridge) Call(verb string, args map[string]any) (any, error) {
	if b.loop.OnLoop() {
		return nil, engine.ErrOnLoop
	}

	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	_, err := b.Send(verb, args, func(payload any, err error) error {
		ch <- outcome{value: payload, err: err}
		return nil
	})
	if err != nil {
		return nil, err
	}

	select {
	case o := <-ch:
		return o.value, o.err
	case <-b.loop.Done():
		return nil, engine.ErrLoopClosed
	}
}

// Cancel abandons an in-flight command. The foreign work is not interrupted;
// its eventual result is dropped at dispatch. Idempotent.
func (b *Bridge) Cancel(h engine.Handle) bool {
	return b.loop.Registry().Cancel(h)
}

// Subscribe registers a persistent callback for host-initiated events
// (e.g. a window closed by the user). The handle stays live until
// Unsubscribe; persistent entries do not keep the engine alive on their own.
func (b *Bridge) Subscribe(event string, fire engine.Callback) (engine.Handle, error) {
	if fire == nil {
		return 0, &engine.RegistrationError{Message: "bridge: event callback must not be nil"}
	}

	var h engine.Handle
	h = b.loop.Registry().Register(engine.KindBridgeResult, fire,
		engine.WithPersistent(),
		engine.WithCancel(func() { b.dropSubscription(event, h) }),
	)

	b.subMu.Lock()
	b.subs[event] = append(b.subs[event], h)
	b.subMu.Unlock()
	return h, nil
}

// Unsubscribe removes an event subscription. Idempotent.
func (b *Bridge) Unsubscribe(h engine.Handle) bool {
	return b.loop.Registry().Cancel(h)
}

// Publish fans an event out to every subscriber. Callable from the host
// goroutine; each subscriber's callback runs on the engine loop.
func (b *Bridge) Publish(event string, payload any) {
	b.subMu.Lock()
	handles := make([]engine.Handle, len(b.subs[event]))
	copy(handles, b.subs[event])
	b.subMu.Unlock()

	for _, h := range handles {
		b.loop.Mailbox().Post(engine.Envelope{
			Target:   h,
			Payload:  payload,
			Producer: bridgeProducer,
		})
	}
}

func (b *Bridge) dropSubscription(event string, h engine.Handle) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	handles := b.subs[event]
	for i, cur := range handles {
		if cur == h {
			b.subs[event] = append(handles[:i], handles[i+1:]...)
			break
		}
	}
	if len(b.subs[event]) == 0 {
		delete(b.subs, event)
	}
}

// complete posts one result envelope. This is the host's ResultFunc.
func (b *Bridge) complete(res Result) {
	b.loop.Mailbox().Post(engine.Envelope{
		Target:   res.ReplyTo,
		Payload:  res.Value,
		Err:      res.Err,
		Producer: bridgeProducer,
	})
}
