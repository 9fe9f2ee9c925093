// Package worker runs named blocking operations on their own goroutines and
// delivers each outcome back to the engine loop as a thread result.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/joeycumines/script-host/internal/engine"
)

// ErrUnknownOp is returned synchronously when a run names an operation the
// pool does not know.
var ErrUnknownOp = errors.New("worker: unknown operation")

// workerProducer tags envelopes posted by worker goroutines.
const workerProducer = "worker"

// Op is one blocking operation. It runs on a worker goroutine, never on the
// engine loop, and must respect ctx for cancellation at close.
type Op func(ctx context.Context, args map[string]any) (any, error)

// Pool owns the op table and the worker goroutines. The table is fixed by
// registration before scripts run; dispatch is by typed lookup, and an
// unknown name fails at the call site rather than at delivery time.
type Pool struct {
	loop   *engine.Loop
	log    *slog.Logger
	ops    map[string]Op
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the structured logger. Defaults to slog.Default().
func WithPoolLogger(log *slog.Logger) PoolOption {
	return func(p *Pool) {
		if log != nil {
			p.log = log
		}
	}
}

// NewPool creates a pool with the built-in operations registered.
func NewPool(loop *engine.Loop, opts ...PoolOption) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		loop:   loop,
		log:    slog.Default(),
		ops:    make(map[string]Op),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	registerBuiltinOps(p)
	return p
}

// RegisterOp installs a named operation. Registering a duplicate name is an
// error so a later registration cannot silently shadow a built-in.
func (p *Pool) RegisterOp(name string, op Op) error {
	if name == "" || op == nil {
		return &engine.RegistrationError{Message: "worker: op name and function must be set"}
	}
	if _, ok := p.ops[name]; ok {
		return &engine.RegistrationError{Message: fmt.Sprintf("worker: op %q already registered", name)}
	}
	p.ops[name] = op
	return nil
}

// Ops returns the sorted operation names.
func (p *Pool) Ops() []string {
	names := make([]string, 0, len(p.ops))
	for name := range p.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run starts the named operation on a fresh goroutine and registers fire to
// receive its outcome on the engine loop. The handle can be cancelled; the
// goroutine still runs to completion but its result is dropped at dispatch.
func (p *Pool) Run(name string, args map[string]any, fire engine.Callback) (engine.Handle, error) {
	if fire == nil {
		return 0, &engine.RegistrationError{Message: "worker: result callback must not be nil"}
	}
	op, ok := p.ops[name]
	if !ok {
		return 0, &engine.RegistrationError{
			Cause:   ErrUnknownOp,
			Message: fmt.Sprintf("worker: unknown operation %q", name),
		}
	}

	h := p.loop.Registry().Register(engine.KindThreadResult, fire)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		value, err := p.invoke(op, args)
		p.loop.Mailbox().Post(engine.Envelope{
			Target:   h,
			Payload:  value,
			Err:      err,
			Producer: workerProducer,
		})
	}()
	return h, nil
}

// Close cancels the shared context and waits for in-flight operations.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) invoke(op Op, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker op panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			err = &engine.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return op(p.ctx, args)
}
