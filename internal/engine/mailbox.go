package engine

import "sync"

// Envelope is a result package routed from a producer goroutine to the
// single consumer engine loop. Immutable once posted; ownership transfers
// from the producer to the mailbox to the loop, and exactly one consumer
// ever reads a given envelope.
type Envelope struct {
	Payload  any
	Err      error
	Producer string
	Target   Handle
}

// Mailbox is the thread-safe queue that foreign goroutines (UI program,
// workers, native timers) use to hand results back to the engine loop.
//
// Posts are FIFO per producer; no relative order is guaranteed between
// independent producers. The queue is unbounded: a producer that posts
// faster than the loop drains grows memory (documented risk, not mitigated
// here).
type Mailbox struct {
	wake  chan struct{}
	queue []Envelope
	mu    sync.Mutex
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{wake: make(chan struct{}, 1)}
}

// Post enqueues an envelope. Callable from any goroutine; never blocks the
// producer beyond the short internal lock.
func (m *Mailbox) Post(env Envelope) {
	m.mu.Lock()
	m.queue = append(m.queue, env)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// DrainAll removes and returns all currently queued envelopes in FIFO
// order. Called once per tick from the engine-loop goroutine only.
func (m *Mailbox) DrainAll() []Envelope {
	m.mu.Lock()
	out := m.queue
	m.queue = nil
	m.mu.Unlock()
	return out
}

// Len returns the number of queued envelopes.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Wake returns a channel that receives a value after a post. Used by the
// loop to sleep until work arrives; the signal is coalesced, so one receive
// may cover any number of posts.
func (m *Mailbox) Wake() <-chan struct{} {
	return m.wake
}
