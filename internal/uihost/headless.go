package uihost

import (
	"sync"

	"github.com/joeycumines/script-host/internal/bridge"
)

// Headless is the no-terminal host: the same verb table applied on a plain
// goroutine. Used by --no-gui mode and by tests that exercise the bridge
// contract without a TTY.
type Headless struct {
	core *hostCore
	cmds chan bridge.Command
	quit chan struct{}
	done chan struct{}
	post bridge.ResultFunc

	startOnce sync.Once
	closeOnce sync.Once
}

// NewHeadless creates a headless host. guiAvailable reports false.
func NewHeadless() *Headless {
	return &Headless{
		core: newHostCore(false),
		cmds: make(chan bridge.Command, 64),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// SetEvents wires the event sink. Must be called before Start.
func (h *Headless) SetEvents(fn EventFunc) {
	h.core.emitEvent = fn
}

// Verbs returns the handled verb names.
func (h *Headless) Verbs() []string {
	return h.core.verbNames()
}

// Start launches the consumer goroutine.
func (h *Headless) Start(post bridge.ResultFunc) error {
	h.startOnce.Do(func() {
		h.post = post
		go h.run()
	})
	return nil
}

// Deliver enqueues one command. Blocks only while the queue is full.
func (h *Headless) Deliver(cmd bridge.Command) {
	// Checked first; the select below picks randomly when both cases are
	// ready, which would strand post-close commands in the buffer.
	select {
	case <-h.quit:
		h.reject(cmd)
		return
	default:
	}
	select {
	case h.cmds <- cmd:
	case <-h.quit:
		h.reject(cmd)
	}
}

func (h *Headless) reject(cmd bridge.Command) {
	h.post(bridge.Result{
		ID:      cmd.ID,
		ReplyTo: cmd.ReplyTo,
		Err:     errHostClosed,
	})
}

// Close stops the consumer. Commands delivered afterwards complete with an
// error result instead of hanging their callbacks forever.
func (h *Headless) Close() error {
	h.closeOnce.Do(func() {
		close(h.quit)
		<-h.done
	})
	return nil
}

func (h *Headless) run() {
	defer close(h.done)
	for {
		select {
		case cmd := <-h.cmds:
			value, err := h.core.apply(cmd.Verb, cmd.Args)
			h.post(bridge.Result{
				ID:      cmd.ID,
				ReplyTo: cmd.ReplyTo,
				Value:   value,
				Err:     err,
			})
		case <-h.quit:
			// Fail whatever raced into the buffer so no callback hangs.
			for {
				select {
				case cmd := <-h.cmds:
					h.reject(cmd)
				default:
					return
				}
			}
		}
	}
}
