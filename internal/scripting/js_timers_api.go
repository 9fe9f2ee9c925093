package scripting

// JavaScript API functions for timers

import (
	"github.com/dop251/goja"

	"github.com/joeycumines/script-host/internal/engine"
)

// jsSetTimeout schedules fn to run once after ms milliseconds and returns
// the timer handle. A negative delay throws.
func (e *Engine) jsSetTimeout(fn goja.Callable, ms int) int64 {
	h, err := e.loop.Timers().After(ms, e.jsCallback(fn))
	if err != nil {
		e.throw(err)
	}
	return int64(h)
}

// jsSetInterval schedules fn to run every ms milliseconds and returns the
// interval handle.
func (e *Engine) jsSetInterval(fn goja.Callable, ms int) int64 {
	h, err := e.loop.Timers().Every(ms, e.jsCallback(fn))
	if err != nil {
		e.throw(err)
	}
	return int64(h)
}

// jsClearTimer cancels a timer or interval. Returns false if the handle was
// already gone; clearing twice is not an error.
func (e *Engine) jsClearTimer(handle int64) bool {
	return e.loop.Timers().Cancel(engine.Handle(handle))
}

// jsPendingCount returns the number of pending one-shot callbacks.
func (e *Engine) jsPendingCount() int {
	return e.loop.Registry().PendingCount()
}

// jsActiveIntervals returns the number of active intervals.
func (e *Engine) jsActiveIntervals() int {
	return e.loop.Timers().ActiveIntervals()
}
