package scripting

// JavaScript API functions for the UI bridge

import (
	"github.com/dop251/goja"

	"github.com/joeycumines/script-host/internal/engine"
)

// jsGUIAvailable reports whether a real terminal UI backs the bridge.
func (e *Engine) jsGUIAvailable() bool {
	return e.guiOn
}

// jsGUISend dispatches a raw verb across the bridge and returns the command
// handle. Unknown verbs throw at the call site; the callback receives
// (result, err) when the host replies.
func (e *Engine) jsGUISend(verb string, args map[string]interface{}, fn goja.Callable) int64 {
	h, err := e.bridge.Send(verb, args, e.jsCallback(fn))
	if err != nil {
		e.throw(err)
	}
	return int64(h)
}

func (e *Engine) jsGUICreateWindow(opts map[string]interface{}, fn goja.Callable) int64 {
	return e.jsGUISend("createWindow", opts, fn)
}

func (e *Engine) jsGUISetWindowText(id, text string, fn goja.Callable) int64 {
	return e.jsGUISend("setWindowText", map[string]interface{}{"id": id, "text": text}, fn)
}

func (e *Engine) jsGUIShowWindow(id string, fn goja.Callable) int64 {
	return e.jsGUISend("showWindow", map[string]interface{}{"id": id}, fn)
}

func (e *Engine) jsGUIHideWindow(id string, fn goja.Callable) int64 {
	return e.jsGUISend("hideWindow", map[string]interface{}{"id": id}, fn)
}

func (e *Engine) jsGUICloseWindow(id string, fn goja.Callable) int64 {
	return e.jsGUISend("closeWindow", map[string]interface{}{"id": id}, fn)
}

func (e *Engine) jsGUIListWindows(fn goja.Callable) int64 {
	return e.jsGUISend("listWindows", nil, fn)
}

func (e *Engine) jsGUIUpdateWindow(id string, opts map[string]interface{}, fn goja.Callable) int64 {
	if opts == nil {
		opts = make(map[string]interface{})
	}
	opts["id"] = id
	return e.jsGUISend("updateWindow", opts, fn)
}

// jsGUIOn subscribes to a host-initiated event (e.g. "windowClosed") and
// returns the subscription handle. The callback may fire many times.
func (e *Engine) jsGUIOn(event string, fn goja.Callable) int64 {
	h, err := e.bridge.Subscribe(event, e.jsCallback(fn))
	if err != nil {
		e.throw(err)
	}
	return int64(h)
}

// jsGUIOff removes an event subscription.
func (e *Engine) jsGUIOff(handle int64) bool {
	return e.bridge.Unsubscribe(engine.Handle(handle))
}
