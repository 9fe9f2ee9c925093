package uihost

import (
	"fmt"
	"sort"
)

// EventFunc receives host-initiated events (windowClosed and friends) for
// fan-out to script subscribers. Wired after construction because the bridge
// that fans events out is itself constructed over the host.
type EventFunc func(event string, payload any)

// EventWindowClosed fires whenever a window leaves the set, whether by verb
// or by user action in the terminal UI.
const EventWindowClosed = "windowClosed"

// verbFunc applies one command to the window state. Runs on the host's own
// goroutine; the returned value travels back across the bridge unchanged.
type verbFunc func(h *hostCore, args map[string]any) (any, error)

// hostCore is the state both host variants share: the window set, the verb
// table, and the event sink. Confined to the owning host's goroutine.
type hostCore struct {
	windows   *windowSet
	verbs     map[string]verbFunc
	emitEvent EventFunc
	terminal  bool
}

func newHostCore(terminal bool) *hostCore {
	h := &hostCore{
		windows:  newWindowSet(),
		terminal: terminal,
	}
	h.verbs = map[string]verbFunc{
		"guiAvailable":  verbGUIAvailable,
		"createWindow":  verbCreateWindow,
		"setWindowText": verbSetWindowText,
		"showWindow":    verbShowWindow,
		"hideWindow":    verbHideWindow,
		"closeWindow":   verbCloseWindow,
		"listWindows":   verbListWindows,
		"updateWindow":  verbUpdateWindow,
	}
	return h
}

func (h *hostCore) verbNames() []string {
	names := make([]string, 0, len(h.verbs))
	for name := range h.verbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// apply executes one verb. Unknown verbs are rejected at the bridge before
// delivery, so a miss here indicates a wiring bug and is still surfaced as
// an error rather than a panic.
func (h *hostCore) apply(verb string, args map[string]any) (any, error) {
	fn, ok := h.verbs[verb]
	if !ok {
		return nil, fmt.Errorf("uihost: no handler for verb %q", verb)
	}
	return fn(h, args)
}

func (h *hostCore) emit(event string, payload any) {
	if h.emitEvent != nil {
		h.emitEvent(event, payload)
	}
}

func verbGUIAvailable(h *hostCore, _ map[string]any) (any, error) {
	return map[string]any{"available": h.terminal}, nil
}

func verbCreateWindow(h *hostCore, args map[string]any) (any, error) {
	title, _ := args["title"].(string)
	if title == "" {
		title = "untitled"
	}
	text, _ := args["text"].(string)
	visible := true
	if v, ok := args["visible"].(bool); ok {
		visible = v
	}
	w := h.windows.create(title, text, visible)
	return map[string]any{"id": w.ID}, nil
}

func verbSetWindowText(h *hostCore, args map[string]any) (any, error) {
	w, err := h.windowArg(args)
	if err != nil {
		return nil, err
	}
	text, ok := args["text"].(string)
	if !ok {
		return nil, fmt.Errorf("setWindowText: missing text")
	}
	w.Text = text
	return true, nil
}

func verbShowWindow(h *hostCore, args map[string]any) (any, error) {
	w, err := h.windowArg(args)
	if err != nil {
		return nil, err
	}
	w.Visible = true
	return true, nil
}

func verbHideWindow(h *hostCore, args map[string]any) (any, error) {
	w, err := h.windowArg(args)
	if err != nil {
		return nil, err
	}
	w.Visible = false
	return true, nil
}

func verbCloseWindow(h *hostCore, args map[string]any) (any, error) {
	w, err := h.windowArg(args)
	if err != nil {
		return nil, err
	}
	if err := h.windows.close(w.ID); err != nil {
		return nil, err
	}
	h.emit(EventWindowClosed, map[string]any{"id": w.ID})
	return true, nil
}

func verbListWindows(h *hostCore, _ map[string]any) (any, error) {
	windows := h.windows.list()
	out := make([]any, 0, len(windows))
	for _, w := range windows {
		out = append(out, map[string]any{
			"id":      w.ID,
			"title":   w.Title,
			"visible": w.Visible,
		})
	}
	return out, nil
}

func verbUpdateWindow(h *hostCore, args map[string]any) (any, error) {
	w, err := h.windowArg(args)
	if err != nil {
		return nil, err
	}
	if title, ok := args["title"].(string); ok {
		w.Title = title
	}
	if text, ok := args["text"].(string); ok {
		w.Text = text
	}
	if visible, ok := args["visible"].(bool); ok {
		w.Visible = visible
	}
	return true, nil
}

func (h *hostCore) windowArg(args map[string]any) (*Window, error) {
	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("missing window id")
	}
	return h.windows.get(id)
}
