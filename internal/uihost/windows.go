// Package uihost implements the foreign-thread consumer of bridge commands:
// a window manager that runs either as a terminal UI program (bubbletea) or
// headless for tests and --no-gui mode. Both variants share one verb table
// and one window set; only the thread they run on and the rendering differ.
package uihost

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Window is one managed surface. Mutated only by the host's own goroutine.
type Window struct {
	ID      string
	Title   string
	Text    string
	Visible bool
	Created time.Time
}

// windowSet holds windows by ID with stable creation order for listing and
// rendering. Not safe for concurrent use; each host confines it to a single
// goroutine.
type windowSet struct {
	byID  map[string]*Window
	order []string
}

func newWindowSet() *windowSet {
	return &windowSet{byID: make(map[string]*Window)}
}

func (ws *windowSet) create(title, text string, visible bool) *Window {
	w := &Window{
		ID:      uuid.NewString(),
		Title:   title,
		Text:    text,
		Visible: visible,
		Created: time.Now(),
	}
	ws.byID[w.ID] = w
	ws.order = append(ws.order, w.ID)
	return w
}

func (ws *windowSet) get(id string) (*Window, error) {
	w, ok := ws.byID[id]
	if !ok {
		return nil, fmt.Errorf("no window with id %q", id)
	}
	return w, nil
}

func (ws *windowSet) close(id string) error {
	if _, ok := ws.byID[id]; !ok {
		return fmt.Errorf("no window with id %q", id)
	}
	delete(ws.byID, id)
	for i, cur := range ws.order {
		if cur == id {
			ws.order = append(ws.order[:i], ws.order[i+1:]...)
			break
		}
	}
	return nil
}

func (ws *windowSet) list() []*Window {
	out := make([]*Window, 0, len(ws.order))
	for _, id := range ws.order {
		out = append(out, ws.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

func (ws *windowSet) len() int {
	return len(ws.byID)
}
