package uihost

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joeycumines/script-host/internal/bridge"
)

var errHostClosed = errors.New("uihost: host closed")

// Terminal runs the window manager as a bubbletea program on its own
// goroutine. Commands arrive as program messages, so all window mutation
// happens inside the program's update loop; results are posted back to the
// engine from there.
type Terminal struct {
	core    *hostCore
	program *tea.Program
	done    chan struct{}
	post    bridge.ResultFunc

	startOnce sync.Once
	closeOnce sync.Once
}

// NewTerminal creates a terminal host. guiAvailable reports true.
func NewTerminal() *Terminal {
	return &Terminal{
		core: newHostCore(true),
		done: make(chan struct{}),
	}
}

// SetEvents wires the event sink. Must be called before Start.
func (t *Terminal) SetEvents(fn EventFunc) {
	t.core.emitEvent = fn
}

// Verbs returns the handled verb names.
func (t *Terminal) Verbs() []string {
	return t.core.verbNames()
}

// Start launches the program loop on its own goroutine.
func (t *Terminal) Start(post bridge.ResultFunc) error {
	t.startOnce.Do(func() {
		t.post = post
		t.program = tea.NewProgram(newTerminalModel(t), tea.WithAltScreen())
		go func() {
			defer close(t.done)
			if _, err := t.program.Run(); err != nil {
				// The engine keeps running; scripts just lose the UI.
				fmt.Println("ui host error:", err)
			}
		}()
	})
	return nil
}

// Deliver hands one command to the program loop. If the program has already
// exited (user quit), the command completes with an error result.
func (t *Terminal) Deliver(cmd bridge.Command) {
	select {
	case <-t.done:
		t.post(bridge.Result{
			ID:      cmd.ID,
			ReplyTo: cmd.ReplyTo,
			Err:     errHostClosed,
		})
	default:
		t.program.Send(commandMsg{cmd: cmd})
	}
}

// Close quits the program and waits for it to release the terminal.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		if t.program != nil {
			t.program.Quit()
			<-t.done
		}
	})
	return nil
}

// commandMsg carries one bridge command into the update loop.
type commandMsg struct {
	cmd bridge.Command
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	windowStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Faint(true)
)

type terminalModel struct {
	host   *Terminal
	width  int
	height int
}

func newTerminalModel(host *Terminal) terminalModel {
	return terminalModel{host: host}
}

func (m terminalModel) Init() tea.Cmd {
	return nil
}

func (m terminalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case commandMsg:
		value, err := m.host.core.apply(msg.cmd.Verb, msg.cmd.Args)
		m.host.post(bridge.Result{
			ID:      msg.cmd.ID,
			ReplyTo: msg.cmd.ReplyTo,
			Value:   value,
			Err:     err,
		})
	}
	return m, nil
}

func (m terminalModel) View() string {
	var b strings.Builder

	visible := 0
	for _, w := range m.host.core.windows.list() {
		if !w.Visible {
			continue
		}
		visible++
		content := titleStyle.Render(w.Title)
		if w.Text != "" {
			content += "\n" + w.Text
		}
		b.WriteString(windowStyle.Render(content))
		b.WriteString("\n")
	}

	if visible == 0 {
		b.WriteString(statusStyle.Render("no visible windows"))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(fmt.Sprintf("%d window(s) | q to quit", m.host.core.windows.len())))
	return b.String()
}
