// Package tui provides the interactive terminal view of a running
// language host.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Iron-Ham/cadencehost/internal/editor"
	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/event"
	"github.com/Iron-Ham/cadencehost/internal/lifecycle"
	"github.com/Iron-Ham/cadencehost/internal/network"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
	"github.com/Iron-Ham/cadencehost/internal/tui/styles"
)

// maxEvents is the number of recent events kept on screen.
const maxEvents = 8

// refreshInterval is how often the snapshot is re-read between events.
const refreshInterval = 500 * time.Millisecond

// actionTimeout bounds a restart or network switch issued from the view.
const actionTimeout = 5 * time.Second

// Controller is the part of the lifecycle manager the view drives.
type Controller interface {
	Snapshot() lifecycle.Snapshot
	Restart(ctx context.Context) error
	SwitchNetwork(ctx context.Context, n network.Network) error
}

// Documents is the part of the editor the view reads.
type Documents interface {
	editor.Editor
	Documents() []string
	Diagnostics(uri string) ([]protocol.Diagnostic, bool)
}

// EventMsg carries a bus event into the program.
type EventMsg struct {
	Event event.Event
}

type tickMsg time.Time

type actionDoneMsg struct {
	action string
	err    error
}

type keyMap struct {
	Restart key.Binding
	Network key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	Network: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next network")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the Bubbletea model for the watch view
type Model struct {
	ctrl     Controller
	docs     Documents
	spinner  spinner.Model
	snapshot lifecycle.Snapshot
	events   []string
	busy     string
	errorMsg string
	infoMsg  string
	width    int
	quitting bool
}

// New creates a watch model over ctrl and docs.
func New(ctrl Controller, docs Documents) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Warning
	return Model{
		ctrl:     ctrl,
		docs:     docs,
		spinner:  s,
		snapshot: ctrl.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		m.errorMsg = ""
		m.infoMsg = ""
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case m.busy != "":
			// One action at a time.
			return m, nil
		case key.Matches(msg, keys.Restart):
			m.busy = "restart"
			return m, m.restart()
		case key.Matches(msg, keys.Network):
			next := m.snapshot.Network.Next()
			m.busy = "switch to " + next.String()
			return m, m.switchNetwork(next)
		}
		return m, nil

	case actionDoneMsg:
		m.busy = ""
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("%s: %v", msg.action, msg.err)
		} else {
			m.infoMsg = msg.action + " requested"
		}
		m.snapshot = m.ctrl.Snapshot()
		return m, nil

	case EventMsg:
		m.pushEvent(Describe(msg.Event))
		m.snapshot = m.ctrl.Snapshot()
		return m, nil

	case tickMsg:
		m.snapshot = m.ctrl.Snapshot()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) restart() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: "restart", err: ctrl.Restart(ctx)}
	}
}

func (m Model) switchNetwork(n network.Network) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: "switch to " + n.String(), err: ctrl.SwitchNetwork(ctx, n)}
	}
}

func (m *Model) pushEvent(line string) {
	if line == "" {
		return
	}
	m.events = append(m.events, line)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.Header.Render("cadencehost"))
	b.WriteString("\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderDocuments())
	b.WriteString("\n")
	b.WriteString(m.renderEvents())

	if m.errorMsg != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorMsg.Render("Error: " + m.errorMsg))
	}
	if m.infoMsg != "" {
		b.WriteString("\n")
		b.WriteString(styles.SuccessMsg.Render(m.infoMsg))
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderStatus() string {
	s := m.snapshot
	state := string(s.State)
	stateStyle := lipgloss.NewStyle().Foreground(styles.StateColor(state)).Bold(true)

	lines := []string{
		styles.Label.Render("State") + stateStyle.Render(styles.StateIcon(state)+" "+s.State.Label()),
		styles.Label.Render("Generation") + styles.Text.Render(fmt.Sprintf("%d", s.Generation)),
		styles.Label.Render("Network") + styles.Primary.Render(s.Network.String()),
	}
	if s.ProcessID != "" {
		lines = append(lines, styles.Label.Render("Process")+styles.Muted.Render(s.ProcessID))
	}
	if s.AdapterID != "" {
		lines = append(lines, styles.Label.Render("Client")+styles.Muted.Render(s.AdapterID))
	}

	if status := editor.StatusLine(m.docs); status != "" {
		prefix := m.spinner.View() + " "
		if s.State == lifecycle.StateFailed {
			prefix = ""
		}
		lines = append(lines, "", prefix+styles.Warning.Render(status))
	}
	if s.Err != nil && s.State == lifecycle.StateFailed {
		lines = append(lines, m.fit(styles.ErrorMsg.Render(s.Err.Error()), 0))
		if errors.IsRetryable(s.Err) {
			lines = append(lines, styles.Muted.Render("Press r to restart the language service"))
		}
	}
	if m.busy != "" {
		lines = append(lines, m.spinner.View()+" "+styles.Muted.Render(m.busy+"..."))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDocuments() string {
	uris := m.docs.Documents()
	if len(uris) == 0 {
		return styles.Muted.Render("No open documents")
	}
	sort.Strings(uris)

	var lines []string
	for _, uri := range uris {
		diags, _ := m.docs.Diagnostics(uri)
		summary := styles.SuccessMsg.Render("ok")
		if len(diags) > 0 {
			worst := diags[0].Severity
			for _, d := range diags[1:] {
				if d.Severity != 0 && (worst == 0 || d.Severity < worst) {
					worst = d.Severity
				}
			}
			summary = lipgloss.NewStyle().
				Foreground(styles.SeverityColor(int(worst))).
				Render(fmt.Sprintf("%d %s", len(diags), plural(len(diags), "problem")))
		}
		lines = append(lines, m.fit(fmt.Sprintf("%s  %s", styles.Text.Render(uri), summary), 4))
	}
	return styles.ContentBox.Render(strings.Join(lines, "\n"))
}

func (m Model) renderEvents() string {
	if len(m.events) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(styles.Muted.Bold(true).Render("Recent events"))
	for _, line := range m.events {
		b.WriteString("\n  ")
		b.WriteString(m.fit(styles.Muted.Render(line), 2))
	}
	return b.String()
}

// fit truncates s to the terminal width less margin columns.
func (m Model) fit(s string, margin int) string {
	limit := m.width - margin
	if m.width <= 0 || limit <= 3 || lipgloss.Width(s) <= limit {
		return s
	}
	return ansi.Truncate(s, limit, "...")
}

func (m Model) renderHelp() string {
	bindings := []key.Binding{keys.Restart, keys.Network, keys.Quit}
	parts := make([]string, len(bindings))
	for i, kb := range bindings {
		h := kb.Help()
		parts[i] = styles.HelpKey.Render(h.Key) + " " + h.Desc
	}
	return styles.HelpBar.Render(strings.Join(parts, "  "))
}

// Describe renders a bus event as one line, or "" to skip it.
func Describe(e event.Event) string {
	ts := e.Timestamp().Format("15:04:05")
	var text string
	switch ev := e.(type) {
	case event.StateChangedEvent:
		text = fmt.Sprintf("gen %d: %s → %s", ev.Generation, ev.From, ev.To)
	case event.ServiceReadyEvent:
		text = fmt.Sprintf("gen %d: service %s ready after %d %s", ev.Generation, ev.ProcessID, ev.Attempts, plural(ev.Attempts, "check"))
	case event.ClientReadyEvent:
		text = fmt.Sprintf("gen %d: client %s ready", ev.Generation, ev.AdapterID)
	case event.FailedEvent:
		text = fmt.Sprintf("gen %d: %s failed: %v", ev.Generation, ev.Stage, ev.Err)
	case event.ServiceExitedEvent:
		text = fmt.Sprintf("gen %d: service %s exited", ev.Generation, ev.ProcessID)
	case event.RestartedEvent:
		text = fmt.Sprintf("restarted: gen %d → %d", ev.Previous, ev.Generation)
	case event.NetworkChangedEvent:
		text = fmt.Sprintf("network %s → %s", ev.From, ev.To)
	case event.RegistryReloadedEvent:
		if ev.Err != nil {
			text = fmt.Sprintf("registry reload failed: %v", ev.Err)
		} else {
			text = fmt.Sprintf("registry reloaded: %d %s", ev.Contracts, plural(ev.Contracts, "contract"))
		}
	case event.DiagnosticsEvent:
		text = fmt.Sprintf("%s: %d %s", ev.URI, ev.Count, plural(ev.Count, "diagnostic"))
	default:
		return ""
	}
	return ts + " " + text
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// Run starts the watch view and blocks until the user quits or ctx ends.
// Every event published on bus is forwarded to the view.
func Run(ctx context.Context, ctrl Controller, docs Documents, bus *event.Bus) error {
	p := tea.NewProgram(New(ctrl, docs), tea.WithAltScreen(), tea.WithContext(ctx))
	if bus != nil {
		id := bus.SubscribeAll(func(e event.Event) {
			p.Send(EventMsg{Event: e})
		})
		defer bus.Unsubscribe(id)
	}
	_, err := p.Run()
	if err != nil && ctx.Err() != nil && strings.Contains(err.Error(), "context canceled") {
		return nil
	}
	return err
}
