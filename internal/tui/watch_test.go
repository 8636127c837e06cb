package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/cadencehost/internal/editor"
	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/event"
	"github.com/Iron-Ham/cadencehost/internal/lifecycle"
	"github.com/Iron-Ham/cadencehost/internal/network"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
)

type fakeController struct {
	mu         sync.Mutex
	snapshot   lifecycle.Snapshot
	restarts   int
	switchedTo []network.Network
	err        error
}

func (f *fakeController) Snapshot() lifecycle.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeController) Restart(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	return f.err
}

func (f *fakeController) SwitchNetwork(ctx context.Context, n network.Network) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchedTo = append(f.switchedTo, n)
	if f.err == nil {
		f.snapshot.Network = n
	}
	return f.err
}

func newFixture() (*fakeController, *editor.Headless) {
	ctrl := &fakeController{snapshot: lifecycle.Snapshot{
		State:      lifecycle.StateClientReady,
		Generation: 2,
		Network:    network.Testnet,
		ProcessID:  "proc-1",
		AdapterID:  "adapter-1",
	}}
	ed := editor.NewHeadless(4)
	return ctrl, ed
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func TestModel_ViewShowsSnapshot(t *testing.T) {
	ctrl, ed := newFixture()
	ed.SetReady(true)
	ctx := context.Background()
	if err := ed.SetText(ctx, "file:///b.cdc", "access(all) contract B {}"); err != nil {
		t.Fatalf("SetText failed: %v", err)
	}
	if err := ed.SetText(ctx, "file:///a.cdc", "access(all) contract A {}"); err != nil {
		t.Fatalf("SetText failed: %v", err)
	}
	ed.PublishDiagnostics("file:///b.cdc", []protocol.Diagnostic{
		{Message: "unused", Severity: protocol.SeverityWarning},
		{Message: "bad", Severity: protocol.SeverityError},
	})

	view := New(ctrl, ed).View()
	for _, want := range []string{"Ready", "testnet", "proc-1", "adapter-1", "file:///a.cdc", "ok", "2 problems"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, editor.WaitingMessage) {
		t.Error("View should not show the waiting message once the editor is ready")
	}
	if strings.Index(view, "file:///a.cdc") > strings.Index(view, "file:///b.cdc") {
		t.Error("Documents should be listed in order")
	}
}

func TestModel_WaitingMessage(t *testing.T) {
	ctrl, ed := newFixture()
	ctrl.snapshot.State = lifecycle.StateServiceStarting

	view := New(ctrl, ed).View()
	if !strings.Contains(view, editor.WaitingMessage) {
		t.Errorf("Expected waiting message while not ready:\n%s", view)
	}
	if !strings.Contains(view, "No open documents") {
		t.Error("Expected empty document placeholder")
	}
}

func TestModel_FailedShowsError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantRetry bool
	}{
		{"plain", errors.New("language server exited"), false},
		{"retryable", errors.NewLifecycleError("language server exited", nil).WithRetryable(true), true},
		{"not retryable", errors.NewServiceError("language server exited", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, ed := newFixture()
			ctrl.snapshot.State = lifecycle.StateFailed
			ctrl.snapshot.Err = tt.err

			view := New(ctrl, ed).View()
			if !strings.Contains(view, "language server exited") {
				t.Errorf("Expected failure cause in view:\n%s", view)
			}
			if got := strings.Contains(view, "Press r to restart"); got != tt.wantRetry {
				t.Errorf("restart hint shown = %v, want %v", got, tt.wantRetry)
			}
		})
	}
}

func TestModel_Restart(t *testing.T) {
	ctrl, ed := newFixture()
	m := New(ctrl, ed)

	m, cmd := update(t, m, keyPress("r"))
	if cmd == nil {
		t.Fatal("Expected a command for restart")
	}
	if m.busy == "" {
		t.Error("Model should be busy while restarting")
	}

	// A second action is ignored until the first completes.
	if _, again := update(t, m, keyPress("n")); again != nil {
		t.Error("Expected no command while an action is in flight")
	}

	done := cmd()
	if ctrl.restarts != 1 {
		t.Errorf("restarts = %d, want 1", ctrl.restarts)
	}
	m, _ = update(t, m, done)
	if m.busy != "" {
		t.Error("Model should not be busy after the action completes")
	}
	if !strings.Contains(m.View(), "restart requested") {
		t.Error("Expected confirmation in view")
	}
}

func TestModel_SwitchNetwork(t *testing.T) {
	ctrl, ed := newFixture()
	m := New(ctrl, ed)

	m, cmd := update(t, m, keyPress("n"))
	if cmd == nil {
		t.Fatal("Expected a command for network switch")
	}
	m, _ = update(t, m, cmd())

	want := network.Testnet.Next()
	if len(ctrl.switchedTo) != 1 || ctrl.switchedTo[0] != want {
		t.Errorf("switchedTo = %v, want [%s]", ctrl.switchedTo, want)
	}
	if m.snapshot.Network != want {
		t.Errorf("snapshot network = %s, want %s", m.snapshot.Network, want)
	}
}

func TestModel_ActionError(t *testing.T) {
	ctrl, ed := newFixture()
	ctrl.err = errors.New("rate limited")
	m := New(ctrl, ed)

	m, cmd := update(t, m, keyPress("r"))
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.View(), "rate limited") {
		t.Errorf("Expected action error in view:\n%s", m.View())
	}
}

func TestModel_Quit(t *testing.T) {
	ctrl, ed := newFixture()
	m, cmd := update(t, New(ctrl, ed), tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("View should be empty after quitting")
	}
}

func TestModel_EventsAreCapped(t *testing.T) {
	ctrl, ed := newFixture()
	m := New(ctrl, ed)

	for i := 0; i < maxEvents+3; i++ {
		m, _ = update(t, m, EventMsg{Event: event.NewDiagnosticsEvent("file:///a.cdc", i)})
	}
	if len(m.events) != maxEvents {
		t.Errorf("events = %d, want %d", len(m.events), maxEvents)
	}
	if !strings.Contains(m.events[len(m.events)-1], "10 diagnostics") {
		t.Errorf("Expected newest event last, got %q", m.events[len(m.events)-1])
	}
}

func TestModel_FitsWidth(t *testing.T) {
	ctrl, ed := newFixture()
	m := New(ctrl, ed)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 40, Height: 20})

	long := "file:///" + strings.Repeat("nested/", 20) + "main.cdc"
	m, _ = update(t, m, EventMsg{Event: event.NewDiagnosticsEvent(long, 3)})
	if len(m.events) != 1 {
		t.Fatalf("events = %d, want 1", len(m.events))
	}

	view := m.View()
	if strings.Contains(view, long) {
		t.Error("long event line should be truncated to the terminal width")
	}
	if !strings.Contains(view, "...") {
		t.Errorf("expected truncation marker:\n%s", view)
	}
}

func TestModel_EventRefreshesSnapshot(t *testing.T) {
	ctrl, ed := newFixture()
	m := New(ctrl, ed)

	ctrl.mu.Lock()
	ctrl.snapshot.Generation = 3
	ctrl.snapshot.State = lifecycle.StateRestarting
	ctrl.mu.Unlock()

	m, _ = update(t, m, EventMsg{Event: event.NewRestartedEvent(2, 3)})
	if m.snapshot.Generation != 3 || m.snapshot.State != lifecycle.StateRestarting {
		t.Errorf("snapshot not refreshed: %+v", m.snapshot)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		event event.Event
		want  string
	}{
		{"state", event.NewStateChangedEvent(1, "idle", "service_starting"), "gen 1: idle → service_starting"},
		{"service ready", event.NewServiceReadyEvent(1, "p1", 1), "service p1 ready after 1 check"},
		{"client ready", event.NewClientReadyEvent(1, "a1"), "client a1 ready"},
		{"failed", event.NewFailedEvent(2, "client", errors.New("handshake")), "gen 2: client failed: handshake"},
		{"exited", event.NewServiceExitedEvent(2, "p2"), "service p2 exited"},
		{"restarted", event.NewRestartedEvent(1, 2), "restarted: gen 1 → 2"},
		{"network", event.NewNetworkChangedEvent("testnet", "mainnet"), "network testnet → mainnet"},
		{"registry", event.NewRegistryReloadedEvent(3, nil), "registry reloaded: 3 contracts"},
		{"registry error", event.NewRegistryReloadedEvent(0, errors.New("bad json")), "registry reload failed: bad json"},
		{"diagnostics", event.NewDiagnosticsEvent("file:///a.cdc", 1), "file:///a.cdc: 1 diagnostic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.event)
			if !strings.Contains(got, tt.want) {
				t.Errorf("Describe() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}
