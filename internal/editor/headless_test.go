package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
)

func TestHeadless_ChangeStream(t *testing.T) {
	h := NewHeadless(4)
	ctx := context.Background()

	if err := h.SetText(ctx, "file:///a.cdc", "pub fun main() {}"); err != nil {
		t.Fatalf("SetText failed: %v", err)
	}
	if err := h.CloseDocument(ctx, "file:///a.cdc"); err != nil {
		t.Fatalf("CloseDocument failed: %v", err)
	}

	first := <-h.Changes()
	if first.URI != "file:///a.cdc" || first.Kind != ChangeEdit || first.Text != "pub fun main() {}" {
		t.Errorf("Unexpected first change: %+v", first)
	}
	second := <-h.Changes()
	if second.Kind != ChangeClose {
		t.Errorf("Expected close change, got %+v", second)
	}
	if _, ok := h.Document("file:///a.cdc"); ok {
		t.Error("closed document should be forgotten")
	}
}

func TestHeadless_EmitHonorsContext(t *testing.T) {
	h := NewHeadless(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.SetText(ctx, "file:///a.cdc", "x")
	if !errors.Is(err, errors.ErrCanceled) {
		t.Errorf("Expected ErrCanceled with no reader, got %v", err)
	}
}

func TestHeadless_Shutdown(t *testing.T) {
	h := NewHeadless(0)

	blocked := make(chan error, 1)
	go func() {
		blocked <- h.SetText(context.Background(), "file:///a.cdc", "x")
	}()
	time.Sleep(10 * time.Millisecond)

	h.Shutdown()
	h.Shutdown()

	select {
	case err := <-blocked:
		if err == nil {
			t.Error("Expected pending emit to fail on shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not release a blocked emitter")
	}

	if _, ok := <-h.Changes(); ok {
		t.Error("Changes should be closed after Shutdown")
	}
	if err := h.SetText(context.Background(), "file:///b.cdc", "y"); err == nil {
		t.Error("SetText after Shutdown should fail")
	}
}

func TestHeadless_Diagnostics(t *testing.T) {
	h := NewHeadless(1)
	uri := "file:///a.cdc"

	var mu sync.Mutex
	var notified []string
	h.OnDiagnostics(func(u string) {
		mu.Lock()
		notified = append(notified, u)
		mu.Unlock()
	})

	done := make(chan []protocol.Diagnostic, 1)
	go func() {
		d, err := h.WaitDiagnostics(context.Background(), uri)
		if err != nil {
			t.Errorf("WaitDiagnostics failed: %v", err)
		}
		done <- d
	}()

	time.Sleep(10 * time.Millisecond)
	h.PublishDiagnostics("file:///other.cdc", nil)
	h.PublishDiagnostics(uri, []protocol.Diagnostic{{Message: "cannot find type", Severity: protocol.SeverityError}})

	select {
	case d := <-done:
		if len(d) != 1 || d[0].Message != "cannot find type" {
			t.Errorf("Unexpected diagnostics: %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitDiagnostics did not return after publish")
	}

	mu.Lock()
	if len(notified) != 2 {
		t.Errorf("Expected 2 notifications, got %v", notified)
	}
	mu.Unlock()

	h.ClearDiagnostics(uri)
	if _, ok := h.Diagnostics(uri); ok {
		t.Error("ClearDiagnostics should forget diagnostics")
	}
}

func TestHeadless_WaitDiagnosticsCanceled(t *testing.T) {
	h := NewHeadless(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := h.WaitDiagnostics(ctx, "file:///none.cdc"); !errors.Is(err, errors.ErrCanceled) {
		t.Errorf("Expected ErrCanceled, got %v", err)
	}
}

func TestHeadless_ReadyAndLanguages(t *testing.T) {
	h := NewHeadless(0)

	if StatusLine(h) != WaitingMessage {
		t.Errorf("Expected waiting message before ready, got %q", StatusLine(h))
	}
	h.SetReady(true)
	if StatusLine(h) != "" {
		t.Errorf("Expected empty status when ready, got %q", StatusLine(h))
	}
	if StatusLine(nil) != WaitingMessage {
		t.Error("nil editor should report the waiting message")
	}

	if err := h.RegisterLanguage(Language{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Expected validation error for empty id, got %v", err)
	}
	_ = h.RegisterLanguage(Language{ID: "json"})
	_ = h.RegisterLanguage(Language{ID: "cadence", Extensions: []string{".cdc"}})

	langs := h.Languages()
	if len(langs) != 2 || langs[0].ID != "cadence" {
		t.Errorf("Unexpected languages: %+v", langs)
	}
}

func TestHeadless_Documents(t *testing.T) {
	h := NewHeadless(4)
	ctx := context.Background()
	_ = h.SetText(ctx, "file:///b.cdc", "b")
	_ = h.SetText(ctx, "file:///a.cdc", "a")

	docs := h.Documents()
	if len(docs) != 2 || docs[0] != "file:///a.cdc" {
		t.Errorf("Expected sorted documents, got %v", docs)
	}
}
