package editor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
)

// Headless is an in-memory Editor. It is safe for concurrent use.
type Headless struct {
	changes chan Change
	done    chan struct{}
	sendMu  sync.RWMutex // held shared while emitting, exclusively to close changes

	mu          sync.Mutex
	ready       bool
	closed      bool
	docs        map[string]string
	diagnostics map[string][]protocol.Diagnostic
	languages   map[string]Language
	published   chan struct{} // closed and replaced on every publish
	listeners   []func(uri string)
}

var _ Editor = (*Headless)(nil)

// NewHeadless creates a headless editor whose change stream buffers up to
// buffer events.
func NewHeadless(buffer int) *Headless {
	if buffer < 0 {
		buffer = 0
	}
	return &Headless{
		changes:     make(chan Change, buffer),
		done:        make(chan struct{}),
		docs:        make(map[string]string),
		diagnostics: make(map[string][]protocol.Diagnostic),
		languages:   make(map[string]Language),
		published:   make(chan struct{}),
	}
}

// Changes implements Editor.
func (h *Headless) Changes() <-chan Change { return h.changes }

// SetText stores a document and emits an edit. It blocks while the change
// buffer is full, until ctx ends.
func (h *Headless) SetText(ctx context.Context, uri, text string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("editor closed")
	}
	h.docs[uri] = text
	h.mu.Unlock()
	return h.emit(ctx, Change{URI: uri, Text: text, Kind: ChangeEdit})
}

// CloseDocument forgets a document and emits a close.
func (h *Headless) CloseDocument(ctx context.Context, uri string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("editor closed")
	}
	delete(h.docs, uri)
	delete(h.diagnostics, uri)
	h.mu.Unlock()
	return h.emit(ctx, Change{URI: uri, Kind: ChangeClose})
}

func (h *Headless) emit(ctx context.Context, c Change) error {
	h.sendMu.RLock()
	defer h.sendMu.RUnlock()

	select {
	case <-h.done:
		return fmt.Errorf("editor closed")
	default:
	}
	select {
	case h.changes <- c:
		return nil
	case <-h.done:
		return fmt.Errorf("editor closed")
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
	}
}

// Document returns the stored text of uri.
func (h *Headless) Document(uri string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	text, ok := h.docs[uri]
	return text, ok
}

// Documents returns the URIs of all open documents, sorted.
func (h *Headless) Documents() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	uris := make([]string, 0, len(h.docs))
	for uri := range h.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// PublishDiagnostics implements DiagnosticsSink.
func (h *Headless) PublishDiagnostics(uri string, diags []protocol.Diagnostic) {
	h.mu.Lock()
	h.diagnostics[uri] = append([]protocol.Diagnostic{}, diags...)
	close(h.published)
	h.published = make(chan struct{})
	listeners := append([]func(string){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(uri)
	}
}

// OnDiagnostics registers fn to be called after every publish.
func (h *Headless) OnDiagnostics(fn func(uri string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Diagnostics returns the last diagnostics published for uri and whether
// any were published.
func (h *Headless) Diagnostics(uri string) ([]protocol.Diagnostic, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.diagnostics[uri]
	return append([]protocol.Diagnostic(nil), d...), ok
}

// ClearDiagnostics forgets published diagnostics for uri.
func (h *Headless) ClearDiagnostics(uri string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.diagnostics, uri)
}

// WaitDiagnostics blocks until diagnostics have been published for uri
// and returns them.
func (h *Headless) WaitDiagnostics(ctx context.Context, uri string) ([]protocol.Diagnostic, error) {
	for {
		h.mu.Lock()
		d, ok := h.diagnostics[uri]
		wait := h.published
		h.mu.Unlock()
		if ok {
			return append([]protocol.Diagnostic(nil), d...), nil
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for diagnostics of %s: %w: %w", uri, errors.ErrCanceled, ctx.Err())
		}
	}
}

// SetReady implements Editor.
func (h *Headless) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Ready implements Editor.
func (h *Headless) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// RegisterLanguage implements Editor.
func (h *Headless) RegisterLanguage(lang Language) error {
	if lang.ID == "" {
		return errors.NewValidationError("language id must not be empty").WithField("id")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.languages[lang.ID] = lang
	return nil
}

// Languages returns the registered languages sorted by ID.
func (h *Headless) Languages() []Language {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Language, 0, len(h.languages))
	for _, l := range h.languages {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown closes the change stream. Later edits fail.
func (h *Headless) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.done)
	h.mu.Unlock()

	h.sendMu.Lock()
	close(h.changes)
	h.sendMu.Unlock()
}
