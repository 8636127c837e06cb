// Package client implements the adapter that turns editor events into
// analysis service requests and service notifications into diagnostics.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Iron-Ham/cadencehost/internal/channel"
	"github.com/Iron-Ham/cadencehost/internal/editor"
	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
)

// Name is reported to the service in the handshake.
const Name = "cadencehost"

// Adapter is a language client bound to one generation's channel pair.
// It becomes usable once Start returns.
type Adapter struct {
	id         string
	pair       *channel.Pair
	sink       editor.DiagnosticsSink
	logger     *logging.Logger
	clientInfo protocol.ClientInfo
	rootURI    string
	initOpts   any
	onDiag     func(uri string, count int)

	nextID atomic.Int64

	mu           sync.Mutex
	pending      map[string]chan *protocol.Message
	versions     map[string]int
	started      bool
	closed       bool
	capabilities json.RawMessage

	closedCh chan struct{}
	stopOnce sync.Once
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClientVersion sets the version sent in clientInfo.
func WithClientVersion(version string) Option {
	return func(a *Adapter) { a.clientInfo.Version = version }
}

// WithRootURI sets the workspace root sent in the handshake.
func WithRootURI(uri string) Option {
	return func(a *Adapter) { a.rootURI = uri }
}

// WithInitializationOptions sets the handshake's initializationOptions.
func WithInitializationOptions(opts any) Option {
	return func(a *Adapter) { a.initOpts = opts }
}

// WithDiagnosticsCallback is called after diagnostics are forwarded to the sink.
func WithDiagnosticsCallback(fn func(uri string, count int)) Option {
	return func(a *Adapter) { a.onDiag = fn }
}

// New creates an adapter over pair that publishes diagnostics to sink.
func New(pair *channel.Pair, sink editor.DiagnosticsSink, opts ...Option) *Adapter {
	a := &Adapter{
		id:         uuid.NewString(),
		pair:       pair,
		sink:       sink,
		logger:     logging.NopLogger(),
		clientInfo: protocol.ClientInfo{Name: Name},
		pending:    make(map[string]chan *protocol.Message),
		versions:   make(map[string]int),
		closedCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithComponent("client").With("adapter_id", a.id)
	return a
}

// ID returns the adapter's unique identifier.
func (a *Adapter) ID() string { return a.id }

// Closed is closed once the adapter has stopped or its service went away.
func (a *Adapter) Closed() <-chan struct{} { return a.closedCh }

// Capabilities returns the service capabilities from the handshake.
func (a *Adapter) Capabilities() json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capabilities
}

// Started reports whether the handshake completed.
func (a *Adapter) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started && !a.closed
}

// Start binds the adapter into the pair and performs the initialize
// handshake. It returns once the service has answered initialize and the
// initialized notification is queued.
func (a *Adapter) Start(ctx context.Context) error {
	if err := a.pair.BindClient(a.receive, a.serviceClosed); err != nil {
		return a.startError("bind client", err)
	}

	params := protocol.InitializeParams{
		ClientInfo:            &a.clientInfo,
		Capabilities:          json.RawMessage(`{"textDocument":{"publishDiagnostics":{}}}`),
		InitializationOptions: a.initOpts,
	}
	if a.rootURI != "" {
		root := a.rootURI
		params.RootURI = &root
	}

	var result protocol.InitializeResult
	if err := a.Call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return a.startError("initialize", err)
	}
	if err := a.Notify(protocol.MethodInitialized, struct{}{}); err != nil {
		return a.startError("initialized", err)
	}

	a.mu.Lock()
	a.started = true
	a.capabilities = result.Capabilities
	a.mu.Unlock()

	a.logger.Info("language client started")
	return nil
}

func (a *Adapter) startError(method string, cause error) error {
	e := errors.NewAdapterError("handshake failed", errors.Join(errors.ErrAdapterStartFailure, cause)).
		WithAdapterID(a.id).
		WithMethod(method)
	var rpcErr *protocol.RPCError
	if errors.As(cause, &rpcErr) {
		e = e.WithCode(rpcErr.Code)
	}
	return e
}

// Call sends a request and waits for its response, decoding the result
// into result (which may be nil).
func (a *Adapter) Call(ctx context.Context, method string, params, result any) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errors.ErrAdapterClosed
	}
	id := a.nextID.Add(1)
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	key := req.IDKey()
	ch := make(chan *protocol.Message, 1)
	a.pending[key] = ch
	a.mu.Unlock()

	if err := a.pair.SendToService(req); err != nil {
		a.forget(key)
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if err := resp.DecodeResult(result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	case <-a.closedCh:
		a.forget(key)
		return errors.ErrAdapterClosed
	case <-ctx.Done():
		a.forget(key)
		if ctx.Err() == context.DeadlineExceeded {
			return errors.NewTimeoutError(method, 0).WithCause(ctx.Err())
		}
		return fmt.Errorf("%s: %w: %w", method, errors.ErrCanceled, ctx.Err())
	}
}

// Notify sends a notification.
func (a *Adapter) Notify(method string, params any) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return errors.ErrAdapterClosed
	}
	msg, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	return a.pair.SendToService(msg)
}

func (a *Adapter) forget(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, key)
}

// receive handles every service→editor message.
func (a *Adapter) receive(msg *protocol.Message) error {
	switch {
	case msg.IsResponse():
		a.mu.Lock()
		ch, ok := a.pending[msg.IDKey()]
		delete(a.pending, msg.IDKey())
		a.mu.Unlock()
		if !ok {
			a.logger.Debug("response for unknown request", "id", msg.IDKey())
			return nil
		}
		ch <- msg
	case msg.IsRequest():
		a.answer(msg)
	default:
		a.notification(msg)
	}
	return nil
}

func (a *Adapter) answer(req *protocol.Message) {
	var resp *protocol.Message
	switch req.Method {
	case protocol.MethodWorkspaceConfig:
		var params struct {
			Items []json.RawMessage `json:"items"`
		}
		_ = req.DecodeParams(&params)
		resp, _ = protocol.NewResponse(req.ID, make([]any, len(params.Items)))
	case protocol.MethodRegisterCapability:
		resp, _ = protocol.NewResponse(req.ID, nil)
	default:
		a.logger.Debug("unsupported service request", "method", req.Method)
		resp = protocol.NewErrorResponse(req.ID, protocol.CodeMethodNotFound, "method not found: "+req.Method)
	}
	if err := a.pair.SendToService(resp); err != nil {
		a.logger.Warn("failed to answer service request", "method", req.Method, "error", err)
	}
}

func (a *Adapter) notification(msg *protocol.Message) {
	switch msg.Method {
	case protocol.MethodPublishDiagnostics:
		var params protocol.PublishDiagnosticsParams
		if err := msg.DecodeParams(&params); err != nil {
			a.logger.Warn("malformed diagnostics", "error", err)
			return
		}
		if a.sink != nil {
			a.sink.PublishDiagnostics(params.URI, params.Diagnostics)
		}
		if a.onDiag != nil {
			a.onDiag(params.URI, len(params.Diagnostics))
		}
	case protocol.MethodLogMessage, protocol.MethodShowMessage:
		var params protocol.LogMessageParams
		if err := msg.DecodeParams(&params); err != nil {
			return
		}
		switch params.Type {
		case 1:
			a.logger.Error(params.Message, "source", msg.Method)
		case 2:
			a.logger.Warn(params.Message, "source", msg.Method)
		case 3:
			a.logger.Info(params.Message, "source", msg.Method)
		default:
			a.logger.Debug(params.Message, "source", msg.Method)
		}
	default:
		a.logger.Debug("ignoring service notification", "method", msg.Method)
	}
}

// DidOpen announces a document with its full text.
func (a *Adapter) DidOpen(uri, text string) error {
	if err := a.ready(); err != nil {
		return err
	}
	a.mu.Lock()
	a.versions[uri] = 1
	a.mu.Unlock()
	return a.Notify(protocol.MethodDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: protocol.LanguageID,
			Version:    1,
			Text:       text,
		},
	})
}

// DidChange sends the full new text of a document, opening it first when
// the service has not seen it.
func (a *Adapter) DidChange(uri, text string) error {
	if err := a.ready(); err != nil {
		return err
	}
	a.mu.Lock()
	version, open := a.versions[uri]
	if open {
		version++
		a.versions[uri] = version
	}
	a.mu.Unlock()
	if !open {
		return a.DidOpen(uri, text)
	}
	return a.Notify(protocol.MethodDidChange, protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{URI: uri, Version: version},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: text}},
	})
}

// DidClose announces that a document was closed. Unknown documents are ignored.
func (a *Adapter) DidClose(uri string) error {
	if err := a.ready(); err != nil {
		return err
	}
	a.mu.Lock()
	_, open := a.versions[uri]
	delete(a.versions, uri)
	a.mu.Unlock()
	if !open {
		return nil
	}
	return a.Notify(protocol.MethodDidClose, protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
}

// Version returns the last version sent for uri, or 0 if it is not open.
func (a *Adapter) Version(uri string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.versions[uri]
}

func (a *Adapter) ready() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.closed:
		return errors.ErrAdapterClosed
	case !a.started:
		return errors.ErrChannelNotEstablished
	}
	return nil
}

// Sync forwards an editor's change stream to the service until ctx ends,
// the stream closes, or the adapter stops.
func (a *Adapter) Sync(ctx context.Context, ed editor.Editor) error {
	changes := ed.Changes()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.closedCh:
			return errors.ErrAdapterClosed
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			var err error
			switch c.Kind {
			case editor.ChangeClose:
				err = a.DidClose(c.URI)
			default:
				err = a.DidChange(c.URI, c.Text)
			}
			if err != nil {
				a.logger.Warn("failed to forward document change", "uri", c.URI, "error", err)
			}
		}
	}
}

// serviceClosed runs when the service process goes away.
func (a *Adapter) serviceClosed() {
	a.logger.Warn("language service closed")
	a.shutdown()
}

// Stop performs the shutdown/exit sequence when the service is still
// reachable, then unbinds the adapter and fails pending calls. Safe to
// call more than once.
func (a *Adapter) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.mu.Lock()
		reachable := a.started && !a.closed
		a.mu.Unlock()

		if reachable {
			if err = a.Call(ctx, protocol.MethodShutdown, nil, nil); err != nil && !errors.Is(err, errors.ErrAdapterClosed) {
				a.logger.Warn("shutdown request failed", "error", err)
			} else {
				err = nil
			}
			if nerr := a.Notify(protocol.MethodExit, nil); nerr != nil && !errors.Is(nerr, errors.ErrAdapterClosed) {
				a.logger.Debug("exit notification failed", "error", nerr)
			}
		}

		a.shutdown()
		a.pair.UnbindClient()
		a.pair.ClientClosed()
		a.logger.Info("language client stopped")
	})
	return err
}

// shutdown marks the adapter closed and fails pending calls.
func (a *Adapter) shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.pending = make(map[string]chan *protocol.Message)
	close(a.closedCh)
}
