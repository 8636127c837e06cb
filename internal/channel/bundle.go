// Package channel bridges the analysis service and the client adapter.
//
// A [Bundle] is the single set of callback slots a lifecycle manager shares
// with every service process and adapter it creates. It is created once and
// mutated in place; components hold the same *Bundle for its whole life.
// A [Pair] scopes a bundle to one generation: binds, deliveries and close
// notifications made through a closed Pair are refused, so a superseded
// process cannot reach its successor's adapter.
package channel

import (
	"fmt"
	"runtime/debug"

	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
)

// Handler receives one message.
type Handler func(*protocol.Message) error

// Resolver maps an import path such as "0x01.Foo" to source text.
type Resolver func(importPath string) string

// Bundle holds the callbacks connecting a service process to a client adapter.
type Bundle struct {
	// ToService is populated by the service process; it delivers editor
	// traffic to the service. Its population is the readiness signal.
	ToService Slot[Handler]
	// ToClient is populated by the adapter; it delivers service traffic to the editor.
	ToClient Slot[Handler]
	// OnServiceClose is populated by the adapter and called when the service goes away.
	OnServiceClose Slot[func()]
	// OnClientClose is populated by the service and called when the adapter stops.
	OnClientClose Slot[func()]

	resolver Slot[Resolver]
	logger   *logging.Logger
}

// NewBundle creates an empty bundle.
func NewBundle(logger *logging.Logger) *Bundle {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Bundle{logger: logger.WithComponent("channel")}
}

// SendToService delivers msg to the service. It returns
// errors.ErrChannelNotEstablished while no service is bound.
func (b *Bundle) SendToService(msg *protocol.Message) error {
	h, ok := b.ToService.Load()
	if !ok || h == nil {
		return errors.ErrChannelNotEstablished
	}
	return h(msg)
}

// SendToClient delivers msg to the adapter. It returns
// errors.ErrChannelNotEstablished while no adapter is bound.
func (b *Bundle) SendToClient(msg *protocol.Message) error {
	h, ok := b.ToClient.Load()
	if !ok || h == nil {
		return errors.ErrChannelNotEstablished
	}
	return h(msg)
}

// SetResolver binds the document resolver.
func (b *Bundle) SetResolver(r Resolver) {
	if r == nil {
		b.resolver.Clear()
		return
	}
	b.resolver.Store(r)
}

// ResolveDocument returns the source for importPath, or "" when nothing is
// bound, the resolver has no entry, or the resolver panics.
func (b *Bundle) ResolveDocument(importPath string) (src string) {
	r, ok := b.resolver.Load()
	if !ok || r == nil {
		return ""
	}
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("document resolver panicked",
				"import", importPath,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()))
			src = ""
		}
	}()
	return r(importPath)
}

// Reset clears the four callback slots for a new generation. The resolver
// binding is kept.
func (b *Bundle) Reset() {
	b.ToService.Clear()
	b.ToClient.Clear()
	b.OnServiceClose.Clear()
	b.OnClientClose.Clear()
}

func callClose(slot *Slot[func()]) bool {
	fn, ok := slot.Load()
	if !ok || fn == nil {
		return false
	}
	fn()
	return true
}
