package channel

import (
	"sync"

	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
)

// Pair is the editor→service and service→editor lanes of one generation,
// bound to a shared Bundle. Each lane delivers only once the matching
// bundle slot is populated.
type Pair struct {
	bundle    *Bundle
	ToService *Lane
	ToClient  *Lane

	mu     sync.Mutex
	closed bool
}

// NewPair creates the two lanes over bundle.
func NewPair(bundle *Bundle, size int, logger *logging.Logger) *Pair {
	if bundle == nil {
		panic("channel: bundle must not be nil")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	p := &Pair{bundle: bundle}
	p.ToService = NewLane("to-service", size,
		WithGate(bundle.ToService.Ready), WithLaneLogger(logger))
	p.ToClient = NewLane("to-client", size,
		WithGate(bundle.ToClient.Ready), WithLaneLogger(logger))
	p.ToService.Bind(bundle.SendToService)
	p.ToClient.Bind(bundle.SendToClient)
	return p
}

// Bundle returns the shared callback bundle.
func (p *Pair) Bundle() *Bundle { return p.bundle }

// BindService is called by a service process as its first observable side
// effect: toService receives editor traffic, onClientClose is called when
// the adapter stops. It fails with errors.ErrLaneClosed once the pair is closed.
func (p *Pair) BindService(toService Handler, onClientClose func()) error {
	if toService == nil {
		return errors.NewValidationError("service handler must not be nil").WithField("toService")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.ErrLaneClosed
	}
	if onClientClose != nil {
		p.bundle.OnClientClose.Store(onClientClose)
	}
	// ToService last: populating it is the readiness signal.
	p.bundle.ToService.Store(toService)
	return nil
}

// BindClient is called by the adapter when it starts.
func (p *Pair) BindClient(toClient Handler, onServiceClose func()) error {
	if toClient == nil {
		return errors.NewValidationError("client handler must not be nil").WithField("toClient")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.ErrLaneClosed
	}
	if onServiceClose != nil {
		p.bundle.OnServiceClose.Store(onServiceClose)
	}
	p.bundle.ToClient.Store(toClient)
	return nil
}

// UnbindClient clears the adapter's slots if the pair is still live.
func (p *Pair) UnbindClient() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.bundle.ToClient.Clear()
	p.bundle.OnServiceClose.Clear()
}

// SendToService queues msg for the service.
func (p *Pair) SendToService(msg *protocol.Message) error {
	return p.ToService.Send(msg)
}

// SendToClient queues msg for the adapter.
func (p *Pair) SendToClient(msg *protocol.Message) error {
	return p.ToClient.Send(msg)
}

// ServiceClosed runs the bundle's OnServiceClose callback if the pair is live.
func (p *Pair) ServiceClosed() bool {
	if !p.live() {
		return false
	}
	return callClose(&p.bundle.OnServiceClose)
}

// ClientClosed runs the bundle's OnClientClose callback if the pair is live.
func (p *Pair) ClientClosed() bool {
	if !p.live() {
		return false
	}
	return callClose(&p.bundle.OnClientClose)
}

// Closed reports whether Close has been called.
func (p *Pair) Closed() bool {
	return !p.live()
}

func (p *Pair) live() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Close closes both lanes. After Close returns, no bind through this pair
// can reach the bundle. Safe to call on a nil Pair and more than once.
func (p *Pair) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.ToService.Close()
	p.ToClient.Close()
}
