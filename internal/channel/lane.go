package channel

import (
	"sync"

	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
)

// DefaultLaneSize is the buffer size used when a lane is created with size <= 0.
const DefaultLaneSize = 256

// LaneOption configures a Lane.
type LaneOption func(*Lane)

// WithGate makes the lane wait on the channel returned by gate before each
// delivery. Pass a slot's Ready method to hold messages until it is populated.
func WithGate(gate func() <-chan struct{}) LaneOption {
	return func(l *Lane) {
		l.gate = gate
	}
}

// WithLaneLogger sets the logger used for delivery failures.
func WithLaneLogger(logger *logging.Logger) LaneOption {
	return func(l *Lane) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Lane is a one-directional asynchronous handoff. Send never blocks; a pump
// goroutine delivers messages in FIFO order to the currently bound handler.
// Messages sent while no handler is bound, or while the gate is closed, are
// held until delivery becomes possible.
type Lane struct {
	name   string
	size   int
	gate   func() <-chan struct{}
	logger *logging.Logger

	mu      sync.Mutex
	queue   []*protocol.Message
	handler Handler
	closed  bool

	wake chan struct{}
	done chan struct{}
	exit chan struct{}
}

// NewLane creates a lane and starts its pump.
func NewLane(name string, size int, opts ...LaneOption) *Lane {
	if size <= 0 {
		size = DefaultLaneSize
	}
	l := &Lane{
		name:   name,
		size:   size,
		logger: logging.NopLogger(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent("lane").With("lane", name)

	go l.pump()
	return l
}

// Name returns the lane's name.
func (l *Lane) Name() string { return l.name }

// Send enqueues msg. It returns errors.ErrLaneClosed after Close and
// errors.ErrLaneFull when the buffer is full.
func (l *Lane) Send(msg *protocol.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.ErrLaneClosed
	}
	if len(l.queue) >= l.size {
		return errors.ErrLaneFull
	}
	l.queue = append(l.queue, msg)
	l.signal()
	return nil
}

// Bind sets the receive handler for subsequent deliveries. A nil handler
// pauses delivery.
func (l *Lane) Bind(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = h
	l.signal()
}

// Pending returns the number of undelivered messages.
func (l *Lane) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops the pump and drops undelivered messages. It is idempotent.
func (l *Lane) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
}

// Done is closed once the pump goroutine has exited.
func (l *Lane) Done() <-chan struct{} { return l.exit }

// signal must be called with l.mu held.
func (l *Lane) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Lane) pump() {
	defer close(l.exit)
	for {
		msg, h := l.next()
		if msg == nil {
			select {
			case <-l.wake:
				continue
			case <-l.done:
				return
			}
		}

		if l.gate != nil {
			select {
			case <-l.gate():
			case <-l.done:
				return
			}
			// The handler may have been rebound while waiting.
			if msg, h = l.next(); msg == nil {
				continue
			}
		}

		err := h(msg)
		switch {
		case err == nil:
			l.pop(msg)
		case errors.IsDeferred(err):
			// The target went away between the gate and the call; keep the
			// message at the head and wait for the gate to reopen.
			if l.gate == nil {
				select {
				case <-l.wake:
				case <-l.done:
					return
				}
			}
		default:
			l.pop(msg)
			l.logger.Warn("lane delivery failed", "method", msg.Method, "error", err)
		}
	}
}

// next peeks the head message and the bound handler, or returns nil when
// nothing can be delivered.
func (l *Lane) next() (*protocol.Message, Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.handler == nil || len(l.queue) == 0 {
		return nil, nil
	}
	return l.queue[0], l.handler
}

func (l *Lane) pop(msg *protocol.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) > 0 && l.queue[0] == msg {
		l.queue[0] = nil
		l.queue = l.queue[1:]
	}
}
