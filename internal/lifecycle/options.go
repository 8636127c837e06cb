package lifecycle

import (
	"time"

	"github.com/Iron-Ham/cadencehost/internal/channel"
	"github.com/Iron-Ham/cadencehost/internal/client"
	"github.com/Iron-Ham/cadencehost/internal/editor"
	"github.com/Iron-Ham/cadencehost/internal/event"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/metrics"
	"github.com/Iron-Ham/cadencehost/internal/poll"
	"github.com/Iron-Ham/cadencehost/internal/registry"
	"github.com/Iron-Ham/cadencehost/internal/service"
)

// Config holds the timing and sizing knobs of a Manager.
type Config struct {
	// PollInterval is the readiness polling period.
	PollInterval time.Duration
	// MaxPollAttempts bounds readiness checks. Zero means unbounded.
	MaxPollAttempts int
	// ReadyTimeout bounds total readiness polling. Zero means unbounded.
	ReadyTimeout time.Duration
	// AdapterStartTimeout bounds the client handshake.
	AdapterStartTimeout time.Duration
	// StopTimeout bounds graceful shutdown of a superseded generation.
	StopTimeout time.Duration
	// RestartRate and RestartBurst throttle Restart calls.
	RestartRate  float64
	RestartBurst int
	// LaneSize is the per-lane buffer. Zero uses channel.DefaultLaneSize.
	LaneSize int
}

// DefaultConfig returns the default lifecycle configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:        poll.DefaultInterval,
		MaxPollAttempts:     0,
		ReadyTimeout:        30 * time.Second,
		AdapterStartTimeout: 10 * time.Second,
		StopTimeout:         2 * time.Second,
		RestartRate:         5,
		RestartBurst:        10,
		LaneSize:            0,
	}
}

// Callbacks holds optional functions invoked on lifecycle transitions.
// They run outside the manager's lock and must not block for long.
type Callbacks struct {
	// OnStateChange is called on every state transition.
	OnStateChange func(gen uint64, from, to State)

	// OnServiceReady is called once the service has bound into the bundle.
	OnServiceReady func(gen uint64, bundle *channel.Bundle, proc service.Process)

	// OnClientReady is called once the adapter handshake completed.
	OnClientReady func(gen uint64, adapter *client.Adapter)

	// OnFailure is called when a generation fails.
	OnFailure func(gen uint64, err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.config = cfg
	}
}

// WithCallbacks registers transition callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(m *Manager) {
		m.callbacks = cb
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEventBus publishes lifecycle events to bus.
func WithEventBus(bus *event.Bus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithMetrics records lifecycle metrics.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithResolver binds r as the bundle's document resolver on every
// generation that becomes ready.
func WithResolver(r *registry.Resolver) Option {
	return func(m *Manager) {
		m.resolver = r
	}
}

// WithSink routes published diagnostics to sink. When sink is an
// editor.Editor its ready gate follows the lifecycle.
func WithSink(sink editor.DiagnosticsSink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithClientOptions appends options for every adapter the manager creates.
func WithClientOptions(opts ...client.Option) Option {
	return func(m *Manager) {
		m.clientOpts = append(m.clientOpts, opts...)
	}
}
