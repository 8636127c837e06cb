package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "service.ready", "client.ready")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type names.
const (
	TypeStateChanged   = "lifecycle.state_changed"
	TypeFailed         = "lifecycle.failed"
	TypeRestarted      = "lifecycle.restarted"
	TypeServiceReady   = "service.ready"
	TypeServiceExited  = "service.exited"
	TypeClientReady    = "client.ready"
	TypeNetworkChanged = "network.changed"
	TypeRegistryLoaded = "registry.reloaded"
	TypeDiagnostics    = "diagnostics.published"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Lifecycle Events
// -----------------------------------------------------------------------------

// StateChangedEvent is emitted on every lifecycle state transition.
type StateChangedEvent struct {
	baseEvent
	Generation uint64
	From       string
	To         string
}

// NewStateChangedEvent creates a StateChangedEvent.
func NewStateChangedEvent(gen uint64, from, to string) StateChangedEvent {
	return StateChangedEvent{
		baseEvent:  newBaseEvent(TypeStateChanged),
		Generation: gen,
		From:       from,
		To:         to,
	}
}

// FailedEvent is emitted when a generation ends in the failed state.
type FailedEvent struct {
	baseEvent
	Generation uint64
	Stage      string // "service", "client" or "service_exit"
	Err        error
}

// NewFailedEvent creates a FailedEvent.
func NewFailedEvent(gen uint64, stage string, err error) FailedEvent {
	return FailedEvent{
		baseEvent:  newBaseEvent(TypeFailed),
		Generation: gen,
		Stage:      stage,
		Err:        err,
	}
}

// RestartedEvent is emitted when a restart supersedes a generation.
type RestartedEvent struct {
	baseEvent
	Previous   uint64
	Generation uint64
}

// NewRestartedEvent creates a RestartedEvent.
func NewRestartedEvent(previous, gen uint64) RestartedEvent {
	return RestartedEvent{
		baseEvent:  newBaseEvent(TypeRestarted),
		Previous:   previous,
		Generation: gen,
	}
}

// ServiceReadyEvent is emitted when a service process has been published.
type ServiceReadyEvent struct {
	baseEvent
	Generation uint64
	ProcessID  string
	Attempts   int // poll ticks until the request channel appeared
}

// NewServiceReadyEvent creates a ServiceReadyEvent.
func NewServiceReadyEvent(gen uint64, processID string, attempts int) ServiceReadyEvent {
	return ServiceReadyEvent{
		baseEvent:  newBaseEvent(TypeServiceReady),
		Generation: gen,
		ProcessID:  processID,
		Attempts:   attempts,
	}
}

// ServiceExitedEvent is emitted when a live service process goes away.
type ServiceExitedEvent struct {
	baseEvent
	Generation uint64
	ProcessID  string
}

// NewServiceExitedEvent creates a ServiceExitedEvent.
func NewServiceExitedEvent(gen uint64, processID string) ServiceExitedEvent {
	return ServiceExitedEvent{
		baseEvent:  newBaseEvent(TypeServiceExited),
		Generation: gen,
		ProcessID:  processID,
	}
}

// ClientReadyEvent is emitted when a client adapter finished its handshake.
type ClientReadyEvent struct {
	baseEvent
	Generation uint64
	AdapterID  string
}

// NewClientReadyEvent creates a ClientReadyEvent.
func NewClientReadyEvent(gen uint64, adapterID string) ClientReadyEvent {
	return ClientReadyEvent{
		baseEvent:  newBaseEvent(TypeClientReady),
		Generation: gen,
		AdapterID:  adapterID,
	}
}

// -----------------------------------------------------------------------------
// Context Events
// -----------------------------------------------------------------------------

// NetworkChangedEvent is emitted when the resolver switches network.
type NetworkChangedEvent struct {
	baseEvent
	From string
	To   string
}

// NewNetworkChangedEvent creates a NetworkChangedEvent.
func NewNetworkChangedEvent(from, to string) NetworkChangedEvent {
	return NetworkChangedEvent{
		baseEvent: newBaseEvent(TypeNetworkChanged),
		From:      from,
		To:        to,
	}
}

// RegistryReloadedEvent is emitted after the contract registry is reloaded from disk.
type RegistryReloadedEvent struct {
	baseEvent
	Contracts int
	Err       error
}

// NewRegistryReloadedEvent creates a RegistryReloadedEvent.
func NewRegistryReloadedEvent(contracts int, err error) RegistryReloadedEvent {
	return RegistryReloadedEvent{
		baseEvent: newBaseEvent(TypeRegistryLoaded),
		Contracts: contracts,
		Err:       err,
	}
}

// DiagnosticsEvent is emitted when the service publishes diagnostics for a document.
type DiagnosticsEvent struct {
	baseEvent
	URI   string
	Count int
}

// NewDiagnosticsEvent creates a DiagnosticsEvent.
func NewDiagnosticsEvent(uri string, count int) DiagnosticsEvent {
	return DiagnosticsEvent{
		baseEvent: newBaseEvent(TypeDiagnostics),
		URI:       uri,
		Count:     count,
	}
}
