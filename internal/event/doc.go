// Package event provides a pub-sub event bus for decoupled communication
// between the lifecycle manager and its observers (TUI, metrics, CLI).
//
// # Main Types
//
//   - [Event]: Interface that all events implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Lifecycle:
//   - [StateChangedEvent]: every state transition of the manager
//   - [ServiceReadyEvent]: a service process was published
//   - [ClientReadyEvent]: a client adapter completed its handshake
//   - [FailedEvent]: a generation failed to start
//   - [RestartedEvent]: a restart superseded a generation
//   - [ServiceExitedEvent]: a live service process went away
//
// Context:
//   - [NetworkChangedEvent]: the resolver switched network
//   - [RegistryReloadedEvent]: contract sources were reloaded from disk
//   - [DiagnosticsEvent]: diagnostics arrived for a document
//
// # Thread Safety
//
// The [Bus] is safe for concurrent use. Handlers are called synchronously on
// the publishing goroutine and are protected against panics.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeClientReady, func(e event.Event) {
//	    ready := e.(event.ClientReadyEvent)
//	    fmt.Println("client", ready.AdapterID, "generation", ready.Generation)
//	})
package event
