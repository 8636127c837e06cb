package event

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/cadencehost/internal/logging"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus(nil)

	called := false
	id := bus.Subscribe(TypeServiceReady, func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}
	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	bus.Subscribe(TypeClientReady, func(e Event) {
		received = e
	})
	bus.Publish(NewServiceReadyEvent(1, "p1", 3))
	if received != nil {
		t.Fatal("Handler should not receive events of other types")
	}

	bus.Publish(NewClientReadyEvent(2, "a1"))
	ready, ok := received.(ClientReadyEvent)
	if !ok {
		t.Fatalf("Expected ClientReadyEvent, got %T", received)
	}
	if ready.Generation != 2 || ready.AdapterID != "a1" {
		t.Errorf("Unexpected event payload: %+v", ready)
	}
	if ready.Timestamp().IsZero() {
		t.Error("Expected a timestamp")
	}
}

func TestBus_OrderSpecificThenWildcard(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "all") })
	bus.Subscribe(TypeFailed, func(e Event) { order = append(order, "first") })
	bus.Subscribe(TypeFailed, func(e Event) { order = append(order, "second") })

	bus.Publish(NewFailedEvent(1, "service", nil))

	want := "first,second,all"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("Expected order %s, got %s", want, got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	count := 0
	id := bus.Subscribe(TypeRestarted, func(e Event) { count++ })
	bus.Subscribe(TypeRestarted, func(e Event) { count += 10 })

	if !bus.Unsubscribe(id) {
		t.Error("Unsubscribe should return true for a known ID")
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe should return false for an unknown ID")
	}

	bus.Publish(NewRestartedEvent(1, 2))
	if count != 10 {
		t.Errorf("Expected only the remaining handler to run, count = %d", count)
	}
}

func TestBus_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewWriterLogger(&buf, logging.LevelDebug))

	called := false
	bus.Subscribe(TypeDiagnostics, func(e Event) { panic("boom") })
	bus.Subscribe(TypeDiagnostics, func(e Event) { called = true })

	bus.Publish(NewDiagnosticsEvent("file:///a.cdc", 2))

	if !called {
		t.Error("Handler after a panicking handler should still be called")
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("Expected panic to be logged, got %q", buf.String())
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(TypeStateChanged, func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	bus.Clear()
	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after Clear, got %d", bus.SubscriptionCount())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	count := 0
	bus.Subscribe(TypeStateChanged, func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bus.Publish(NewStateChangedEvent(uint64(i), "idle", "service_starting"))
			bus.Subscribe("other.event", func(Event) {})
		}(i)
	}
	wg.Wait()

	if count != 20 {
		t.Errorf("Expected 20 deliveries, got %d", count)
	}
}

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{NewStateChangedEvent(1, "idle", "service_starting"), TypeStateChanged},
		{NewFailedEvent(1, "client", nil), TypeFailed},
		{NewRestartedEvent(1, 2), TypeRestarted},
		{NewServiceReadyEvent(1, "p", 1), TypeServiceReady},
		{NewServiceExitedEvent(1, "p"), TypeServiceExited},
		{NewClientReadyEvent(1, "a"), TypeClientReady},
		{NewNetworkChangedEvent("testnet", "mainnet"), TypeNetworkChanged},
		{NewRegistryReloadedEvent(3, nil), TypeRegistryLoaded},
		{NewDiagnosticsEvent("u", 0), TypeDiagnostics},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.event.EventType(); got != tt.want {
				t.Errorf("EventType() = %q, want %q", got, tt.want)
			}
		})
	}
}
