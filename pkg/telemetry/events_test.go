package telemetry

import (
	"sync"
	"testing"
	"time"
)

func TestEventBus_DeliversToSubscribers(t *testing.T) {
	bus := NewEventBus(EventsConfig{Enabled: true, BufferSize: 16, FlushTimeout: time.Second})

	var mu sync.Mutex
	var got []ExecutionEvent
	bus.Subscribe(func(event ExecutionEvent) {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
	})

	bus.Publish(ExecutionEvent{Type: EventComponentState, Component: "prod/Deployment/web", State: "running"})
	bus.Publish(ExecutionEvent{Type: EventComponentState, Component: "prod/Deployment/web", State: "done"})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].State != "running" || got[1].State != "done" {
		t.Errorf("Wrong order or states: %+v", got)
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Error("Expected ID and timestamp to be filled in")
	}
}

func TestEventBus_DisabledIsNoop(t *testing.T) {
	bus := NewEventBus(EventsConfig{Enabled: false})

	called := false
	bus.Subscribe(func(ExecutionEvent) { called = true })
	bus.Publish(ExecutionEvent{Type: EventTaskState})
	bus.Close()

	if called {
		t.Error("Disabled bus should not deliver")
	}
}

func TestEventBus_NilIsSafe(t *testing.T) {
	var bus *EventBus
	bus.Publish(ExecutionEvent{Type: EventClusterState})
	bus.Close()
}

func TestTelemetryConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}

	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for bad log level")
	}
}
