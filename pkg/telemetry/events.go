package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionEvent is one progress notification from the engine: a component
// or task changed state, or a cluster reached a terminal state.
type ExecutionEvent struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Cluster names the originating cluster.
	Cluster string `json:"cluster,omitempty"`

	// Component names the component, as cluster/kind/name.
	Component string `json:"component,omitempty"`

	// Task names the task, if the event is task-scoped.
	Task string `json:"task,omitempty"`

	// State is the new state after the transition.
	State string `json:"state,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message,omitempty"`

	// Elapsed is the component duration for terminal transitions.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Event types published by the engine.
const (
	EventComponentState = "component.state"
	EventTaskState      = "task.state"
	EventClusterState   = "cluster.state"
)

// EventSubscriber handles published execution events.
type EventSubscriber func(event ExecutionEvent)

// EventBus delivers execution events to subscribers. Delivery is
// asynchronous through a buffered queue so publishing never blocks the
// executor; a full queue drops the event.
type EventBus struct {
	config      EventsConfig
	buffer      chan ExecutionEvent
	subscribers []EventSubscriber
	mu          sync.RWMutex
	done        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewEventBus creates an event bus with the given configuration.
func NewEventBus(cfg EventsConfig) *EventBus {
	bus := &EventBus{
		config: cfg,
		done:   make(chan struct{}),
	}

	if cfg.Enabled {
		bus.buffer = make(chan ExecutionEvent, cfg.BufferSize)
		bus.wg.Add(1)
		go bus.deliver()
	}

	return bus
}

// Subscribe registers a subscriber for all subsequent events.
func (b *EventBus) Subscribe(fn EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Publish enqueues an event for delivery. A nil bus, a disabled bus and a
// full buffer are all safe; the event is silently dropped.
func (b *EventBus) Publish(event ExecutionEvent) {
	if b == nil || !b.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.buffer <- event:
	case <-b.done:
	default:
	}
}

// Close drains pending events and stops delivery.
func (b *EventBus) Close() {
	if b == nil || !b.config.Enabled {
		return
	}
	b.closeOnce.Do(func() {
		close(b.done)

		flushed := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(flushed)
		}()

		timeout := b.config.FlushTimeout
		if timeout <= 0 {
			timeout = time.Second
		}
		select {
		case <-flushed:
		case <-time.After(timeout):
		}
	})
}

func (b *EventBus) deliver() {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.buffer:
			b.fanOut(event)
		case <-b.done:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case event := <-b.buffer:
					b.fanOut(event)
				default:
					return
				}
			}
		}
	}
}

func (b *EventBus) fanOut(event ExecutionEvent) {
	b.mu.RLock()
	subscribers := make([]EventSubscriber, len(b.subscribers))
	copy(subscribers, b.subscribers)
	b.mu.RUnlock()

	for _, fn := range subscribers {
		fn(event)
	}
}
