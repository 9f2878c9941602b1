package engine

import (
	"sync"
	"time"
)

// Executor is the per-cluster single-consumer work queue. One goroutine
// drains it, so everything posted onto it runs serialized: state
// transitions, event deliveries and HTTP completion callbacks never race.
type Executor struct {
	queue   chan func()
	stopped chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewExecutor creates a stopped executor.
func NewExecutor() *Executor {
	return &Executor{
		queue:   make(chan func(), 4096),
		stopped: make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (e *Executor) Start() {
	e.wg.Add(1)
	go e.loop()
}

func (e *Executor) loop() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.queue:
			fn()
		case <-e.stopped:
			// Drain what is already queued, then exit.
			for {
				select {
				case fn := <-e.queue:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post enqueues fn for serialized execution. After Stop, posts are dropped.
func (e *Executor) Post(fn func()) {
	select {
	case <-e.stopped:
	case e.queue <- fn:
	}
}

// PostDelayed schedules fn onto the queue after d. The returned timer can be
// stopped to cancel delivery.
func (e *Executor) PostDelayed(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		e.Post(fn)
	})
}

// Stop drains the queue and stops the consumer. Safe to call twice.
func (e *Executor) Stop() {
	e.once.Do(func() {
		close(e.stopped)
	})
	e.wg.Wait()
}
