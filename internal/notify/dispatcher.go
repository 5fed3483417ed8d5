package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"prontoapp/backend/internal/models"
)

// Dispatcher queues events and delivers them on its own goroutine, so the
// core never waits on the messaging network. Delivery failures are logged
// and dropped.
type Dispatcher struct {
	gateway Gateway
	timeout time.Duration
	queue   chan models.Event
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(g Gateway, size int, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		gateway: g,
		timeout: timeout,
		queue:   make(chan models.Event, size),
		done:    make(chan struct{}),
	}
}

// Enqueue never blocks. When the queue is full the event is dropped.
func (d *Dispatcher) Enqueue(event models.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx := eventContext(context.Background(), event)
	if d.closed {
		slog.WarnContext(ctx, "dispatcher stopped, dropping notification", "kind", event.Kind)
		return
	}
	select {
	case d.queue <- event:
	default:
		slog.WarnContext(ctx, "notification queue full, dropping notification", "kind", event.Kind)
	}
}

// Run delivers queued events until Stop is called. Events already queued at
// that point are still delivered.
func (d *Dispatcher) Run() {
	defer close(d.done)
	for event := range d.queue {
		d.deliver(event)
	}
}

// Stop closes the queue and waits for Run to drain it.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) deliver(event models.Event) {
	ctx, cancel := context.WithTimeout(eventContext(context.Background(), event), d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.gateway.Notify(ctx, event); err != nil {
		slog.ErrorContext(ctx, "notification delivery failed", "kind", event.Kind, "error", err)
		return
	}
	slog.DebugContext(ctx, "notification delivered", "kind", event.Kind, "took", time.Since(start))
}
