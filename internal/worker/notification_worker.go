// Package worker runs event handlers off the request path.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/events"
)

// NotificationWorker buffers events from the dispatcher and hands them to a
// handler on a fixed pool of goroutines. A full queue drops the event.
type NotificationWorker struct {
	handler events.EventHandler
	queue   chan events.Event
	workers int
	logger  *zap.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	started bool
	closed  bool
}

// NewNotificationWorker sizes the pool; non-positive values fall back to one
// worker and a queue of 64.
func NewNotificationWorker(handler events.EventHandler, workers, queueSize int, logger *zap.Logger) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		handler: handler,
		queue:   make(chan events.Event, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Subscribe registers the worker's enqueue function for each event type.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher, types ...events.EventType) {
	for _, t := range types {
		dispatcher.Subscribe(t, w.enqueue)
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, ev events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn("notification worker stopped; dropping event", zap.String("event_id", ev.ID))
		return nil
	}
	select {
	case w.queue <- ev:
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)))
	}
	return nil
}

// Start launches the pool. Handlers run with ctx, detached from the request
// that published the event.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for ev := range w.queue {
				if err := w.handler(ctx, ev); err != nil {
					w.logger.Warn("notification handler failed", zap.String("event_id", ev.ID), zap.Error(err))
				}
			}
		}()
	}
}

// Stop closes the queue and waits until every buffered event was handled.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	started := w.started
	w.mu.Unlock()

	if !started {
		return
	}
	w.wg.Wait()
}
