package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrQueueFull is returned by Queue.Append when the buffer is saturated.
var ErrQueueFull = errors.New("audit queue full")

// Queue is a Store that buffers events for a Worker. Appends never block.
type Queue struct {
	events  chan Event
	dropped atomic.Int64
	backing Store
}

// NewQueue buffers up to size events in front of backing, which also serves
// reads.
func NewQueue(backing Store, size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{events: make(chan Event, size), backing: backing}
}

func (q *Queue) Append(_ context.Context, event Event) error {
	select {
	case q.events <- event:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

func (q *Queue) ListByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	return q.backing.ListByUser(ctx, userID, limit)
}

// Dropped reports how many events were rejected because the buffer was full.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Worker consumes audit events from a channel and persists them.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// NewQueueWorker drains q into its backing store.
func NewQueueWorker(q *Queue, logger *slog.Logger) *Worker {
	return NewWorker(q.backing, q.events, logger)
}

// Run persists events until ctx is done. A failed append is logged and the
// event dropped so one bad event cannot stall the pipeline.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"request_id", event.RequestID,
					"error", err,
				)
			}
		}
	}
}

// drain flushes what is already buffered using a fresh context.
func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			if err := w.store.Append(context.Background(), event); err != nil {
				w.logger.Error("failed to persist audit event during shutdown", "action", event.Action, "error", err)
			}
		default:
			return
		}
	}
}
