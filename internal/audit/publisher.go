package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"donorlink/pkg/requestcontext"
)

// Store persists audit events. Append must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills the id, timestamp and request id from ctx when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
		return err
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, userID string, limit int) ([]Event, error) {
	return p.store.ListByUser(ctx, userID, limit)
}
