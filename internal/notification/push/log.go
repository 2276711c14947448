package push

import (
	"context"
	"log/slog"

	"donorlink/internal/notification/models"
)

// LogChannel writes deliveries to the log. It is the channel when no broker is
// configured and the fallback while the primary circuit is open.
type LogChannel struct {
	logger *slog.Logger
}

func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Deliver(ctx context.Context, sub *models.PushSubscription, payload Payload) error {
	c.logger.InfoContext(ctx, "push delivery",
		"user_id", sub.UserID,
		"subscription_id", sub.ID,
		"platform", sub.Platform,
		"kind", payload.Kind,
		"blood_request_id", payload.BloodRequestID,
	)
	return nil
}
