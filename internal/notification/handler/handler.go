package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"donorlink/internal/notification/models"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/httputil"
	"donorlink/pkg/requestcontext"
)

// Service defines the notification operations used by the handler.
type Service interface {
	Inbox(ctx context.Context, donorID string) ([]models.InboxEntry, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error)
	Respond(ctx context.Context, userID, notificationID string, resp models.Response) (*models.Notification, error)
	Subscribe(ctx context.Context, userID string, req *models.SubscribeRequest) (*models.PushSubscription, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. The caller must apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/me/notifications", h.handleInbox)
	r.Post("/notifications/{id}/read", h.handleMarkRead)
	r.Post("/notifications/{id}/respond", h.handleRespond)
	r.Post("/me/push-subscriptions", h.handleSubscribe)
}

func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	entries, err := h.service.Inbox(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to list notifications", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"notifications": entries})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	n, err := h.service.MarkRead(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		h.logFailure(ctx, "failed to mark notification read", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RespondRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	n, err := h.service.Respond(ctx, userID, chi.URLParam(r, "id"), req.ParsedResponse())
	if err != nil {
		h.logFailure(ctx, "failed to respond to notification", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SubscribeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.Subscribe(ctx, userID, req)
	if err != nil {
		h.logFailure(ctx, "failed to save push subscription", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":       sub.ID,
		"platform": sub.Platform,
	})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, requestID, userID string) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestID,
		"user_id", userID,
		"error", err,
	)
}
