package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"donorlink/internal/donation/models"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/httputil"
	"donorlink/pkg/requestcontext"
)

// Service defines the donation operations used by the handler.
type Service interface {
	Record(ctx context.Context, donorID string, details models.Details) (*models.Donation, error)
	History(ctx context.Context, donorID string, limit int) ([]*models.Donation, error)
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
	r.Post("/me/donations", h.handleRecord)
	r.Get("/me/donations", h.handleHistory)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	donation, err := h.service.Record(ctx, userID, req.Details())
	if err != nil {
		h.logFailure(ctx, "failed to record donation", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, donation)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	list, err := h.service.History(ctx, userID, 0)
	if err != nil {
		h.logFailure(ctx, "failed to list donations", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"donations": list})
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
