package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"donorlink/internal/request/models"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/httputil"
	"donorlink/pkg/requestcontext"
)

// Service defines the blood request operations used by the handler.
type Service interface {
	Create(ctx context.Context, requesterID string, req *models.CreateRequest) (*models.CreateResult, error)
	Complete(ctx context.Context, userID, requestID string, donorID *string) (*models.BloodRequest, error)
	Get(ctx context.Context, requestID string) (*models.BloodRequest, error)
	ListActive(ctx context.Context) ([]*models.BloodRequest, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the mutating routes. The caller must apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/blood-requests", h.handleCreate)
	r.Post("/blood-requests/{id}/complete", h.handleComplete)
}

// RegisterPublic mounts the read routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/blood-requests/active", h.handleListActive)
	r.Get("/blood-requests/{id}", h.handleGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Create(ctx, userID, req)
	if err != nil {
		h.logFailure(ctx, "failed to create blood request", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CompleteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.service.Complete(ctx, userID, chi.URLParam(r, "id"), req.DonorID)
	if err != nil {
		h.logFailure(ctx, "failed to complete blood request", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.logFailure(ctx, "failed to load blood request", err, requestID, requestcontext.UserID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	list, err := h.service.ListActive(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to list active requests", err, requestID, requestcontext.UserID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": list})
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
