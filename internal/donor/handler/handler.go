package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"donorlink/internal/donor/models"
	donorService "donorlink/internal/donor/service"
	"donorlink/internal/eligibility"
	"donorlink/pkg/domain"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/httputil"
	"donorlink/pkg/requestcontext"
)

// Service defines the donor operations used by the handler.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Donor, bool, error)
	Profile(ctx context.Context, donorID string) (*donorService.Profile, error)
	UpdateProfile(ctx context.Context, donorID string, req *models.UpdateProfileRequest) (*models.Donor, error)
	DonationStatus(ctx context.Context, donorID string) (eligibility.Status, error)
	Search(ctx context.Context, q models.SearchQuery, authenticated bool) (*models.SearchPage, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes for signed-in donors. The caller must apply
// authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/donors", h.handleRegister)
	r.Get("/me/profile", h.handleProfile)
	r.Put("/me/profile", h.handleUpdateProfile)
	r.Get("/me/donation-status", h.handleDonationStatus)
}

// RegisterSearch mounts donor search. Authentication is optional and widens
// what the caller can see.
func (h *Handler) RegisterSearch(r chi.Router) {
	r.Get("/donors/search", h.handleSearch)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	donor, created, err := h.service.Register(ctx, req)
	if err != nil {
		h.logFailure(ctx, "failed to register donor", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, donor)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	profile, err := h.service.Profile(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to load profile", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	donor, err := h.service.UpdateProfile(ctx, userID, req)
	if err != nil {
		h.logFailure(ctx, "failed to update profile", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donor)
}

func (h *Handler) handleDonationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	status, err := h.service.DonationStatus(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to load donation status", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	q, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		h.logFailure(ctx, "invalid search query", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}

	page, err := h.service.Search(ctx, q, requestcontext.Authenticated(ctx))
	if err != nil {
		h.logFailure(ctx, "failed to search donors", err, requestID, userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// parseSearchQuery reads bloodGroup, area, city, state, zone, page and limit.
// Page and limit are clamped by the service; here they only need to be numbers.
func parseSearchQuery(values url.Values) (models.SearchQuery, error) {
	q := models.SearchQuery{
		Area:  strings.TrimSpace(values.Get("area")),
		City:  strings.TrimSpace(values.Get("city")),
		State: strings.TrimSpace(values.Get("state")),
		Zone:  strings.TrimSpace(values.Get("zone")),
	}
	// An unescaped "+" in a query string decodes to a space.
	if raw := strings.TrimSpace(strings.ReplaceAll(values.Get("bloodGroup"), " ", "+")); raw != "" {
		group, err := domain.ParseBloodGroup(raw)
		if err != nil {
			return q, err
		}
		q.BloodGroup = &group
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{{"page", &q.Page}, {"limit", &q.Limit}} {
		raw := strings.TrimSpace(values.Get(f.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, dErrors.New(dErrors.CodeValidation, f.name+" must be a number")
		}
		*f.dst = n
	}
	return q, nil
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
