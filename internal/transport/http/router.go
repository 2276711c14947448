// Package httptransport composes the module handlers into one chi router.
// Handlers own their routes; this package only decides which middleware
// guards which group.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	donationHandler "donorlink/internal/donation/handler"
	donorHandler "donorlink/internal/donor/handler"
	notificationHandler "donorlink/internal/notification/handler"
	"donorlink/internal/platform/metrics"
	requestHandler "donorlink/internal/request/handler"
	"donorlink/pkg/platform/httputil"
	authmw "donorlink/pkg/platform/middleware/auth"
	"donorlink/pkg/platform/middleware/logging"
	"donorlink/pkg/platform/middleware/metadata"
	"donorlink/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Logger        *slog.Logger
	Verifier      authmw.Verifier
	Metrics       *metrics.Metrics
	Donors        *donorHandler.Handler
	Requests      *requestHandler.Handler
	Notifications *notificationHandler.Handler
	Donations     *donationHandler.Handler
	HealthChecks  []HealthCheck
	// Clock overrides the per-request time, for tests.
	Clock func() time.Time
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)
	if d.Clock != nil {
		r.Use(requesttime.WithClock(d.Clock))
	} else {
		r.Use(requesttime.Middleware)
	}
	r.Use(logging.AccessLog(logger))
	r.Use(logging.Recovery(logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(d.HealthChecks, logger))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuth(d.Verifier, logger))
		if d.Donors != nil {
			d.Donors.RegisterSearch(r)
		}
		if d.Requests != nil {
			d.Requests.RegisterPublic(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Verifier, logger))
		if d.Donors != nil {
			d.Donors.Register(r)
		}
		if d.Requests != nil {
			d.Requests.Register(r)
		}
		if d.Notifications != nil {
			d.Notifications.Register(r)
		}
		if d.Donations != nil {
			d.Donations.Register(r)
		}
	})

	return r
}

func healthHandler(checks []HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", c.Name, "error", err)
				results[c.Name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "up"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}
