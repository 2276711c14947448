package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/httputil"
	"donorlink/pkg/requestcontext"
)

// Identity is the verified caller behind a bearer token.
type Identity struct {
	UserID      string
	PhoneNumber string
}

// Verifier validates bearer tokens issued by the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

const bearerPrefix = "Bearer "

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			identity, err := verifier.Verify(ctx, strings.TrimSpace(token))
			if err != nil || identity == nil || identity.UserID == "" {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithIdentity(ctx, identity.UserID, identity.PhoneNumber)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the caller identity when a valid token is present and
// otherwise lets the request through anonymously. An invalid token is treated
// as anonymous so public endpoints never fail on stale credentials.
func OptionalAuth(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if ok && strings.TrimSpace(token) != "" {
				identity, err := verifier.Verify(ctx, strings.TrimSpace(token))
				if err == nil && identity != nil && identity.UserID != "" {
					ctx = requestcontext.WithIdentity(ctx, identity.UserID, identity.PhoneNumber)
				} else {
					logger.DebugContext(ctx, "ignoring invalid optional token",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
