package auth_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"donorlink/pkg/platform/middleware/auth"
	"donorlink/pkg/platform/middleware/auth/mocks"
	"donorlink/pkg/requestcontext"
)

//go:generate mockgen -source=auth.go -destination=mocks/mocks.go -package=mocks Verifier

func TestOptionalAuthWithVerifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authenticated := func(t *testing.T, verifier auth.Verifier, header string) bool {
		t.Helper()
		var seen bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.Authenticated(r.Context())
		})
		req := httptest.NewRequest(http.MethodGet, "/donors/search", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		auth.OptionalAuth(verifier, logger)(next).ServeHTTP(httptest.NewRecorder(), req)
		return seen
	}

	t.Run("verified token marks the request authenticated", func(t *testing.T) {
		verifier := mocks.NewMockVerifier(gomock.NewController(t))
		verifier.EXPECT().Verify(gomock.Any(), "good").Return(&auth.Identity{UserID: "d1"}, nil)
		assert.True(t, authenticated(t, verifier, "Bearer good"))
	})

	t.Run("rejected token stays anonymous", func(t *testing.T) {
		verifier := mocks.NewMockVerifier(gomock.NewController(t))
		verifier.EXPECT().Verify(gomock.Any(), "bad").Return(nil, errors.New("signature"))
		assert.False(t, authenticated(t, verifier, "Bearer bad"))
	})

	t.Run("no header never calls the verifier", func(t *testing.T) {
		verifier := mocks.NewMockVerifier(gomock.NewController(t))
		assert.False(t, authenticated(t, verifier, ""))
	})
}
