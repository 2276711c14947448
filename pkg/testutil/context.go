package testutil

import (
	"net/http"

	"donorlink/pkg/requestcontext"
)

// WithIdentity attaches a verified caller to the request, as the auth
// middleware would after checking a bearer token.
func WithIdentity(req *http.Request, userID, phoneNumber string) *http.Request {
	return req.WithContext(requestcontext.WithIdentity(req.Context(), userID, phoneNumber))
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
