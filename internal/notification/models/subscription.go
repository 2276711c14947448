package models

import (
	"net/url"
	"strings"
	"time"

	dErrors "donorlink/pkg/domain-errors"
)

// PushSubscription is a browser push endpoint owned by a user.
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubscribeRequest is the body of POST /me/push-subscriptions, in the shape
// browsers produce from PushSubscription.toJSON().
type SubscribeRequest struct {
	Endpoint       string `json:"endpoint"`
	ExpirationTime *int64 `json:"expirationTime,omitempty"`
	Keys           struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (r *SubscribeRequest) Normalize() {
	r.Endpoint = strings.TrimSpace(r.Endpoint)
	r.Keys.P256dh = strings.TrimSpace(r.Keys.P256dh)
	r.Keys.Auth = strings.TrimSpace(r.Keys.Auth)
}

func (r *SubscribeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	u, err := url.Parse(r.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "endpoint must be an https URL")
	}
	if len(r.Endpoint) > 2048 {
		return dErrors.New(dErrors.CodeValidation, "endpoint is too long")
	}
	if r.Keys.P256dh == "" || r.Keys.Auth == "" {
		return dErrors.New(dErrors.CodeValidation, "keys.p256dh and keys.auth are required")
	}
	return nil
}

// RespondRequest is the body of POST /notifications/{id}/respond.
type RespondRequest struct {
	Response string `json:"response"`

	parsed Response
}

func (r *RespondRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	resp, err := ParseResponse(r.Response)
	if err != nil {
		return err
	}
	r.parsed = resp
	return nil
}

func (r *RespondRequest) ParsedResponse() Response {
	return r.parsed
}
