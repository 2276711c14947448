package models

import (
	"strings"
	"time"

	requestModels "donorlink/internal/request/models"
	dErrors "donorlink/pkg/domain-errors"
)

// Response is the donor's answer to a blood request.
type Response string

const (
	ResponseAccepted Response = "ACCEPTED"
	ResponseDeclined Response = "DECLINED"
)

func (r Response) IsValid() bool {
	return r == ResponseAccepted || r == ResponseDeclined
}

// ParseResponse accepts the response case-insensitively.
func ParseResponse(s string) (Response, error) {
	r := Response(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "response must be ACCEPTED or DECLINED")
	}
	return r, nil
}

// DeliveryStatus tracks where a notification is in its lifecycle.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "SENT"
	DeliveryResponded DeliveryStatus = "RESPONDED"
)

// Notification tells one donor about one blood request.
//
// Invariants:
//   - At most one notification exists per (BloodRequestID, DonorID)
//   - RespondedAt set implies Response set and Status RESPONDED
//   - ReadAt is never later than RespondedAt
//   - A response is final; a second one is rejected
type Notification struct {
	ID             string         `json:"id"`
	BloodRequestID string         `json:"bloodRequestId"`
	DonorID        string         `json:"donorId"`
	SentAt         time.Time      `json:"sentAt"`
	ReadAt         *time.Time     `json:"readAt"`
	RespondedAt    *time.Time     `json:"respondedAt"`
	Response       *Response      `json:"response"`
	Status         DeliveryStatus `json:"deliveryStatus"`
}

// NewNotification builds a SENT notification.
func NewNotification(id, requestID, donorID string, now time.Time) *Notification {
	return &Notification{
		ID:             id,
		BloodRequestID: requestID,
		DonorID:        donorID,
		SentAt:         now,
		Status:         DeliverySent,
	}
}

// IsRecipient reports whether userID is the donor named on the notification.
func (n *Notification) IsRecipient(userID string) bool {
	return userID != "" && n.DonorID == userID
}

func (n *Notification) HasResponded() bool {
	return n.RespondedAt != nil
}

// ApplyRead stamps ReadAt once. Later reads keep the first timestamp.
func (n *Notification) ApplyRead(now time.Time) {
	if n.ReadAt == nil {
		t := now
		n.ReadAt = &t
	}
}

// CanRespond rejects a second response.
func (n *Notification) CanRespond() error {
	if n.HasResponded() {
		return dErrors.New(dErrors.CodeAlreadyResponded, "notification has already been responded to")
	}
	return nil
}

// ApplyResponse records the answer and back-fills ReadAt. Call CanRespond first.
func (n *Notification) ApplyResponse(resp Response, now time.Time) {
	n.ApplyRead(now)
	t := now
	r := resp
	n.RespondedAt = &t
	n.Response = &r
	n.Status = DeliveryResponded
}

// InboxEntry pairs a notification with its blood request.
type InboxEntry struct {
	*Notification
	BloodRequest *requestModels.BloodRequest `json:"bloodRequest"`
}
