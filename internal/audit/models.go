package audit

import "time"

// Action names a state transition worth keeping a record of.
type Action string

const (
	ActionDonorRegistered       Action = "donor_registered"
	ActionProfileUpdated        Action = "profile_updated"
	ActionRequestAdmitted       Action = "request_admitted"
	ActionRequestRateLimited    Action = "request_rate_limited"
	ActionRequestCompleted      Action = "request_completed"
	ActionNotificationRead      Action = "notification_read"
	ActionNotificationResponded Action = "notification_responded"
	ActionDonationRecorded      Action = "donation_recorded"
	ActionPushSubscribed        Action = "push_subscribed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	// UserID is the acting identity; empty for anonymous callers.
	UserID string `json:"userId,omitempty"`
	// Subject is the entity acted on, e.g. a request or notification id.
	Subject   string `json:"subject,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}
