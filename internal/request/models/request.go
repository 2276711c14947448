package models

import (
	"time"

	"donorlink/pkg/domain"
	dErrors "donorlink/pkg/domain-errors"
)

// Urgency ranks how quickly blood is needed.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

var urgencyRank = map[Urgency]int{
	UrgencyLow:      1,
	UrgencyMedium:   2,
	UrgencyHigh:     3,
	UrgencyCritical: 4,
}

func (u Urgency) IsValid() bool {
	_, ok := urgencyRank[u]
	return ok
}

// Rank orders urgencies; critical is highest.
func (u Urgency) Rank() int {
	return urgencyRank[u]
}

// Status is the request lifecycle state.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// Hospital is an optional structured reference from the static directory.
type Hospital struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Zone    string `json:"zone,omitempty"`
	MapURL  string `json:"mapUrl,omitempty"`
}

// BloodRequest is a posted need for blood.
//
// Invariants:
//   - Status starts ACTIVE and moves to COMPLETED at most once
//   - CompletedAt is set if and only if Status is COMPLETED
//   - Only the requester may complete the request
type BloodRequest struct {
	ID                 string            `json:"id"`
	RequesterID        *string           `json:"requesterId"`
	RequesterName      string            `json:"requesterName"`
	RequesterPhone     string            `json:"requesterPhone"`
	BloodGroup         domain.BloodGroup `json:"bloodGroup"`
	Urgency            Urgency           `json:"urgency"`
	Location           string            `json:"location"`
	Hospital           *Hospital         `json:"hospital,omitempty"`
	Message            string            `json:"message,omitempty"`
	RequesterCity      string            `json:"requesterCity"`
	RequesterState     string            `json:"requesterState"`
	NotifyRadiusKm     int               `json:"notifyRadius"`
	NotifyAll          bool              `json:"notifyAll"`
	Status             Status            `json:"status"`
	CreatedAt          time.Time         `json:"createdAt"`
	CompletedAt        *time.Time        `json:"completedAt"`
	CompletedByDonorID *string           `json:"completedByDonorId"`
}

func (r *BloodRequest) IsCompleted() bool {
	return r.Status == StatusCompleted
}

// IsRequester reports whether userID posted this request. Legacy requests
// without a requester match nobody.
func (r *BloodRequest) IsRequester(userID string) bool {
	return r.RequesterID != nil && userID != "" && *r.RequesterID == userID
}

// CanComplete checks the one-way ACTIVE -> COMPLETED transition for userID.
func (r *BloodRequest) CanComplete(userID string) error {
	if !r.IsRequester(userID) {
		return dErrors.New(dErrors.CodeForbidden, "only the requester can complete this request")
	}
	if r.IsCompleted() {
		return dErrors.New(dErrors.CodeAlreadyCompleted, "request is already completed")
	}
	return nil
}

// ApplyCompletion marks the request fulfilled. Call CanComplete first.
func (r *BloodRequest) ApplyCompletion(donorID *string, now time.Time) {
	t := now
	r.Status = StatusCompleted
	r.CompletedAt = &t
	r.CompletedByDonorID = donorID
}

// CreateResult is returned by request creation.
type CreateResult struct {
	ID            string `json:"id"`
	NotifiedCount int    `json:"notifiedCount"`
}
