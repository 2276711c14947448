package storage

import (
	"context"
	"time"

	"donorlink/internal/admission"
	donationModels "donorlink/internal/donation/models"
	donorModels "donorlink/internal/donor/models"
	notificationModels "donorlink/internal/notification/models"
	requestModels "donorlink/internal/request/models"
)

// Stores are interface-driven so services run unchanged against the in-memory
// and Postgres implementations. Every method returns pkg/platform/sentinel
// errors for expected outcomes (not found, conflict, invalid state).
type DonorStore interface {
	// Create fails with sentinel.ErrConflict when the ID or phone is taken.
	Create(ctx context.Context, donor *donorModels.Donor) error
	FindByID(ctx context.Context, id string) (*donorModels.Donor, error)
	FindByPhone(ctx context.Context, phone string) (*donorModels.Donor, error)
	Update(ctx context.Context, donor *donorModels.Donor) error
	SetLastDonation(ctx context.Context, id string, at time.Time) error
	Search(ctx context.Context, c DonorCriteria) ([]*donorModels.Donor, error)
	Count(ctx context.Context, c DonorCriteria) (int, error)
}

type ThrottleStore interface {
	// Get returns sentinel.ErrNotFound for a requester with no history.
	Get(ctx context.Context, requesterID string) (*admission.ThrottleState, error)
	Put(ctx context.Context, state admission.ThrottleState) error
}

type RequestStore interface {
	Create(ctx context.Context, req *requestModels.BloodRequest) error
	FindByID(ctx context.Context, id string) (*requestModels.BloodRequest, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*requestModels.BloodRequest, error)
	// Complete transitions an ACTIVE request. It returns sentinel.ErrInvalidState
	// when the request is no longer ACTIVE.
	Complete(ctx context.Context, id string, donorID *string, at time.Time) error
	ListActive(ctx context.Context, since time.Time, limit int) ([]*requestModels.BloodRequest, error)
}

type NotificationStore interface {
	// InsertBatch inserts every notification whose (request, donor) pair is new
	// and returns only those rows. Existing pairs are skipped silently.
	InsertBatch(ctx context.Context, batch []*notificationModels.Notification) ([]*notificationModels.Notification, error)
	FindByID(ctx context.Context, id string) (*notificationModels.Notification, error)
	// MarkRead sets read_at when unset.
	MarkRead(ctx context.Context, id string, at time.Time) error
	// Respond returns sentinel.ErrInvalidState when a response already exists.
	Respond(ctx context.Context, id string, resp notificationModels.Response, at time.Time) error
	ListByDonor(ctx context.Context, donorID string, limit int) ([]*notificationModels.Notification, error)
}

type DonationStore interface {
	Append(ctx context.Context, donation *donationModels.Donation) error
	ListByDonor(ctx context.Context, donorID string, limit int) ([]*donationModels.Donation, error)
}

type SubscriptionStore interface {
	// Upsert keys on the endpoint; a re-subscribing browser moves to the new user.
	Upsert(ctx context.Context, sub *notificationModels.PushSubscription) error
	ListByUsers(ctx context.Context, userIDs []string) ([]*notificationModels.PushSubscription, error)
}

// Stores bundles the repositories handed to a unit of work.
type Stores struct {
	Donors        DonorStore
	Throttles     ThrottleStore
	Requests      RequestStore
	Notifications NotificationStore
	Donations     DonationStore
	Subscriptions SubscriptionStore
}

// UnitOfWork runs a function against stores that commit or roll back together.
type UnitOfWork interface {
	Stores() Stores
	// RunInTx commits when fn returns nil and rolls back otherwise. The ctx
	// passed to fn must be used for every store call inside it.
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
