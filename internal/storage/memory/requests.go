package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	donationModels "donorlink/internal/donation/models"
	notificationModels "donorlink/internal/notification/models"
	requestModels "donorlink/internal/request/models"
	"donorlink/pkg/platform/sentinel"
)

type RequestStore struct {
	db *DB
}

func (s *RequestStore) Create(ctx context.Context, r *requestModels.BloodRequest) error {
	defer s.db.lock(ctx)()
	if _, ok := s.db.t.requests[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.db.t.requests[r.ID] = *r
	return nil
}

func (s *RequestStore) FindByID(ctx context.Context, id string) (*requestModels.BloodRequest, error) {
	defer s.db.rlock(ctx)()
	r, ok := s.db.t.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *RequestStore) FindByIDs(ctx context.Context, ids []string) (map[string]*requestModels.BloodRequest, error) {
	defer s.db.rlock(ctx)()
	out := make(map[string]*requestModels.BloodRequest, len(ids))
	for _, id := range ids {
		if r, ok := s.db.t.requests[id]; ok {
			out[id] = &r
		}
	}
	return out, nil
}

func (s *RequestStore) Complete(ctx context.Context, id string, donorID *string, at time.Time) error {
	defer s.db.lock(ctx)()
	r, ok := s.db.t.requests[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.IsCompleted() {
		return sentinel.ErrInvalidState
	}
	r.ApplyCompletion(donorID, at)
	s.db.t.requests[id] = r
	return nil
}

func (s *RequestStore) ListActive(ctx context.Context, since time.Time, limit int) ([]*requestModels.BloodRequest, error) {
	defer s.db.rlock(ctx)()
	var out []*requestModels.BloodRequest
	for _, r := range s.db.t.requests {
		if r.Status == requestModels.StatusActive && !r.CreatedAt.Before(since) {
			out = append(out, &r)
		}
	}
	slices.SortFunc(out, func(a, b *requestModels.BloodRequest) int {
		if c := cmp.Compare(b.Urgency.Rank(), a.Urgency.Rank()); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type NotificationStore struct {
	db *DB
}

func pairKey(requestID, donorID string) string {
	return requestID + "|" + donorID
}

func (s *NotificationStore) InsertBatch(ctx context.Context, batch []*notificationModels.Notification) ([]*notificationModels.Notification, error) {
	defer s.db.lock(ctx)()
	t := &s.db.t
	inserted := make([]*notificationModels.Notification, 0, len(batch))
	for _, n := range batch {
		key := pairKey(n.BloodRequestID, n.DonorID)
		if _, dup := t.pairs[key]; dup {
			continue
		}
		if _, dup := t.notifications[n.ID]; dup {
			return nil, sentinel.ErrConflict
		}
		t.notifications[n.ID] = *n
		t.pairs[key] = n.ID
		inserted = append(inserted, n)
	}
	return inserted, nil
}

func (s *NotificationStore) FindByID(ctx context.Context, id string) (*notificationModels.Notification, error) {
	defer s.db.rlock(ctx)()
	n, ok := s.db.t.notifications[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &n, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	defer s.db.lock(ctx)()
	n, ok := s.db.t.notifications[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	n.ApplyRead(at)
	s.db.t.notifications[id] = n
	return nil
}

func (s *NotificationStore) Respond(ctx context.Context, id string, resp notificationModels.Response, at time.Time) error {
	defer s.db.lock(ctx)()
	n, ok := s.db.t.notifications[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if n.HasResponded() {
		return sentinel.ErrInvalidState
	}
	n.ApplyResponse(resp, at)
	s.db.t.notifications[id] = n
	return nil
}

func (s *NotificationStore) ListByDonor(ctx context.Context, donorID string, limit int) ([]*notificationModels.Notification, error) {
	defer s.db.rlock(ctx)()
	var out []*notificationModels.Notification
	for _, n := range s.db.t.notifications {
		if n.DonorID == donorID {
			out = append(out, &n)
		}
	}
	slices.SortFunc(out, func(a, b *notificationModels.Notification) int {
		return b.SentAt.Compare(a.SentAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type DonationStore struct {
	db *DB
}

func (s *DonationStore) Append(ctx context.Context, d *donationModels.Donation) error {
	defer s.db.lock(ctx)()
	// Clone so a rolled-back snapshot never shares a backing array with new rows.
	s.db.t.donations[d.DonorID] = append(slices.Clone(s.db.t.donations[d.DonorID]), *d)
	return nil
}

func (s *DonationStore) ListByDonor(ctx context.Context, donorID string, limit int) ([]*donationModels.Donation, error) {
	defer s.db.rlock(ctx)()
	rows := s.db.t.donations[donorID]
	out := make([]*donationModels.Donation, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		d := rows[i]
		out = append(out, &d)
	}
	slices.SortStableFunc(out, func(a, b *donationModels.Donation) int {
		return b.DonatedAt.Compare(a.DonatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type SubscriptionStore struct {
	db *DB
}

func (s *SubscriptionStore) Upsert(ctx context.Context, sub *notificationModels.PushSubscription) error {
	defer s.db.lock(ctx)()
	if existing, ok := s.db.t.subscriptions[sub.Endpoint]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	s.db.t.subscriptions[sub.Endpoint] = *sub
	return nil
}

func (s *SubscriptionStore) ListByUsers(ctx context.Context, userIDs []string) ([]*notificationModels.PushSubscription, error) {
	defer s.db.rlock(ctx)()
	var out []*notificationModels.PushSubscription
	for _, sub := range s.db.t.subscriptions {
		if slices.Contains(userIDs, sub.UserID) {
			out = append(out, &sub)
		}
	}
	slices.SortFunc(out, func(a, b *notificationModels.PushSubscription) int {
		return cmp.Compare(a.Endpoint, b.Endpoint)
	})
	return out, nil
}
