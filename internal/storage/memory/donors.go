package memory

import (
	"context"
	"slices"
	"time"

	"donorlink/internal/admission"
	donorModels "donorlink/internal/donor/models"
	"donorlink/internal/storage"
	"donorlink/pkg/platform/sentinel"
)

type DonorStore struct {
	db *DB
}

func (s *DonorStore) Create(ctx context.Context, d *donorModels.Donor) error {
	defer s.db.lock(ctx)()
	t := &s.db.t
	if _, ok := t.donors[d.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := t.phones[d.PhoneNumber]; ok {
		return sentinel.ErrConflict
	}
	t.donors[d.ID] = *d
	t.phones[d.PhoneNumber] = d.ID
	return nil
}

func (s *DonorStore) FindByID(ctx context.Context, id string) (*donorModels.Donor, error) {
	defer s.db.rlock(ctx)()
	d, ok := s.db.t.donors[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &d, nil
}

func (s *DonorStore) FindByPhone(ctx context.Context, phone string) (*donorModels.Donor, error) {
	defer s.db.rlock(ctx)()
	id, ok := s.db.t.phones[phone]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	d := s.db.t.donors[id]
	return &d, nil
}

// Update overwrites mutable fields. Phone number and blood group are kept.
func (s *DonorStore) Update(ctx context.Context, d *donorModels.Donor) error {
	defer s.db.lock(ctx)()
	existing, ok := s.db.t.donors[d.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	updated := *d
	updated.PhoneNumber = existing.PhoneNumber
	updated.BloodGroup = existing.BloodGroup
	updated.CreatedAt = existing.CreatedAt
	updated.LastDonationAt = existing.LastDonationAt
	s.db.t.donors[d.ID] = updated
	return nil
}

func (s *DonorStore) SetLastDonation(ctx context.Context, id string, at time.Time) error {
	defer s.db.lock(ctx)()
	d, ok := s.db.t.donors[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	d.ApplyDonation(at)
	s.db.t.donors[id] = d
	return nil
}

func (s *DonorStore) Search(ctx context.Context, c storage.DonorCriteria) ([]*donorModels.Donor, error) {
	defer s.db.rlock(ctx)()
	matched := s.match(c)
	slices.SortFunc(matched, storage.CompareDonors)

	if c.Offset >= len(matched) {
		return []*donorModels.Donor{}, nil
	}
	matched = matched[max(c.Offset, 0):]
	if c.Limit > 0 && len(matched) > c.Limit {
		matched = matched[:c.Limit]
	}
	return matched, nil
}

func (s *DonorStore) Count(ctx context.Context, c storage.DonorCriteria) (int, error) {
	defer s.db.rlock(ctx)()
	return len(s.match(c)), nil
}

func (s *DonorStore) match(c storage.DonorCriteria) []*donorModels.Donor {
	var out []*donorModels.Donor
	for _, d := range s.db.t.donors {
		if c.Matches(&d) {
			out = append(out, &d)
		}
	}
	return out
}

type ThrottleStore struct {
	db *DB
}

func (s *ThrottleStore) Get(ctx context.Context, requesterID string) (*admission.ThrottleState, error) {
	defer s.db.rlock(ctx)()
	st, ok := s.db.t.throttles[requesterID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &st, nil
}

func (s *ThrottleStore) Put(ctx context.Context, state admission.ThrottleState) error {
	defer s.db.lock(ctx)()
	s.db.t.throttles[state.RequesterID] = state
	return nil
}
