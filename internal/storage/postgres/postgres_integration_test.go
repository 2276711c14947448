//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"donorlink/internal/admission"
	donationModels "donorlink/internal/donation/models"
	donorModels "donorlink/internal/donor/models"
	notificationModels "donorlink/internal/notification/models"
	requestModels "donorlink/internal/request/models"
	"donorlink/internal/storage"
	"donorlink/internal/storage/postgres"
	"donorlink/pkg/domain"
	"donorlink/pkg/platform/sentinel"
	"donorlink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	uow      *postgres.DB
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.uow = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	err := s.postgres.TruncateTables(context.Background(),
		"notifications", "donations", "blood_requests", "request_throttles", "push_subscriptions", "donors")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedDonor(id string, group domain.BloodGroup, city string) *donorModels.Donor {
	d, err := donorModels.NewDonor(id, "+880"+id, "Donor "+id, group,
		donorModels.Location{Area: "Mirpur", City: city, State: "Dhaka"}, donorModels.ContactPublic, donorModels.ProfilePublic, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.uow.Stores().Donors.Create(context.Background(), d))
	return d
}

func (s *PostgresStoreSuite) seedRequest(id string) *requestModels.BloodRequest {
	requester := "requester"
	r := &requestModels.BloodRequest{
		ID: id, RequesterID: &requester, RequesterName: "Karim", RequesterPhone: "01700000000",
		BloodGroup: domain.ABPositive, Urgency: requestModels.UrgencyHigh, Location: "Dhaka Medical",
		Hospital:      &requestModels.Hospital{Name: "DMCH", Zone: "Central"},
		RequesterCity: "Dhaka", RequesterState: "Dhaka", NotifyRadiusKm: 10,
		Status: requestModels.StatusActive, CreatedAt: s.now,
	}
	s.Require().NoError(s.uow.Stores().Requests.Create(context.Background(), r))
	return r
}

func (s *PostgresStoreSuite) TestDonorSearchMatchesInMemoryPredicate() {
	ctx := context.Background()
	s.seedDonor("a", domain.ONegative, "Dhaka")
	s.seedDonor("b", domain.APositive, "Dhaka")
	s.seedDonor("c", domain.ONegative, "Sylhet")
	recent := s.now.Add(-time.Hour)
	s.Require().NoError(s.uow.Stores().Donors.SetLastDonation(ctx, "a", recent))

	c := storage.DonorCriteria{
		Groups:         []domain.BloodGroup{domain.ONegative},
		City:           "dhak",
		EligibleCutoff: s.now.Add(-90 * 24 * time.Hour),
	}
	got, err := s.uow.Stores().Donors.Search(ctx, c)
	s.Require().NoError(err)
	s.Empty(got, "a is in cooldown, b is the wrong group, c is in another city")

	c.EligibleCutoff = time.Time{}
	got, err = s.uow.Stores().Donors.Search(ctx, c)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("a", got[0].ID)

	total, err := s.uow.Stores().Donors.Count(ctx, storage.DonorCriteria{})
	s.Require().NoError(err)
	s.Equal(3, total)
}

func (s *PostgresStoreSuite) TestDuplicatePhoneIsConflict() {
	s.seedDonor("a", domain.ONegative, "Dhaka")
	d, err := donorModels.NewDonor("other", "+880a", "Dup", domain.ONegative, donorModels.Location{}, "", "", s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.uow.Stores().Donors.Create(context.Background(), d), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFanOutInsertIsIdempotent() {
	ctx := context.Background()
	s.seedDonor("a", domain.ONegative, "Dhaka")
	s.seedDonor("b", domain.ONegative, "Dhaka")
	s.seedRequest("r1")

	batch := func() []*notificationModels.Notification {
		return []*notificationModels.Notification{
			notificationModels.NewNotification(uuid.NewString(), "r1", "a", s.now),
			notificationModels.NewNotification(uuid.NewString(), "r1", "b", s.now),
		}
	}
	first, err := s.uow.Stores().Notifications.InsertBatch(ctx, batch())
	s.Require().NoError(err)
	s.Len(first, 2)

	second, err := s.uow.Stores().Notifications.InsertBatch(ctx, batch())
	s.Require().NoError(err)
	s.Empty(second)

	inbox, err := s.uow.Stores().Notifications.ListByDonor(ctx, "a", 50)
	s.Require().NoError(err)
	s.Len(inbox, 1)
}

func (s *PostgresStoreSuite) TestRespondAndComplete() {
	ctx := context.Background()
	s.seedDonor("a", domain.ONegative, "Dhaka")
	s.seedRequest("r1")
	inserted, err := s.uow.Stores().Notifications.InsertBatch(ctx, []*notificationModels.Notification{
		notificationModels.NewNotification("n1", "r1", "a", s.now),
	})
	s.Require().NoError(err)
	s.Require().Len(inserted, 1)

	notifications := s.uow.Stores().Notifications
	s.Require().NoError(notifications.Respond(ctx, "n1", notificationModels.ResponseAccepted, s.now.Add(time.Minute)))
	s.ErrorIs(notifications.Respond(ctx, "n1", notificationModels.ResponseDeclined, s.now.Add(2*time.Minute)), sentinel.ErrInvalidState)
	s.ErrorIs(notifications.Respond(ctx, "missing", notificationModels.ResponseDeclined, s.now), sentinel.ErrNotFound)

	n, err := notifications.FindByID(ctx, "n1")
	s.Require().NoError(err)
	s.Require().NotNil(n.ReadAt)
	s.Equal(notificationModels.DeliveryResponded, n.Status)

	donor := "a"
	requests := s.uow.Stores().Requests
	s.Require().NoError(requests.Complete(ctx, "r1", &donor, s.now))
	s.ErrorIs(requests.Complete(ctx, "r1", nil, s.now), sentinel.ErrInvalidState)

	r, err := requests.FindByID(ctx, "r1")
	s.Require().NoError(err)
	s.Equal(requestModels.StatusCompleted, r.Status)
	s.Require().NotNil(r.Hospital)
	s.Equal("DMCH", r.Hospital.Name)
	s.Require().NotNil(r.CompletedByDonorID)
	s.Equal("a", *r.CompletedByDonorID)
}

func (s *PostgresStoreSuite) TestDonationTransactionRollsBack() {
	ctx := context.Background()
	s.seedDonor("a", domain.ONegative, "Dhaka")

	err := s.uow.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		if err := st.Donations.Append(ctx, &donationModels.Donation{ID: "x", DonorID: "a", DonatedAt: s.now}); err != nil {
			return err
		}
		return st.Donors.SetLastDonation(ctx, "missing", s.now)
	})
	s.ErrorIs(err, sentinel.ErrNotFound)

	list, err := s.uow.Stores().Donations.ListByDonor(ctx, "a", 10)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *PostgresStoreSuite) TestConcurrentAdmissionsSerializeOnThrottleRow() {
	ctx := context.Background()
	policy := admission.NewPolicy(3, time.Hour)
	s.Require().NoError(s.uow.Stores().Throttles.Put(ctx, admission.ThrottleState{RequesterID: "u1", WindowResetAt: s.now.Add(time.Hour)}))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.uow.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
				cur, err := st.Throttles.Get(ctx, "u1")
				if err != nil {
					return err
				}
				next, decision := policy.Admit(*cur, s.now)
				if !decision.Allowed {
					return nil
				}
				if err := st.Throttles.Put(ctx, next); err != nil {
					return err
				}
				mu.Lock()
				allowed++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	s.Equal(3, allowed)
}
