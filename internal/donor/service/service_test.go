package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"donorlink/internal/audit"
	donationModels "donorlink/internal/donation/models"
	"donorlink/internal/donor/cache"
	"donorlink/internal/donor/models"
	"donorlink/internal/eligibility"
	"donorlink/internal/storage/memory"
	"donorlink/pkg/domain"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/requestcontext"
)

type DonorServiceSuite struct {
	suite.Suite
	db      *memory.DB
	audit   *audit.InMemoryStore
	service *Service
	now     time.Time
}

func TestDonorServiceSuite(t *testing.T) {
	suite.Run(t, new(DonorServiceSuite))
}

func (s *DonorServiceSuite) SetupTest() {
	s.db = memory.New()
	s.audit = audit.NewInMemoryStore()
	s.now = time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	svc, err := New(s.db, eligibility.New(eligibility.DefaultCooldown),
		WithAuditPublisher(audit.NewPublisher(s.audit)))
	s.Require().NoError(err)
	s.service = svc
}

func (s *DonorServiceSuite) identity(userID, phone string) context.Context {
	return requestcontext.WithTime(requestcontext.WithIdentity(context.Background(), userID, phone), s.now)
}

func registerRequest(group string) *models.RegisterRequest {
	req := &models.RegisterRequest{Name: "Karim", BloodGroup: group, Area: "Mirpur", City: "Dhaka", State: "Dhaka Division"}
	req.Normalize()
	if err := req.Validate(); err != nil {
		panic(err)
	}
	return req
}

func (s *DonorServiceSuite) seed(id string, group domain.BloodGroup, contact models.ContactVisibility, profile models.ProfileVisibility, mutate ...func(*models.Donor)) {
	d, err := models.NewDonor(id, "+880"+id, "Donor "+id, group,
		models.Location{Area: "Mirpur", City: "Dhaka", State: "Dhaka Division"}, contact, profile, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	for _, m := range mutate {
		m(d)
	}
	s.Require().NoError(s.db.Stores().Donors.Create(context.Background(), d))
}

func (s *DonorServiceSuite) TestRegister() {
	s.Run("creates with defaults from token identity", func() {
		d, created, err := s.service.Register(s.identity("u1", "+8801700000001"), registerRequest("O-"))
		s.Require().NoError(err)
		s.True(created)
		s.Equal("u1", d.ID)
		s.Equal("+8801700000001", d.PhoneNumber)
		s.Equal(models.ContactRestricted, d.ContactVisibility)
		s.Equal(models.ProfilePublic, d.ProfileVisibility)
		s.True(d.IsActive)
	})

	s.Run("same identity returns existing", func() {
		d, created, err := s.service.Register(s.identity("u1", "+8801700000001"), registerRequest("A+"))
		s.Require().NoError(err)
		s.False(created)
		s.Equal(domain.ONegative, d.BloodGroup)
	})

	s.Run("phone bound to another id conflicts", func() {
		_, _, err := s.service.Register(s.identity("u2", "+8801700000001"), registerRequest("A+"))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing phone claim", func() {
		_, _, err := s.service.Register(s.identity("u3", ""), registerRequest("A+"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	events, err := s.audit.ListByUser(context.Background(), "u1", 10)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *DonorServiceSuite) TestDonationStatusBoundary() {
	t0 := s.now.Add(-90 * 24 * time.Hour)
	s.seed("y", domain.ONegative, models.ContactPublic, models.ProfilePublic, func(d *models.Donor) { d.LastDonationAt = &t0 })

	status, err := s.service.DonationStatus(s.identity("y", "+880y"), "y")
	s.Require().NoError(err)
	s.True(status.CanDonate)
	s.Zero(status.DaysUntilCanDonate)

	ctx := requestcontext.WithTime(context.Background(), s.now.Add(-24*time.Hour))
	status, err = s.service.DonationStatus(ctx, "y")
	s.Require().NoError(err)
	s.False(status.CanDonate)
	s.Equal(1, status.DaysUntilCanDonate)

	_, err = s.service.DonationStatus(ctx, "nobody")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DonorServiceSuite) TestProfileIncludesRecentDonations() {
	s.seed("y", domain.ONegative, models.ContactPublic, models.ProfilePublic)
	for i := range 12 {
		s.Require().NoError(s.db.Stores().Donations.Append(context.Background(), &donationModels.Donation{
			ID: fmt.Sprintf("d%d", i), DonorID: "y", DonatedAt: s.now.Add(-time.Duration(400-i) * 24 * time.Hour),
		}))
	}

	p, err := s.service.Profile(s.identity("y", "+880y"), "y")
	s.Require().NoError(err)
	s.Equal("y", p.User.ID)
	s.Len(p.Donations, 10)
	s.Equal("d11", p.Donations[0].ID)
	s.True(p.Eligibility.CanDonate)
}

func (s *DonorServiceSuite) TestUpdateProfileKeepsImmutableFields() {
	s.seed("y", domain.ONegative, models.ContactPublic, models.ProfilePublic)
	name, private := "Renamed", "PRIVATE"
	req := &models.UpdateProfileRequest{Name: &name, ContactVisibility: &private}
	req.Normalize()
	s.Require().NoError(req.Validate())

	d, err := s.service.UpdateProfile(s.identity("y", "+880y"), "y", req)
	s.Require().NoError(err)
	s.Equal("Renamed", d.Name)
	s.Equal(models.ContactPrivate, d.ContactVisibility)

	stored, err := s.db.Stores().Donors.FindByID(context.Background(), "y")
	s.Require().NoError(err)
	s.Equal("+880y", stored.PhoneNumber)
	s.Equal(domain.ONegative, stored.BloodGroup)
	s.Equal(models.ContactPrivate, stored.ContactVisibility)
}

func (s *DonorServiceSuite) TestSearchUniversalDonorWithVisiblePhone() {
	s.seed("x", domain.ONegative, models.ContactPublic, models.ProfilePublic)
	group := domain.ABPositive

	page, err := s.service.Search(s.identity("", ""), models.SearchQuery{BloodGroup: &group, City: "dhaka"}, false)
	s.Require().NoError(err)
	s.Require().Len(page.Users, 1)
	s.Equal("x", page.Users[0].ID)
	s.Equal("+880x", page.Users[0].PhoneNumber)
	s.True(page.Users[0].ContactVisible)
}

func (s *DonorServiceSuite) TestSearchVisibilityRules() {
	s.seed("public", domain.ONegative, models.ContactPublic, models.ProfilePublic)
	s.seed("restricted", domain.ONegative, models.ContactRestricted, models.ProfilePublic)
	s.seed("private-contact", domain.ONegative, models.ContactPrivate, models.ProfilePublic)
	s.seed("private-profile", domain.ONegative, models.ContactPublic, models.ProfilePrivate)

	phones := func(p *models.SearchPage) map[string]string {
		out := map[string]string{}
		for _, u := range p.Users {
			out[u.ID] = u.PhoneNumber
		}
		return out
	}

	s.Run("anonymous", func() {
		page, err := s.service.Search(s.identity("", ""), models.SearchQuery{}, false)
		s.Require().NoError(err)
		got := phones(page)
		s.NotContains(got, "private-profile")
		s.Equal("+880public", got["public"])
		s.Empty(got["restricted"])
		s.Empty(got["private-contact"])
	})

	s.Run("authenticated", func() {
		page, err := s.service.Search(s.identity("u", "+1"), models.SearchQuery{}, true)
		s.Require().NoError(err)
		got := phones(page)
		s.Contains(got, "private-profile")
		s.Equal("+880restricted", got["restricted"])
		s.Empty(got["private-contact"])
	})
}

func (s *DonorServiceSuite) TestSearchExcludesIneligibleAndInactive() {
	recent := s.now.Add(-10 * 24 * time.Hour)
	s.seed("cooldown", domain.ONegative, models.ContactPublic, models.ProfilePublic, func(d *models.Donor) { d.LastDonationAt = &recent })
	s.seed("inactive", domain.ONegative, models.ContactPublic, models.ProfilePublic, func(d *models.Donor) { d.IsActive = false })
	s.seed("ok", domain.ONegative, models.ContactPublic, models.ProfilePublic)

	page, err := s.service.Search(s.identity("", ""), models.SearchQuery{}, false)
	s.Require().NoError(err)
	s.Require().Len(page.Users, 1)
	s.Equal("ok", page.Users[0].ID)
}

func (s *DonorServiceSuite) TestSearchPaginationIsClamped() {
	for i := range 60 {
		s.seed(fmt.Sprintf("d%02d", i), domain.OPositive, models.ContactPublic, models.ProfilePublic)
	}

	page, err := s.service.Search(s.identity("", ""), models.SearchQuery{Page: 0, Limit: 500}, false)
	s.Require().NoError(err)
	s.Equal(1, page.Page)
	s.Equal(50, page.Limit)
	s.Len(page.Users, 50)
	s.Equal(60, page.TotalCount)
	s.Equal(2, page.TotalPages)
	s.True(page.HasNextPage)
	s.False(page.HasPreviousPage)

	page, err = s.service.Search(s.identity("", ""), models.SearchQuery{Page: 2, Limit: 50}, false)
	s.Require().NoError(err)
	s.Len(page.Users, 10)
	s.False(page.HasNextPage)

	page, err = s.service.Search(s.identity("", ""), models.SearchQuery{}, false)
	s.Require().NoError(err)
	s.Equal(DefaultPageSize, page.Limit)
}

func (s *DonorServiceSuite) TestSearchHugePageIsEmpty() {
	s.seed("only", domain.OPositive, models.ContactPublic, models.ProfilePublic)

	page, err := s.service.Search(s.identity("", ""), models.SearchQuery{Page: math.MaxInt, Limit: 20}, false)
	s.Require().NoError(err)
	s.Empty(page.Users)
	s.Equal(1, page.TotalCount)
	s.Equal(math.MaxInt/DefaultMaxPageSize, page.Page)
	s.False(page.HasNextPage)
}

func (s *DonorServiceSuite) TestSearchCacheSeparatesAuthState() {
	c := cache.NewMemory(time.Minute, 10)
	svc, err := New(s.db, eligibility.New(0), WithCache(c))
	s.Require().NoError(err)
	s.seed("private-profile", domain.ONegative, models.ContactPublic, models.ProfilePrivate)

	anon, err := svc.Search(s.identity("", ""), models.SearchQuery{}, false)
	s.Require().NoError(err)
	s.Empty(anon.Users)

	authed, err := svc.Search(s.identity("u", "+1"), models.SearchQuery{}, true)
	s.Require().NoError(err)
	s.Len(authed.Users, 1)
	s.Equal(2, c.Len())

	s.seed("late", domain.ONegative, models.ContactPublic, models.ProfilePublic)
	cached, err := svc.Search(s.identity("", ""), models.SearchQuery{}, false)
	s.Require().NoError(err)
	s.Empty(cached.Users, "second anonymous search is served from cache")
}
