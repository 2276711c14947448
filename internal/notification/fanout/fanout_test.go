package fanout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	donorModels "donorlink/internal/donor/models"
	"donorlink/internal/eligibility"
	requestModels "donorlink/internal/request/models"
	"donorlink/internal/storage/memory"
	"donorlink/pkg/domain"
)

type FanOutSuite struct {
	suite.Suite
	db     *memory.DB
	engine *Engine
	now    time.Time
	seq    int
}

func TestFanOutSuite(t *testing.T) {
	suite.Run(t, new(FanOutSuite))
}

func (s *FanOutSuite) SetupTest() {
	s.db = memory.New()
	s.seq = 0
	s.engine = New(eligibility.New(eligibility.DefaultCooldown),
		WithIDGenerator(func() string { s.seq++; return fmt.Sprintf("n-%d", s.seq) }))
	s.now = time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
}

func (s *FanOutSuite) addDonor(id string, group domain.BloodGroup, city, state string, mutate ...func(*donorModels.Donor)) {
	d, err := donorModels.NewDonor(id, "+880"+id, id, group,
		donorModels.Location{City: city, State: state}, donorModels.ContactPublic, donorModels.ProfilePublic, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	for _, m := range mutate {
		m(d)
	}
	s.Require().NoError(s.db.Stores().Donors.Create(context.Background(), d))
}

func (s *FanOutSuite) request(group domain.BloodGroup) *requestModels.BloodRequest {
	requester := "requester"
	return &requestModels.BloodRequest{
		ID: "r1", RequesterID: &requester, BloodGroup: group,
		RequesterCity: "Dhaka", RequesterState: "Dhaka Division",
		Status: requestModels.StatusActive, CreatedAt: s.now,
	}
}

func donorIDs(s *FanOutSuite, req *requestModels.BloodRequest) []string {
	list, err := s.engine.FanOut(context.Background(), s.db.Stores(), req)
	s.Require().NoError(err)
	ids := make([]string, len(list))
	for i, n := range list {
		ids[i] = n.DonorID
	}
	return ids
}

func (s *FanOutSuite) TestUniversalDonorReachesUniversalRecipient() {
	s.addDonor("x", domain.ONegative, "Dhaka", "Dhaka Division")
	s.Equal([]string{"x"}, donorIDs(s, s.request(domain.ABPositive)))
}

func (s *FanOutSuite) TestFiltersIncompatibleIneligibleAndInactive() {
	recent := s.now.Add(-30 * 24 * time.Hour)
	old := s.now.Add(-90 * 24 * time.Hour)

	s.addDonor("compatible", domain.ONegative, "Dhaka", "")
	s.addDonor("wrong-group", domain.APositive, "Dhaka", "")
	s.addDonor("cooldown", domain.ONegative, "Dhaka", "", func(d *donorModels.Donor) { d.LastDonationAt = &recent })
	s.addDonor("boundary", domain.ONegative, "Dhaka", "", func(d *donorModels.Donor) { d.LastDonationAt = &old })
	s.addDonor("inactive", domain.ONegative, "Dhaka", "", func(d *donorModels.Donor) { d.IsActive = false })
	s.addDonor("private", domain.ONegative, "Dhaka", "", func(d *donorModels.Donor) { d.ProfileVisibility = donorModels.ProfilePrivate })
	s.addDonor("requester", domain.ONegative, "Dhaka", "")

	s.ElementsMatch([]string{"compatible", "boundary", "private"}, donorIDs(s, s.request(domain.ONegative)))
}

func (s *FanOutSuite) TestLocationIsCityOrState() {
	s.addDonor("city", domain.ONegative, "Dhaka", "Elsewhere")
	s.addDonor("state", domain.ONegative, "Gazipur", "Dhaka Division")
	s.addDonor("far", domain.ONegative, "Sylhet", "Sylhet Division")

	s.ElementsMatch([]string{"city", "state"}, donorIDs(s, s.request(domain.ONegative)))
}

func (s *FanOutSuite) TestNotifyAllBypassesLocation() {
	s.addDonor("far", domain.ONegative, "Sylhet", "Sylhet Division")
	req := s.request(domain.ONegative)
	req.NotifyAll = true
	s.Equal([]string{"far"}, donorIDs(s, req))
}

func (s *FanOutSuite) TestSecondRunCreatesNothing() {
	s.addDonor("a", domain.ONegative, "Dhaka", "")
	s.addDonor("b", domain.ONegative, "Dhaka", "")
	req := s.request(domain.ONegative)

	s.Len(donorIDs(s, req), 2)
	s.Empty(donorIDs(s, req))

	inbox, err := s.db.Stores().Notifications.ListByDonor(context.Background(), "a", 10)
	s.Require().NoError(err)
	s.Len(inbox, 1)
}

func (s *FanOutSuite) TestCeilingBoundsBlastRadius() {
	for i := range 5 {
		s.addDonor(fmt.Sprintf("d%d", i), domain.ONegative, "Dhaka", "")
	}
	s.engine = New(eligibility.New(0), WithCeiling(3))
	s.Len(donorIDs(s, s.request(domain.ONegative)), 3)
}

func (s *FanOutSuite) TestNotificationsStartSent() {
	s.addDonor("a", domain.ONegative, "Dhaka", "")
	list, err := s.engine.FanOut(context.Background(), s.db.Stores(), s.request(domain.ONegative))
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(s.now, list[0].SentAt)
	s.Nil(list[0].ReadAt)
	s.Nil(list[0].Response)
}
