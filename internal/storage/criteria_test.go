package storage

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	donorModels "donorlink/internal/donor/models"
	"donorlink/pkg/domain"
)

func donor(id string, group domain.BloodGroup, city, state string) *donorModels.Donor {
	return &donorModels.Donor{
		ID:                id,
		BloodGroup:        group,
		Location:          donorModels.Location{Area: "Mirpur 10", City: city, State: state, Zone: "North"},
		IsActive:          true,
		ContactVisibility: donorModels.ContactPublic,
		ProfileVisibility: donorModels.ProfilePublic,
	}
}

func TestDonorCriteriaMatches(t *testing.T) {
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	cutoff := now.Add(-90 * 24 * time.Hour)

	t.Run("inactive never matches", func(t *testing.T) {
		d := donor("a", domain.ONegative, "Dhaka", "Dhaka")
		d.IsActive = false
		assert.False(t, DonorCriteria{}.Matches(d))
	})

	t.Run("group filter", func(t *testing.T) {
		c := DonorCriteria{Groups: []domain.BloodGroup{domain.ONegative}}
		assert.True(t, c.Matches(donor("a", domain.ONegative, "Dhaka", "Dhaka")))
		assert.False(t, c.Matches(donor("b", domain.APositive, "Dhaka", "Dhaka")))
	})

	t.Run("profile visibility filter", func(t *testing.T) {
		d := donor("a", domain.ONegative, "Dhaka", "Dhaka")
		d.ProfileVisibility = donorModels.ProfilePrivate
		assert.False(t, DonorCriteria{ProfileVisibilities: donorModels.DiscoverableProfiles(false)}.Matches(d))
		assert.True(t, DonorCriteria{ProfileVisibilities: donorModels.DiscoverableProfiles(true)}.Matches(d))
	})

	t.Run("eligibility cutoff is inclusive", func(t *testing.T) {
		c := DonorCriteria{EligibleCutoff: cutoff}
		d := donor("a", domain.ONegative, "Dhaka", "Dhaka")
		at := cutoff
		d.LastDonationAt = &at
		assert.True(t, c.Matches(d))

		later := cutoff.Add(time.Second)
		d.LastDonationAt = &later
		assert.False(t, c.Matches(d))
	})

	t.Run("location filters are case-insensitive substrings ANDed", func(t *testing.T) {
		d := donor("a", domain.ONegative, "Dhaka", "Dhaka Division")
		assert.True(t, DonorCriteria{City: "dhak", State: "division", Area: "mirpur"}.Matches(d))
		assert.False(t, DonorCriteria{City: "dhaka", State: "chittagong"}.Matches(d))
		assert.False(t, DonorCriteria{Zone: "south"}.Matches(d))
	})

	t.Run("city or state mode", func(t *testing.T) {
		d := donor("a", domain.ONegative, "Savar", "Dhaka")
		c := DonorCriteria{City: "Gazipur", State: "dhaka", MatchCityOrState: true}
		assert.True(t, c.Matches(d))
		c.State = "Sylhet"
		assert.False(t, c.Matches(d))
	})

	t.Run("exclusions", func(t *testing.T) {
		assert.False(t, DonorCriteria{ExcludeIDs: []string{"a"}}.Matches(donor("a", domain.ONegative, "Dhaka", "Dhaka")))
	})
}

func TestCompareDonorsOrdering(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older, newer := base, base.Add(24*time.Hour)

	never1 := donor("n1", domain.ONegative, "", "")
	never1.CreatedAt = base
	never2 := donor("n2", domain.ONegative, "", "")
	never2.CreatedAt = base.Add(time.Hour)
	donatedOld := donor("d1", domain.ONegative, "", "")
	donatedOld.LastDonationAt = &older
	donatedNew := donor("d2", domain.ONegative, "", "")
	donatedNew.LastDonationAt = &newer

	list := []*donorModels.Donor{donatedNew, never1, donatedOld, never2}
	slices.SortFunc(list, CompareDonors)

	ids := make([]string, len(list))
	for i, d := range list {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"n2", "n1", "d1", "d2"}, ids)
}
