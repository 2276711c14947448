package storage

import (
	"slices"
	"strings"
	"time"

	donorModels "donorlink/internal/donor/models"
	"donorlink/pkg/domain"
)

// DonorCriteria is the predicate shared by search and fan-out. Only active
// donors ever match.
type DonorCriteria struct {
	// Groups restricts blood groups; empty means any group.
	Groups []domain.BloodGroup

	// Location filters are case-insensitive substring matches, ANDed together.
	Area  string
	City  string
	State string
	Zone  string

	// MatchCityOrState relaxes City and State into "city OR state".
	MatchCityOrState bool

	// ProfileVisibilities lists the profile settings the caller may see.
	ProfileVisibilities []donorModels.ProfileVisibility

	// EligibleCutoff keeps donors whose last donation is at or before it.
	// The zero value disables the filter.
	EligibleCutoff time.Time

	ExcludeIDs []string

	Offset int
	Limit  int
}

// Matches evaluates the predicate in memory.
func (c DonorCriteria) Matches(d *donorModels.Donor) bool {
	if !d.IsActive {
		return false
	}
	if len(c.Groups) > 0 && !slices.Contains(c.Groups, d.BloodGroup) {
		return false
	}
	if len(c.ProfileVisibilities) > 0 && !slices.Contains(c.ProfileVisibilities, d.ProfileVisibility) {
		return false
	}
	if !c.EligibleCutoff.IsZero() && d.LastDonationAt != nil && d.LastDonationAt.After(c.EligibleCutoff) {
		return false
	}
	if slices.Contains(c.ExcludeIDs, d.ID) {
		return false
	}
	if !containsFold(d.Location.Area, c.Area) || !containsFold(d.Location.Zone, c.Zone) {
		return false
	}
	if c.MatchCityOrState && (c.City != "" || c.State != "") {
		cityHit := c.City != "" && containsFold(d.Location.City, c.City)
		stateHit := c.State != "" && containsFold(d.Location.State, c.State)
		return cityHit || stateHit
	}
	return containsFold(d.Location.City, c.City) && containsFold(d.Location.State, c.State)
}

// CompareDonors is the ranking order: never-donated first, then oldest last
// donation, then newest registration, then ID for determinism.
func CompareDonors(a, b *donorModels.Donor) int {
	switch {
	case a.LastDonationAt == nil && b.LastDonationAt != nil:
		return -1
	case a.LastDonationAt != nil && b.LastDonationAt == nil:
		return 1
	case a.LastDonationAt != nil && b.LastDonationAt != nil:
		if c := a.LastDonationAt.Compare(*b.LastDonationAt); c != 0 {
			return c
		}
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func containsFold(value, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}
