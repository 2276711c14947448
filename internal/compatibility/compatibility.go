// Package compatibility holds the ABO/Rh red-cell compatibility matrix.
//
// The table is keyed by the recipient (requested) group and lists every donor
// group that may satisfy it. O_NEGATIVE appears in every row; the AB_POSITIVE
// row lists all eight groups.
package compatibility

import "donorlink/pkg/domain"

var donorsFor = map[domain.BloodGroup][]domain.BloodGroup{
	domain.APositive:  {domain.APositive, domain.ANegative, domain.OPositive, domain.ONegative},
	domain.ANegative:  {domain.ANegative, domain.ONegative},
	domain.BPositive:  {domain.BPositive, domain.BNegative, domain.OPositive, domain.ONegative},
	domain.BNegative:  {domain.BNegative, domain.ONegative},
	domain.ABPositive: domain.AllBloodGroups(),
	domain.ABNegative: {domain.ANegative, domain.BNegative, domain.ABNegative, domain.ONegative},
	domain.OPositive:  {domain.OPositive, domain.ONegative},
	domain.ONegative:  {domain.ONegative},
}

// CompatibleDonorGroups returns the donor groups that can give to a recipient
// of the requested group. The result is a fresh slice the caller may modify.
// An unknown group yields an empty slice.
func CompatibleDonorGroups(requested domain.BloodGroup) []domain.BloodGroup {
	groups := donorsFor[requested]
	out := make([]domain.BloodGroup, len(groups))
	copy(out, groups)
	return out
}

// CanDonate reports whether a donor of group donor may give to recipient.
func CanDonate(donor, recipient domain.BloodGroup) bool {
	for _, g := range donorsFor[recipient] {
		if g == donor {
			return true
		}
	}
	return false
}
