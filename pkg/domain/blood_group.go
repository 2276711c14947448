package domain

import (
	"strings"

	dErrors "donorlink/pkg/domain-errors"
)

// BloodGroup is a domain value naming one of the eight ABO/Rh groups.
// Invariant: the value must be one of the constants below.
//
// Usage: construct via ParseBloodGroup at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type BloodGroup string

const (
	APositive  BloodGroup = "A_POSITIVE"
	ANegative  BloodGroup = "A_NEGATIVE"
	BPositive  BloodGroup = "B_POSITIVE"
	BNegative  BloodGroup = "B_NEGATIVE"
	ABPositive BloodGroup = "AB_POSITIVE"
	ABNegative BloodGroup = "AB_NEGATIVE"
	OPositive  BloodGroup = "O_POSITIVE"
	ONegative  BloodGroup = "O_NEGATIVE"
)

// bloodGroupDisplay is the single source of truth for valid blood groups.
var bloodGroupDisplay = map[BloodGroup]string{
	APositive:  "A+",
	ANegative:  "A-",
	BPositive:  "B+",
	BNegative:  "B-",
	ABPositive: "AB+",
	ABNegative: "AB-",
	OPositive:  "O+",
	ONegative:  "O-",
}

// AllBloodGroups returns the eight groups in a stable order.
func AllBloodGroups() []BloodGroup {
	return []BloodGroup{
		APositive, ANegative,
		BPositive, BNegative,
		ABPositive, ABNegative,
		OPositive, ONegative,
	}
}

// ParseBloodGroup constructs a BloodGroup from external input. It accepts the
// enum form ("O_NEGATIVE", case-insensitive) and the display form ("O-").
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseBloodGroup(s string) (BloodGroup, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "blood group cannot be empty")
	}
	g := BloodGroup(strings.ToUpper(s))
	if g.IsValid() {
		return g, nil
	}
	for group, display := range bloodGroupDisplay {
		if strings.EqualFold(display, s) {
			return group, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "invalid blood group: "+s)
}

// IsValid reports whether the group is one of the supported values.
func (g BloodGroup) IsValid() bool {
	_, ok := bloodGroupDisplay[g]
	return ok
}

// Display returns the short form, e.g. "AB+".
func (g BloodGroup) Display() string {
	if d, ok := bloodGroupDisplay[g]; ok {
		return d
	}
	return string(g)
}

func (g BloodGroup) String() string {
	return string(g)
}
