package models

import (
	"strconv"
	"strings"

	"donorlink/pkg/domain"
	dErrors "donorlink/pkg/domain-errors"
)

const (
	maxNameLen     = 100
	maxLocationLen = 120
)

// RegisterRequest is the body of POST /donors. Identity (ID and phone) comes
// only from the verified token and is never read from the body.
type RegisterRequest struct {
	Name              string `json:"name"`
	BloodGroup        string `json:"bloodGroup"`
	Area              string `json:"area"`
	City              string `json:"city"`
	State             string `json:"state"`
	Zone              string `json:"zone,omitempty"`
	ContactVisibility string `json:"contactVisibility,omitempty"`
	ProfileVisibility string `json:"profileVisibility,omitempty"`

	parsedGroup domain.BloodGroup
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.BloodGroup = strings.TrimSpace(r.BloodGroup)
	r.Area = strings.TrimSpace(r.Area)
	r.City = strings.TrimSpace(r.City)
	r.State = strings.TrimSpace(r.State)
	r.Zone = strings.TrimSpace(r.Zone)
	r.ContactVisibility = strings.ToUpper(strings.TrimSpace(r.ContactVisibility))
	r.ProfileVisibility = strings.ToUpper(strings.TrimSpace(r.ProfileVisibility))
}

func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validateText("name", r.Name, 2, maxNameLen); err != nil {
		return err
	}
	group, err := domain.ParseBloodGroup(r.BloodGroup)
	if err != nil {
		return err
	}
	r.parsedGroup = group
	for _, f := range []struct{ name, value string }{{"area", r.Area}, {"city", r.City}, {"state", r.State}} {
		if err := validateText(f.name, f.value, 2, maxLocationLen); err != nil {
			return err
		}
	}
	if len(r.Zone) > maxLocationLen {
		return dErrors.New(dErrors.CodeValidation, "zone is too long")
	}
	if r.ContactVisibility != "" && !ContactVisibility(r.ContactVisibility).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "contactVisibility must be PUBLIC, RESTRICTED or PRIVATE")
	}
	if r.ProfileVisibility != "" && !ProfileVisibility(r.ProfileVisibility).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "profileVisibility must be PUBLIC or PRIVATE")
	}
	return nil
}

func (r *RegisterRequest) ParsedBloodGroup() domain.BloodGroup {
	return r.parsedGroup
}

func (r *RegisterRequest) Location() Location {
	return Location{Area: r.Area, City: r.City, State: r.State, Zone: r.Zone}
}

// UpdateProfileRequest is the body of PUT /me/profile. Nil fields are left
// untouched. Phone number and blood group cannot be changed.
type UpdateProfileRequest struct {
	Name              *string `json:"name,omitempty"`
	Area              *string `json:"area,omitempty"`
	City              *string `json:"city,omitempty"`
	State             *string `json:"state,omitempty"`
	Zone              *string `json:"zone,omitempty"`
	IsActive          *bool   `json:"isActive,omitempty"`
	ContactVisibility *string `json:"contactVisibility,omitempty"`
	ProfileVisibility *string `json:"profileVisibility,omitempty"`
}

func (r *UpdateProfileRequest) Normalize() {
	for _, p := range []*string{r.Name, r.Area, r.City, r.State, r.Zone} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	for _, p := range []*string{r.ContactVisibility, r.ProfileVisibility} {
		if p != nil {
			*p = strings.ToUpper(strings.TrimSpace(*p))
		}
	}
}

func (r *UpdateProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Name != nil {
		if err := validateText("name", *r.Name, 2, maxNameLen); err != nil {
			return err
		}
	}
	for _, f := range []struct {
		name  string
		value *string
	}{{"area", r.Area}, {"city", r.City}, {"state", r.State}} {
		if f.value != nil {
			if err := validateText(f.name, *f.value, 2, maxLocationLen); err != nil {
				return err
			}
		}
	}
	if r.Zone != nil && len(*r.Zone) > maxLocationLen {
		return dErrors.New(dErrors.CodeValidation, "zone is too long")
	}
	if r.ContactVisibility != nil && !ContactVisibility(*r.ContactVisibility).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "contactVisibility must be PUBLIC, RESTRICTED or PRIVATE")
	}
	if r.ProfileVisibility != nil && !ProfileVisibility(*r.ProfileVisibility).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "profileVisibility must be PUBLIC or PRIVATE")
	}
	return nil
}

func validateText(field, value string, minLen, maxLen int) error {
	if len(value) < minLen {
		return dErrors.New(dErrors.CodeValidation, field+" must be at least "+strconv.Itoa(minLen)+" characters")
	}
	if len(value) > maxLen {
		return dErrors.New(dErrors.CodeValidation, field+" is too long")
	}
	return nil
}
