package models

import (
	"time"

	"donorlink/pkg/domain"
	dErrors "donorlink/pkg/domain-errors"
)

// ContactVisibility controls who may see a donor's phone number.
type ContactVisibility string

const (
	ContactPublic     ContactVisibility = "PUBLIC"
	ContactRestricted ContactVisibility = "RESTRICTED"
	ContactPrivate    ContactVisibility = "PRIVATE"
)

func (v ContactVisibility) IsValid() bool {
	return v == ContactPublic || v == ContactRestricted || v == ContactPrivate
}

// VisibleTo reports whether the phone number is disclosed to a searcher.
// PRIVATE is never disclosed through search.
func (v ContactVisibility) VisibleTo(authenticated bool) bool {
	switch v {
	case ContactPublic:
		return true
	case ContactRestricted:
		return authenticated
	default:
		return false
	}
}

// ProfileVisibility controls who can find the donor at all.
type ProfileVisibility string

const (
	ProfilePublic  ProfileVisibility = "PUBLIC"
	ProfilePrivate ProfileVisibility = "PRIVATE"
)

func (v ProfileVisibility) IsValid() bool {
	return v == ProfilePublic || v == ProfilePrivate
}

// DiscoverableProfiles returns the profile visibilities a searcher may see.
func DiscoverableProfiles(authenticated bool) []ProfileVisibility {
	if authenticated {
		return []ProfileVisibility{ProfilePublic, ProfilePrivate}
	}
	return []ProfileVisibility{ProfilePublic}
}

// Location is where a donor can be reached for donation.
type Location struct {
	Area  string `json:"area"`
	City  string `json:"city"`
	State string `json:"state"`
	Zone  string `json:"zone,omitempty"`
}

// Donor is a registered user acting as a potential donor.
//
// Invariants:
//   - ID is the subject assigned by the identity provider and never changes
//   - PhoneNumber is unique across donors and immutable after registration
//   - BloodGroup is one of the eight valid groups and immutable
//   - Eligibility is derived from LastDonationAt only; there is no paused flag
type Donor struct {
	ID                string            `json:"id"`
	PhoneNumber       string            `json:"phoneNumber"`
	Name              string            `json:"name"`
	BloodGroup        domain.BloodGroup `json:"bloodGroup"`
	Location          Location          `json:"location"`
	IsActive          bool              `json:"isActive"`
	ContactVisibility ContactVisibility `json:"contactVisibility"`
	ProfileVisibility ProfileVisibility `json:"profileVisibility"`
	LastDonationAt    *time.Time        `json:"lastDonationAt"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// LastDonation implements eligibility.Subject.
func (d *Donor) LastDonation() *time.Time {
	return d.LastDonationAt
}

// NewDonor builds an active donor with default visibilities when unset.
func NewDonor(id, phone, name string, group domain.BloodGroup, loc Location,
	contact ContactVisibility, profile ProfileVisibility, now time.Time) (*Donor, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "donor id cannot be empty")
	}
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "donor phone number cannot be empty")
	}
	if !group.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid blood group")
	}
	if contact == "" {
		contact = ContactRestricted
	}
	if profile == "" {
		profile = ProfilePublic
	}
	if !contact.IsValid() || !profile.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid visibility")
	}
	return &Donor{
		ID:                id,
		PhoneNumber:       phone,
		Name:              name,
		BloodGroup:        group,
		Location:          loc,
		IsActive:          true,
		ContactVisibility: contact,
		ProfileVisibility: profile,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// CanRecordDonation checks the precondition for logging a donation.
func (d *Donor) CanRecordDonation() error {
	if !d.IsActive {
		return dErrors.New(dErrors.CodeInactiveAccount, "user account is inactive")
	}
	return nil
}

// ApplyDonation moves the donor into cooldown.
func (d *Donor) ApplyDonation(at time.Time) {
	t := at
	d.LastDonationAt = &t
	d.UpdatedAt = at
}

// ApplyProfileUpdate copies the mutable fields from an already validated update.
func (d *Donor) ApplyProfileUpdate(u *UpdateProfileRequest, now time.Time) {
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.Area != nil {
		d.Location.Area = *u.Area
	}
	if u.City != nil {
		d.Location.City = *u.City
	}
	if u.State != nil {
		d.Location.State = *u.State
	}
	if u.Zone != nil {
		d.Location.Zone = *u.Zone
	}
	if u.IsActive != nil {
		d.IsActive = *u.IsActive
	}
	if u.ContactVisibility != nil {
		d.ContactVisibility = ContactVisibility(*u.ContactVisibility)
	}
	if u.ProfileVisibility != nil {
		d.ProfileVisibility = ProfileVisibility(*u.ProfileVisibility)
	}
	d.UpdatedAt = now
}
