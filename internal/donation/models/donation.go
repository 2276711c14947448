package models

import (
	"strings"
	"time"

	dErrors "donorlink/pkg/domain-errors"
)

// Donation is an append-only record of blood given by a donor.
type Donation struct {
	ID        string    `json:"id"`
	DonorID   string    `json:"donorId"`
	DonatedAt time.Time `json:"donatedAt"`
	Location  *string   `json:"location"`
	Notes     *string   `json:"notes"`
}

// Details are the caller-supplied parts of a donation.
type Details struct {
	Location *string
	Notes    *string
}

// RecordRequest is the body of POST /me/donations.
type RecordRequest struct {
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

func (r *RecordRequest) Normalize() {
	r.Location = strings.TrimSpace(r.Location)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *RecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Location) > 200 {
		return dErrors.New(dErrors.CodeValidation, "location is too long")
	}
	if len(r.Notes) > 1000 {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	return nil
}

// Details converts the body into optional fields; empty strings become nil.
func (r *RecordRequest) Details() Details {
	var d Details
	if r.Location != "" {
		loc := r.Location
		d.Location = &loc
	}
	if r.Notes != "" {
		notes := r.Notes
		d.Notes = &notes
	}
	return d
}
