package models

import (
	"strings"

	"donorlink/pkg/domain"
	dErrors "donorlink/pkg/domain-errors"
)

const (
	minNotifyRadius = 1
	maxNotifyRadius = 100
	maxMessageLen   = 1000
	maxFieldLen     = 200
)

// CreateRequest is the body of POST /blood-requests. The requester identity
// comes from the verified token; the body never names it.
type CreateRequest struct {
	RequesterName  string    `json:"requesterName"`
	RequesterPhone string    `json:"requesterPhone"`
	BloodGroup     string    `json:"bloodGroup"`
	Urgency        string    `json:"urgency"`
	Location       string    `json:"location"`
	Hospital       *Hospital `json:"hospital,omitempty"`
	Message        string    `json:"message,omitempty"`
	NotifyRadius   int       `json:"notifyRadius"`
	NotifyAll      bool      `json:"notifyAll"`
	RequesterCity  string    `json:"requesterCity"`
	RequesterState string    `json:"requesterState"`

	parsedGroup domain.BloodGroup
}

func (r *CreateRequest) Normalize() {
	r.RequesterName = strings.TrimSpace(r.RequesterName)
	r.RequesterPhone = strings.TrimSpace(r.RequesterPhone)
	r.BloodGroup = strings.TrimSpace(r.BloodGroup)
	r.Urgency = strings.ToLower(strings.TrimSpace(r.Urgency))
	r.Location = strings.TrimSpace(r.Location)
	r.Message = strings.TrimSpace(r.Message)
	r.RequesterCity = strings.TrimSpace(r.RequesterCity)
	r.RequesterState = strings.TrimSpace(r.RequesterState)
	if r.Hospital != nil {
		r.Hospital.Name = strings.TrimSpace(r.Hospital.Name)
		r.Hospital.Address = strings.TrimSpace(r.Hospital.Address)
		r.Hospital.Zone = strings.TrimSpace(r.Hospital.Zone)
		r.Hospital.MapURL = strings.TrimSpace(r.Hospital.MapURL)
	}
}

func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	switch {
	case len(r.RequesterName) < 2:
		return dErrors.New(dErrors.CodeValidation, "requesterName must be at least 2 characters")
	case len(r.RequesterPhone) < 10:
		return dErrors.New(dErrors.CodeValidation, "requesterPhone must be at least 10 characters")
	case len(r.Location) < 5:
		return dErrors.New(dErrors.CodeValidation, "location must be at least 5 characters")
	case len(r.Message) > maxMessageLen:
		return dErrors.New(dErrors.CodeValidation, "message is too long")
	case r.NotifyRadius < minNotifyRadius || r.NotifyRadius > maxNotifyRadius:
		return dErrors.New(dErrors.CodeValidation, "notifyRadius must be between 1 and 100")
	case !Urgency(r.Urgency).IsValid():
		return dErrors.New(dErrors.CodeValidation, "urgency must be one of low, medium, high, critical")
	}
	for _, f := range []string{r.RequesterName, r.RequesterPhone, r.Location, r.RequesterCity, r.RequesterState} {
		if len(f) > maxFieldLen {
			return dErrors.New(dErrors.CodeValidation, "field value is too long")
		}
	}
	if !r.NotifyAll && r.RequesterCity == "" && r.RequesterState == "" {
		return dErrors.New(dErrors.CodeValidation, "requesterCity or requesterState is required unless notifyAll is set")
	}
	if r.Hospital != nil && r.Hospital.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "hospital.name is required when hospital is given")
	}

	group, err := domain.ParseBloodGroup(r.BloodGroup)
	if err != nil {
		return err
	}
	r.parsedGroup = group
	return nil
}

func (r *CreateRequest) ParsedBloodGroup() domain.BloodGroup {
	return r.parsedGroup
}

// CompleteRequest is the body of POST /blood-requests/{id}/complete.
type CompleteRequest struct {
	DonorID *string `json:"donorId,omitempty"`
}

func (r *CompleteRequest) Normalize() {
	if r.DonorID != nil {
		id := strings.TrimSpace(*r.DonorID)
		if id == "" {
			r.DonorID = nil
			return
		}
		r.DonorID = &id
	}
}

func (r *CompleteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.DonorID != nil && len(*r.DonorID) > 128 {
		return dErrors.New(dErrors.CodeValidation, "donorId is too long")
	}
	return nil
}
