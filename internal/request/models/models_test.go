package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorlink/pkg/domain"
	dErrors "donorlink/pkg/domain-errors"
)

func validCreate() *CreateRequest {
	return &CreateRequest{
		RequesterName:  "Nadia",
		RequesterPhone: "01700000000",
		BloodGroup:     "AB+",
		Urgency:        "High",
		Location:       "Dhaka Medical College",
		NotifyRadius:   10,
		RequesterCity:  "Dhaka",
		RequesterState: "Dhaka",
	}
}

func TestCreateRequestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := validCreate()
		r.Normalize()
		require.NoError(t, r.Validate())
		assert.Equal(t, domain.ABPositive, r.ParsedBloodGroup())
		assert.Equal(t, "high", r.Urgency)
	})

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"radius zero", func(r *CreateRequest) { r.NotifyRadius = 0 }},
		{"radius above 100", func(r *CreateRequest) { r.NotifyRadius = 101 }},
		{"short phone", func(r *CreateRequest) { r.RequesterPhone = "123" }},
		{"short location", func(r *CreateRequest) { r.Location = "DMC" }},
		{"unknown urgency", func(r *CreateRequest) { r.Urgency = "whenever" }},
		{"bad blood group", func(r *CreateRequest) { r.BloodGroup = "X" }},
		{"no location filter", func(r *CreateRequest) { r.RequesterCity, r.RequesterState = "", "" }},
		{"hospital without name", func(r *CreateRequest) { r.Hospital = &Hospital{Address: "Road 1"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validCreate()
			tt.mutate(r)
			r.Normalize()
			assert.True(t, dErrors.HasCode(r.Validate(), dErrors.CodeValidation))
		})
	}

	t.Run("notifyAll does not need a location filter", func(t *testing.T) {
		r := validCreate()
		r.RequesterCity, r.RequesterState, r.NotifyAll = "", "", true
		r.Normalize()
		require.NoError(t, r.Validate())
	})

	t.Run("radius boundaries are accepted", func(t *testing.T) {
		for _, radius := range []int{1, 100} {
			r := validCreate()
			r.NotifyRadius = radius
			r.Normalize()
			require.NoError(t, r.Validate())
		}
	})
}

func TestCompletionTransition(t *testing.T) {
	owner := "requester-1"
	req := &BloodRequest{ID: "r1", RequesterID: &owner, Status: StatusActive}

	assert.True(t, dErrors.HasCode(req.CanComplete("someone-else"), dErrors.CodeForbidden))
	require.NoError(t, req.CanComplete(owner))

	donor := "donor-y"
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	req.ApplyCompletion(&donor, now)
	assert.Equal(t, StatusCompleted, req.Status)
	require.NotNil(t, req.CompletedAt)
	assert.Equal(t, now, *req.CompletedAt)
	assert.Equal(t, &donor, req.CompletedByDonorID)

	assert.True(t, dErrors.HasCode(req.CanComplete(owner), dErrors.CodeAlreadyCompleted))
}

func TestLegacyRequestWithoutRequester(t *testing.T) {
	req := &BloodRequest{Status: StatusActive}
	assert.False(t, req.IsRequester(""))
	assert.True(t, dErrors.HasCode(req.CanComplete("anyone"), dErrors.CodeForbidden))
}

func TestUrgencyRank(t *testing.T) {
	assert.Greater(t, UrgencyCritical.Rank(), UrgencyHigh.Rank())
	assert.Greater(t, UrgencyHigh.Rank(), UrgencyMedium.Rank())
	assert.Greater(t, UrgencyMedium.Rank(), UrgencyLow.Rank())
	assert.Zero(t, Urgency("nope").Rank())
}

func TestCompleteRequestNormalize(t *testing.T) {
	blank := "  "
	r := &CompleteRequest{DonorID: &blank}
	r.Normalize()
	assert.Nil(t, r.DonorID)
}
