package models

import (
	"encoding/json"
	"strings"
	"time"

	"donorlink/pkg/domain"
)

// SearchQuery is a validated donor search. Page and Limit are clamped by the
// service before use.
type SearchQuery struct {
	BloodGroup *domain.BloodGroup
	Area       string
	City       string
	State      string
	Zone       string
	Page       int
	Limit      int
}

// CacheKey identifies a query plus the caller's auth state. Two callers with
// the same key always receive identical pages. Fields are JSON encoded so free
// text cannot collide across field boundaries.
func (q SearchQuery) CacheKey(authenticated bool) string {
	key := struct {
		BloodGroup    string `json:"g"`
		Area          string `json:"a"`
		City          string `json:"c"`
		State         string `json:"s"`
		Zone          string `json:"z"`
		Page          int    `json:"p"`
		Limit         int    `json:"l"`
		Authenticated bool   `json:"auth"`
	}{
		Area:          strings.ToLower(q.Area),
		City:          strings.ToLower(q.City),
		State:         strings.ToLower(q.State),
		Zone:          strings.ToLower(q.Zone),
		Page:          q.Page,
		Limit:         q.Limit,
		Authenticated: authenticated,
	}
	if q.BloodGroup != nil {
		key.BloodGroup = string(*q.BloodGroup)
	}
	// Marshal cannot fail for strings, ints and bools.
	encoded, _ := json.Marshal(key)
	return "donors:search:" + string(encoded)
}

// DonorView is a search result row with the contact field already redacted.
type DonorView struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	BloodGroup     domain.BloodGroup `json:"bloodGroup"`
	Area           string            `json:"area"`
	City           string            `json:"city"`
	State          string            `json:"state"`
	Zone           string            `json:"zone,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	PhoneNumber    string            `json:"phoneNumber,omitempty"`
	ContactVisible bool              `json:"contactVisible"`
}

// NewDonorView projects a donor for a searcher, applying contact redaction.
func NewDonorView(d *Donor, authenticated bool) DonorView {
	v := DonorView{
		ID:         d.ID,
		Name:       d.Name,
		BloodGroup: d.BloodGroup,
		Area:       d.Location.Area,
		City:       d.Location.City,
		State:      d.Location.State,
		Zone:       d.Location.Zone,
		CreatedAt:  d.CreatedAt,
	}
	if d.ContactVisibility.VisibleTo(authenticated) {
		v.PhoneNumber = d.PhoneNumber
		v.ContactVisible = true
	}
	return v
}

// SearchPage is the paginated search response.
type SearchPage struct {
	Users           []DonorView `json:"users"`
	Total           int         `json:"total"`
	TotalCount      int         `json:"totalCount"`
	Page            int         `json:"page"`
	Limit           int         `json:"limit"`
	TotalPages      int         `json:"totalPages"`
	HasNextPage     bool        `json:"hasNextPage"`
	HasPreviousPage bool        `json:"hasPreviousPage"`
}

// NewSearchPage fills the pagination fields from a total count.
func NewSearchPage(users []DonorView, totalCount, page, limit int) *SearchPage {
	totalPages := 0
	if limit > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	if users == nil {
		users = []DonorView{}
	}
	return &SearchPage{
		Users:           users,
		Total:           len(users),
		TotalCount:      totalCount,
		Page:            page,
		Limit:           limit,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}
