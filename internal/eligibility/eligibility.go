// Package eligibility decides whether a donor is out of the post-donation cooldown.
//
// Eligibility is always derived from the last donation timestamp and a single
// cooldown duration. Nothing here reads or trusts a stored "paused" flag.
package eligibility

import (
	"time"
)

// DefaultCooldown is the mandatory wait after a donation (90 days).
const DefaultCooldown = 90 * 24 * time.Hour

const day = 24 * time.Hour

// Subject is anything that can report its most recent donation.
type Subject interface {
	LastDonation() *time.Time
}

// Status is the derived eligibility snapshot returned to callers.
type Status struct {
	CanDonate          bool       `json:"canDonate"`
	DaysUntilCanDonate int        `json:"daysUntilCanDonate"`
	LastDonationAt     *time.Time `json:"lastDonationAt"`
	AvailableFrom      *time.Time `json:"availableFrom"`
}

// Evaluator applies one cooldown duration to every decision it makes, so the
// predicate, the day count and store-side cutoffs never disagree.
type Evaluator struct {
	cooldown time.Duration
}

// New returns an Evaluator. A non-positive cooldown falls back to DefaultCooldown.
func New(cooldown time.Duration) *Evaluator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Evaluator{cooldown: cooldown}
}

func (e *Evaluator) Cooldown() time.Duration {
	return e.cooldown
}

// Cutoff is the latest donation instant that still counts as eligible at now.
// Stores filter with "last_donation_at IS NULL OR last_donation_at <= cutoff".
func (e *Evaluator) Cutoff(now time.Time) time.Time {
	return now.Add(-e.cooldown)
}

// IsEligibleAt reports eligibility for a raw timestamp. The boundary is
// inclusive: exactly one cooldown elapsed is eligible.
func (e *Evaluator) IsEligibleAt(lastDonation *time.Time, now time.Time) bool {
	if lastDonation == nil {
		return true
	}
	return !lastDonation.After(e.Cutoff(now))
}

// IsEligible reports whether the subject may donate at now.
func (e *Evaluator) IsEligible(s Subject, now time.Time) bool {
	return e.IsEligibleAt(s.LastDonation(), now)
}

// AvailableFrom returns the instant the subject becomes eligible, or nil if
// they have never donated.
func (e *Evaluator) AvailableFrom(s Subject) *time.Time {
	last := s.LastDonation()
	if last == nil {
		return nil
	}
	at := last.Add(e.cooldown)
	return &at
}

// DaysUntilEligible is 0 when eligible and otherwise the remaining time
// rounded up to whole days, so it is at least 1 whenever IsEligible is false.
func (e *Evaluator) DaysUntilEligible(s Subject, now time.Time) int {
	last := s.LastDonation()
	if e.IsEligibleAt(last, now) {
		return 0
	}
	remaining := last.Add(e.cooldown).Sub(now)
	days := int(remaining / day)
	if remaining%day != 0 {
		days++
	}
	return days
}

// Evaluate bundles every derived value for a subject.
func (e *Evaluator) Evaluate(s Subject, now time.Time) Status {
	return Status{
		CanDonate:          e.IsEligible(s, now),
		DaysUntilCanDonate: e.DaysUntilEligible(s, now),
		LastDonationAt:     s.LastDonation(),
		AvailableFrom:      e.AvailableFrom(s),
	}
}
