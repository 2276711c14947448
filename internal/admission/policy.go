// Package admission implements the per-requester blood request limit.
//
// The policy is a fixed window that opens on the first request after the
// previous window expired. It is pure: callers load the ThrottleState, call
// Admit, and persist the returned state in the same transaction that creates
// the request.
package admission

import (
	"time"
)

const (
	DefaultLimit  = 3
	DefaultWindow = time.Hour
)

// ThrottleState is the persisted counter for one requester.
type ThrottleState struct {
	RequesterID   string
	RequestCount  int
	WindowResetAt time.Time
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed           bool
	Remaining         int
	MinutesUntilReset int
	ResetAt           time.Time
}

// Policy admits at most Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// NewPolicy returns a Policy, substituting defaults for non-positive values.
func NewPolicy(limit int, window time.Duration) Policy {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return Policy{Limit: limit, Window: window}
}

// Admit evaluates one request at now. The returned state is what must be
// persisted; on rejection it equals the (possibly reset) input state.
func (p Policy) Admit(state ThrottleState, now time.Time) (ThrottleState, Decision) {
	next := state
	if state.WindowResetAt.IsZero() || !now.Before(state.WindowResetAt) {
		next.RequestCount = 0
		next.WindowResetAt = now.Add(p.Window)
	}

	if next.RequestCount >= p.Limit {
		return next, Decision{
			Allowed:           false,
			Remaining:         0,
			MinutesUntilReset: minutesUntil(next.WindowResetAt, now),
			ResetAt:           next.WindowResetAt,
		}
	}

	next.RequestCount++
	return next, Decision{
		Allowed:   true,
		Remaining: p.Limit - next.RequestCount,
		ResetAt:   next.WindowResetAt,
	}
}

// minutesUntil rounds up and never reports less than one minute.
func minutesUntil(at, now time.Time) int {
	d := at.Sub(now)
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	if m < 1 {
		m = 1
	}
	return m
}
