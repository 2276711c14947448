package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitFourthRequestWithinHourIsRejected(t *testing.T) {
	p := NewPolicy(3, time.Hour)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := ThrottleState{RequesterID: "req-1"}

	var d Decision
	for i := 0; i < 3; i++ {
		state, d = p.Admit(state, start.Add(time.Duration(i)*10*time.Minute))
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}
	assert.Equal(t, 3, state.RequestCount)
	assert.Equal(t, start.Add(time.Hour), state.WindowResetAt)

	rejectedAt := start.Add(30*time.Minute + 20*time.Second)
	after, d := p.Admit(state, rejectedAt)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30, d.MinutesUntilReset, "29m40s rounds up to 30")
	assert.Equal(t, state, after, "rejection must not consume a slot")
}

func TestAdmitResetsAfterWindow(t *testing.T) {
	p := NewPolicy(3, time.Hour)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := ThrottleState{RequestCount: 3, WindowResetAt: start}

	t.Run("at the reset instant the window rolls over", func(t *testing.T) {
		next, d := p.Admit(state, start)
		require.True(t, d.Allowed)
		assert.Equal(t, 1, next.RequestCount)
		assert.Equal(t, start.Add(time.Hour), next.WindowResetAt)
	})

	t.Run("just before reset is still limited", func(t *testing.T) {
		_, d := p.Admit(state, start.Add(-time.Second))
		assert.False(t, d.Allowed)
		assert.Equal(t, 1, d.MinutesUntilReset)
	})
}

func TestAdmitFreshRequester(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	next, d := NewPolicy(0, 0).Admit(ThrottleState{}, now)

	require.True(t, d.Allowed)
	assert.Equal(t, DefaultLimit-1, d.Remaining)
	assert.Equal(t, now.Add(DefaultWindow), next.WindowResetAt)
}

func TestMinutesUntilIsPositive(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 1, minutesUntil(now, now))
	assert.Equal(t, 1, minutesUntil(now.Add(time.Second), now))
	assert.Equal(t, 60, minutesUntil(now.Add(time.Hour), now))
}
