package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotFound, "missing")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeForbidden, "nope"))
		assert.True(t, HasCode(err, CodeForbidden))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to load donor")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to load donor")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRateLimitedClampsMinutes(t *testing.T) {
	err := RateLimited("slow down", 0)
	assert.Equal(t, CodeRateLimited, err.Code)
	assert.Equal(t, 1, err.RetryAfterMinutes)

	err = RateLimited("slow down", 42)
	assert.Equal(t, 42, err.RetryAfterMinutes)
}
