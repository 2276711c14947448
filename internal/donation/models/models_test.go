package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "donorlink/pkg/domain-errors"
)

func TestRecordRequest(t *testing.T) {
	t.Run("blank fields become nil details", func(t *testing.T) {
		req := &RecordRequest{Location: "   ", Notes: ""}
		req.Normalize()
		require.NoError(t, req.Validate())
		d := req.Details()
		assert.Nil(t, d.Location)
		assert.Nil(t, d.Notes)
	})

	t.Run("values are trimmed", func(t *testing.T) {
		req := &RecordRequest{Location: " DMCH ", Notes: " first time "}
		req.Normalize()
		d := req.Details()
		require.NotNil(t, d.Location)
		assert.Equal(t, "DMCH", *d.Location)
		assert.Equal(t, "first time", *d.Notes)
	})

	t.Run("oversized notes", func(t *testing.T) {
		req := &RecordRequest{Notes: strings.Repeat("x", 1001)}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})
}
