package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventID(t *testing.T) {
	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := ParseEventID("not-a-uuid")
		require.Error(t, err)
	})

	t.Run("rejects nil uuid", func(t *testing.T) {
		_, err := ParseEventID(uuid.Nil.String())
		require.Error(t, err)
	})

	t.Run("round-trips a valid uuid", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseEventID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, valid.String(), id.String())
	})
}

func TestTypedIDsAreDistinct(t *testing.T) {
	eventID := NewEventID()
	reportID := NewReportID()

	// Distinct types prevent accidental cross-assignment:
	// var e EventID = ReportID(uuid.New())  // type mismatch
	assert.NotEqual(t, uuid.UUID(eventID), uuid.UUID(reportID))
	assert.False(t, eventID.IsNil())
	assert.False(t, reportID.IsNil())
}

func TestIDTextMarshalling(t *testing.T) {
	id := NewCompanyIDForTest(t)
	b, err := id.MarshalText()
	require.NoError(t, err)

	var back CompanyID
	require.NoError(t, back.UnmarshalText(b))
	assert.Equal(t, id, back)
}

// NewCompanyIDForTest builds a CompanyID without exposing a production
// constructor; company IDs arrive from the outside in real flows.
func NewCompanyIDForTest(t *testing.T) CompanyID {
	t.Helper()
	return CompanyID(uuid.New())
}
