package detect

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alertmodels "attest/internal/alert/models"
	"attest/internal/audit/models"
	id "attest/pkg/domain"
)

func accessEvent(company id.CompanyID, user id.UserID, ts time.Time) models.AuditEvent {
	return models.AuditEvent{
		EventID:     id.NewEventID(),
		Timestamp:   models.NormalizeTimestamp(ts),
		CompanyID:   company,
		UserID:      user,
		EventType:   models.EventTypeAccess,
		Category:    "DATA_ACCESS",
		Action:      "VIEW",
		Description: "viewed document",
	}
}

func TestFrequencyRuleAlertsExactlyOnceAtBreach(t *testing.T) {
	rule := NewFrequencyRule(NewMemoryWindowStore(), WithThreshold(50))
	company := id.CompanyID(uuid.New())
	user := id.UserID(uuid.New())
	base := time.Now()

	// Events 1..50 stay under or at the threshold.
	for i := 0; i < 50; i++ {
		in, err := rule.Evaluate(context.Background(), accessEvent(company, user, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		assert.Nil(t, in, "event %d must not alert", i+1)
	}

	// The 51st breaches and alerts.
	in, err := rule.Evaluate(context.Background(), accessEvent(company, user, base.Add(51*time.Second)))
	require.NoError(t, err)
	require.NotNil(t, in)
	assert.Equal(t, alertmodels.SeverityHigh, in.Severity)
	assert.Equal(t, "excessive_access", in.Rule)
	assert.Equal(t, user, in.UserID)

	// Further events past the threshold stay latched.
	for i := 0; i < 5; i++ {
		in, err := rule.Evaluate(context.Background(), accessEvent(company, user, base.Add(time.Duration(52+i)*time.Second)))
		require.NoError(t, err)
		assert.Nil(t, in)
	}
}

func TestFrequencyRuleReArmsAfterQuietPeriod(t *testing.T) {
	rule := NewFrequencyRule(NewMemoryWindowStore(), WithThreshold(2), WithWindow(time.Minute), WithCooldown(time.Millisecond))
	company := id.CompanyID(uuid.New())
	user := id.UserID(uuid.New())
	base := time.Now()

	for i := 0; i < 2; i++ {
		in, err := rule.Evaluate(context.Background(), accessEvent(company, user, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		assert.Nil(t, in)
	}
	in, err := rule.Evaluate(context.Background(), accessEvent(company, user, base.Add(3*time.Second)))
	require.NoError(t, err)
	require.NotNil(t, in)

	// Two minutes later the old window has expired; the count drops under the
	// threshold, which clears the latch, and the next breach alerts again.
	later := base.Add(2 * time.Minute)
	for i := 0; i < 2; i++ {
		in, err := rule.Evaluate(context.Background(), accessEvent(company, user, later.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		assert.Nil(t, in)
	}
	in, err = rule.Evaluate(context.Background(), accessEvent(company, user, later.Add(3*time.Second)))
	require.NoError(t, err)
	assert.NotNil(t, in)
}

func TestFrequencyRuleScopesByUserAndTenant(t *testing.T) {
	rule := NewFrequencyRule(NewMemoryWindowStore(), WithThreshold(1))
	company := id.CompanyID(uuid.New())
	base := time.Now()

	userA := id.UserID(uuid.New())
	userB := id.UserID(uuid.New())

	in, err := rule.Evaluate(context.Background(), accessEvent(company, userA, base))
	require.NoError(t, err)
	assert.Nil(t, in)

	// userB's first event does not inherit userA's count.
	in, err = rule.Evaluate(context.Background(), accessEvent(company, userB, base))
	require.NoError(t, err)
	assert.Nil(t, in)

	in, err = rule.Evaluate(context.Background(), accessEvent(company, userA, base.Add(time.Second)))
	require.NoError(t, err)
	assert.NotNil(t, in)
}

func TestFrequencyRuleIgnoresNonAccessEvents(t *testing.T) {
	rule := NewFrequencyRule(NewMemoryWindowStore(), WithThreshold(1))
	event := accessEvent(id.CompanyID(uuid.New()), id.UserID(uuid.New()), time.Now())
	event.EventType = models.EventTypeSystem

	in, err := rule.Evaluate(context.Background(), event)
	require.NoError(t, err)
	assert.Nil(t, in)

	anonymous := accessEvent(id.CompanyID(uuid.New()), id.UserID{}, time.Now())
	in, err = rule.Evaluate(context.Background(), anonymous)
	require.NoError(t, err)
	assert.Nil(t, in)
}
