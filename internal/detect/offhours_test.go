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

func downloadAt(hour int, level string) models.AuditEvent {
	event := accessEvent(id.CompanyID(uuid.New()), id.UserID(uuid.New()),
		time.Date(2026, 8, 27, hour, 30, 0, 0, time.UTC))
	event.Action = "DOWNLOAD"
	if level != "" {
		event.Metadata = map[string]any{"securityLevel": level}
	}
	return event
}

func TestOffHoursRule(t *testing.T) {
	rule := NewOffHoursRule(6, 22)

	cases := []struct {
		name   string
		event  models.AuditEvent
		alerts bool
	}{
		{"confidential at 23:30", downloadAt(23, "CONFIDENTIAL"), true},
		{"restricted at 03:30", downloadAt(3, "RESTRICTED"), true},
		{"confidential at 05:30", downloadAt(5, "CONFIDENTIAL"), true},
		{"confidential during business hours", downloadAt(10, "CONFIDENTIAL"), false},
		{"confidential at boundary 06:30", downloadAt(6, "CONFIDENTIAL"), false},
		{"confidential at boundary 22:30", downloadAt(22, "CONFIDENTIAL"), true},
		{"internal material at night", downloadAt(23, "INTERNAL"), false},
		{"no security level", downloadAt(23, ""), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := rule.Evaluate(context.Background(), tc.event)
			require.NoError(t, err)
			if !tc.alerts {
				assert.Nil(t, in)
				return
			}
			require.NotNil(t, in)
			assert.Equal(t, alertmodels.SeverityMedium, in.Severity)
			assert.Equal(t, "off_hours_download", in.Rule)
		})
	}
}

func TestOffHoursRuleIgnoresViews(t *testing.T) {
	rule := NewOffHoursRule(6, 22)
	event := downloadAt(23, "CONFIDENTIAL")
	event.Action = "VIEW"

	in, err := rule.Evaluate(context.Background(), event)
	require.NoError(t, err)
	assert.Nil(t, in)
}
