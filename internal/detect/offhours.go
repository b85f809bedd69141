package detect

import (
	"context"
	"fmt"

	alertmodels "attest/internal/alert/models"
	"attest/internal/audit/models"
	id "attest/pkg/domain"
)

const (
	DefaultBusinessStartHour = 6
	DefaultBusinessEndHour   = 22
)

// OffHoursRule flags downloads of sensitive material outside business hours.
// Only events carrying a CONFIDENTIAL or RESTRICTED securityLevel in their
// metadata qualify; routine material moving at night is not a signal.
type OffHoursRule struct {
	startHour int // first business hour, inclusive
	endHour   int // first off-hours hour, exclusive business
}

func NewOffHoursRule(startHour, endHour int) *OffHoursRule {
	if startHour < 0 || startHour > 23 {
		startHour = DefaultBusinessStartHour
	}
	if endHour < 0 || endHour > 23 {
		endHour = DefaultBusinessEndHour
	}
	return &OffHoursRule{startHour: startHour, endHour: endHour}
}

func (r *OffHoursRule) Name() string { return "off_hours_download" }

func (r *OffHoursRule) Evaluate(_ context.Context, event models.AuditEvent) (*alertmodels.RaiseInput, error) {
	if event.EventType != models.EventTypeAccess || event.Action != "DOWNLOAD" {
		return nil, nil
	}

	level, _ := event.Metadata["securityLevel"].(string)
	if level != "CONFIDENTIAL" && level != "RESTRICTED" {
		return nil, nil
	}

	hour := event.Timestamp.UTC().Hour()
	if hour >= r.startHour && hour < r.endHour {
		return nil, nil
	}

	return &alertmodels.RaiseInput{
		CompanyID:   event.CompanyID,
		Kind:        alertmodels.KindSuspiciousActivity,
		Rule:        r.Name(),
		Severity:    alertmodels.SeverityMedium,
		Title:       "Off-hours download of sensitive data",
		Description: fmt.Sprintf("%s document downloaded at %02d:00 UTC, outside %02d:00-%02d:00", level, hour, r.startHour, r.endHour),
		UserID:      event.UserID,
		EventIDs:    []id.EventID{event.EventID},
		Details: map[string]any{
			"securityLevel": level,
			"hour":          hour,
			"resourceType":  event.ResourceType,
			"resourceId":    event.ResourceID,
		},
	}, nil
}
