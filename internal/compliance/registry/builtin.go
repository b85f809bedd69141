package registry

import (
	"context"

	auditmodels "attest/internal/audit/models"
	"attest/internal/compliance/models"
)

// RegisterBuiltins seeds the starter frameworks. Deployments extend or
// replace these through the registration API.
func RegisterBuiltins(ctx context.Context, r *Registry) error {
	for _, framework := range []models.Framework{GDPR(), SOC2()} {
		if err := r.Register(ctx, framework); err != nil {
			return err
		}
	}
	return nil
}

// GDPR is a starter subset of GDPR technical requirements.
func GDPR() models.Framework {
	return models.Framework{
		Name:    "GDPR",
		Version: "2016/679",
		Requirements: []models.Requirement{
			{
				ID:        "GDPR-30",
				Title:     "Records of processing activities",
				Category:  "ACCOUNTABILITY",
				Mandatory: true,
				Criteria: []models.AuditCriteria{
					{
						EventTypes: []auditmodels.EventType{auditmodels.EventTypeDataChange},
						Categories: []string{"DATA_PROCESSING"},
					},
				},
			},
			{
				ID:        "GDPR-32",
				Title:     "Security of processing",
				Category:  "SECURITY",
				Mandatory: true,
				Criteria: []models.AuditCriteria{
					{
						EventTypes: []auditmodels.EventType{auditmodels.EventTypeSecurity},
						Categories: []string{"DATA_ACCESS"},
					},
				},
			},
			{
				ID:        "GDPR-33",
				Title:     "Notification of personal data breaches",
				Category:  "INCIDENT_RESPONSE",
				Mandatory: true,
				Criteria: []models.AuditCriteria{
					{
						EventTypes: []auditmodels.EventType{auditmodels.EventTypeSecurity},
						Categories: []string{"INCIDENT"},
						Conditions: []models.Condition{
							{Field: "outcome", Operator: models.OpEquals, Value: "SUCCESS"},
						},
					},
				},
			},
		},
	}
}

// SOC2 is a starter subset of SOC 2 trust service criteria.
func SOC2() models.Framework {
	return models.Framework{
		Name:    "SOC2",
		Version: "2017",
		Requirements: []models.Requirement{
			{
				ID:        "CC6.1",
				Title:     "Logical access security",
				Category:  "SECURITY",
				Mandatory: true,
				Criteria: []models.AuditCriteria{
					{
						EventTypes: []auditmodels.EventType{auditmodels.EventTypeAccess},
						Categories: []string{"AUTHENTICATION"},
					},
				},
			},
			{
				ID:        "CC7.2",
				Title:     "Security incident monitoring",
				Category:  "MONITORING",
				Mandatory: false,
				Criteria: []models.AuditCriteria{
					{
						EventTypes: []auditmodels.EventType{auditmodels.EventTypeSecurity},
					},
					{
						EventTypes: []auditmodels.EventType{auditmodels.EventTypeSystem},
						Categories: []string{"MONITORING"},
					},
				},
			},
		},
	}
}
