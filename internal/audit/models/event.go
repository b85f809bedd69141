// Package models defines the audit event entity and its enumerations.
package models

import (
	"time"

	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

// EventType classifies audit events by their primary purpose.
type EventType string

const (
	EventTypeUserAction EventType = "USER_ACTION"
	EventTypeAccess     EventType = "ACCESS_EVENT"
	EventTypeDataChange EventType = "DATA_CHANGE"
	EventTypeSecurity   EventType = "SECURITY_EVENT"
	EventTypeSystem     EventType = "SYSTEM_EVENT"
	EventTypeWorkflow   EventType = "WORKFLOW_EVENT"
	EventTypeCompliance EventType = "COMPLIANCE_EVENT"
)

var validEventTypes = map[EventType]bool{
	EventTypeUserAction: true,
	EventTypeAccess:     true,
	EventTypeDataChange: true,
	EventTypeSecurity:   true,
	EventTypeSystem:     true,
	EventTypeWorkflow:   true,
	EventTypeCompliance: true,
}

// IsValid checks the event type against the supported enum values.
func (t EventType) IsValid() bool { return validEventTypes[t] }

// Severity grades events and alerts.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Outcome records whether the audited action succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// AuditEvent is one immutable, signed entry in the trail.
//
// Every field except Checksum and DigitalSignature is fixed at creation.
// No update or delete path exists; only the administrative retention purge
// removes events, and that purge records its own event.
//
// JSON tags double as the canonical serialization schema: checksum and
// signature are computed over the canonical form with the "checksum" and
// "digitalSignature" fields excluded.
type AuditEvent struct {
	EventID   id.EventID   `json:"eventId"`
	Timestamp time.Time    `json:"timestamp"`
	CompanyID id.CompanyID `json:"companyId"`
	UserID    id.UserID    `json:"userId,omitzero"`
	UserEmail string       `json:"userEmail,omitzero"`

	EventType   EventType `json:"eventType"`
	Category    string    `json:"category"`
	Severity    Severity  `json:"severity"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Outcome     Outcome   `json:"outcome"`

	ResourceType string `json:"resourceType,omitzero"`
	ResourceID   string `json:"resourceId,omitzero"`

	// DATA_CHANGE payloads.
	OldValues     map[string]any `json:"oldValues,omitempty"`
	NewValues     map[string]any `json:"newValues,omitempty"`
	ChangedFields []string       `json:"changedFields,omitempty"`

	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	Checksum          string `json:"checksum"`
	DigitalSignature  string `json:"digitalSignature"`
	SigningKeyVersion string `json:"signingKeyVersion"`
}

// CanonicalExclusions names the fields left out of the canonical form
// because they are the values being computed.
var CanonicalExclusions = []string{"checksum", "digitalSignature"}

// RecordInput is what callers supply; identity, timestamps, and signature
// material are filled in by the recorder.
type RecordInput struct {
	Timestamp time.Time
	CompanyID id.CompanyID
	UserID    id.UserID
	UserEmail string

	EventType   EventType
	Category    string
	Severity    Severity
	Outcome     Outcome
	Action      string
	Description string

	ResourceType string
	ResourceID   string

	OldValues     map[string]any
	NewValues     map[string]any
	ChangedFields []string

	Tags     []string
	Metadata map[string]any
}

// Validate enforces the mandatory-field contract before anything is signed.
func (in RecordInput) Validate() error {
	if in.CompanyID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "companyId is required")
	}
	if in.EventType == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "eventType is required")
	}
	if !in.EventType.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown eventType %q", in.EventType)
	}
	if in.Category == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "category is required")
	}
	if in.Action == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "action is required")
	}
	if in.Description == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "description is required")
	}
	return nil
}

// NormalizeTimestamp pins a timestamp to UTC at microsecond precision so the
// canonical form survives a database round trip byte-for-byte.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
