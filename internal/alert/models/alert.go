// Package models defines security alerts raised by detection rules and
// integrity checks.
package models

import (
	"time"

	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
)

// Kind distinguishes what produced the alert.
type Kind string

const (
	KindSuspiciousActivity Kind = "SUSPICIOUS_ACTIVITY"
	KindIntegrityViolation Kind = "INTEGRITY_VIOLATION"
)

// Severity mirrors audit severities for the subset alerts use.
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Status is the alert lifecycle state. Transitions are strictly
// OPEN -> ACKNOWLEDGED -> RESOLVED; an alert cannot be resolved without
// someone first acknowledging it.
type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusResolved     Status = "RESOLVED"
)

// CanTransition reports whether moving from -> to is legal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusOpen:
		return to == StatusAcknowledged
	case StatusAcknowledged:
		return to == StatusResolved
	default:
		return false
	}
}

// Alert is one raised security concern.
type Alert struct {
	AlertID     id.AlertID     `json:"alertId"`
	CompanyID   id.CompanyID   `json:"companyId"`
	Kind        Kind           `json:"kind"`
	Rule        string         `json:"rule,omitempty"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	UserID      id.UserID      `json:"userId,omitzero"`
	EventIDs    []id.EventID   `json:"eventIds,omitempty"`
	Details     map[string]any `json:"details,omitempty"`

	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	AcknowledgedAt time.Time `json:"acknowledgedAt,omitzero"`
	AcknowledgedBy string    `json:"acknowledgedBy,omitempty"`
	ResolvedAt     time.Time `json:"resolvedAt,omitzero"`
	ResolvedBy     string    `json:"resolvedBy,omitempty"`
	Resolution     string    `json:"resolution,omitempty"`
}

// RaiseInput is what a rule or verifier supplies when raising an alert.
type RaiseInput struct {
	CompanyID   id.CompanyID
	Kind        Kind
	Rule        string
	Severity    Severity
	Title       string
	Description string
	UserID      id.UserID
	EventIDs    []id.EventID
	Details     map[string]any
}

func (in RaiseInput) Validate() error {
	if in.CompanyID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "companyId is required")
	}
	if in.Kind == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "kind is required")
	}
	if in.Severity == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "severity is required")
	}
	if in.Title == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}
	return nil
}
