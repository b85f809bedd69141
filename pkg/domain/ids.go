// Package domain holds typed identifiers shared across modules.
//
// All ID generation goes through this package so the underlying format can
// change without touching call sites. Construct via New* inside services and
// Parse* at trust boundaries; direct casting bypasses validation.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// EventID identifies a single audit event. Generated once, never reused.
type EventID uuid.UUID

// ReportID identifies a compliance report.
type ReportID uuid.UUID

// AlertID identifies an alert.
type AlertID uuid.UUID

// CompanyID identifies a tenant.
type CompanyID uuid.UUID

// UserID identifies an acting user. Optional on events.
type UserID uuid.UUID

// NewEventID returns a fresh event identifier.
func NewEventID() EventID { return EventID(uuid.New()) }

// NewReportID returns a fresh report identifier.
func NewReportID() ReportID { return ReportID(uuid.New()) }

// NewAlertID returns a fresh alert identifier.
func NewAlertID() AlertID { return AlertID(uuid.New()) }

func (id EventID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id AlertID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id EventID) String() string   { return uuid.UUID(id).String() }
func (id ReportID) String() string  { return uuid.UUID(id).String() }
func (id AlertID) String() string   { return uuid.UUID(id).String() }
func (id CompanyID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }

// MarshalText makes typed IDs JSON-encode as their canonical string form.
func (id EventID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id ReportID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id AlertID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id CompanyID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *EventID) UnmarshalText(b []byte) error   { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ReportID) UnmarshalText(b []byte) error  { return unmarshalID((*uuid.UUID)(id), b) }
func (id *AlertID) UnmarshalText(b []byte) error   { return unmarshalID((*uuid.UUID)(id), b) }
func (id *CompanyID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *UserID) UnmarshalText(b []byte) error    { return unmarshalID((*uuid.UUID)(id), b) }

func unmarshalID(dst *uuid.UUID, b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*dst = u
	return nil
}

// ParseEventID constructs an EventID from external input.
func ParseEventID(s string) (EventID, error) {
	u, err := parseNonNil(s)
	if err != nil {
		return EventID{}, fmt.Errorf("event id: %w", err)
	}
	return EventID(u), nil
}

// ParseReportID constructs a ReportID from external input.
func ParseReportID(s string) (ReportID, error) {
	u, err := parseNonNil(s)
	if err != nil {
		return ReportID{}, fmt.Errorf("report id: %w", err)
	}
	return ReportID(u), nil
}

// ParseAlertID constructs an AlertID from external input.
func ParseAlertID(s string) (AlertID, error) {
	u, err := parseNonNil(s)
	if err != nil {
		return AlertID{}, fmt.Errorf("alert id: %w", err)
	}
	return AlertID(u), nil
}

// ParseCompanyID constructs a CompanyID from external input.
func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseNonNil(s)
	if err != nil {
		return CompanyID{}, fmt.Errorf("company id: %w", err)
	}
	return CompanyID(u), nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseNonNil(s)
	if err != nil {
		return UserID{}, fmt.Errorf("user id: %w", err)
	}
	return UserID(u), nil
}

func parseNonNil(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("nil uuid not allowed")
	}
	return u, nil
}
