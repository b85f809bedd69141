// Package models defines compliance frameworks, assessment criteria, and
// signed compliance reports.
package models

import (
	"fmt"
	"strconv"
	"strings"

	auditmodels "attest/internal/audit/models"
	dErrors "attest/pkg/domain-errors"
)

// Operator is a field comparison applied client-side to indexed events.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// Condition is one field/operator/value tuple within a criterion.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Matches applies the condition to a single event field value.
func (c Condition) Matches(fieldValue any) bool {
	switch c.Operator {
	case OpEquals:
		return asString(fieldValue) == asString(c.Value)
	case OpNotEquals:
		return asString(fieldValue) != asString(c.Value)
	case OpContains:
		return strings.Contains(asString(fieldValue), asString(c.Value))
	case OpGreaterThan:
		a, aok := asFloat(fieldValue)
		b, bok := asFloat(c.Value)
		return aok && bok && a > b
	case OpLessThan:
		a, aok := asFloat(fieldValue)
		b, bok := asFloat(c.Value)
		return aok && bok && a < b
	default:
		return false
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AuditCriteria is one queryable test for a requirement. Threshold zero
// means the engine's configured default applies.
type AuditCriteria struct {
	EventTypes []auditmodels.EventType `json:"eventTypes,omitempty"`
	Categories []string                `json:"categories,omitempty"`
	Conditions []Condition             `json:"conditions,omitempty"`
	Threshold  int                     `json:"threshold,omitempty"`
}

// Requirement is one testable compliance obligation.
type Requirement struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Category      string          `json:"category,omitempty"`
	Mandatory     bool            `json:"mandatory"`
	EvidenceTypes []string        `json:"evidenceTypes,omitempty"`
	Criteria      []AuditCriteria `json:"auditCriteria"`
}

// Framework is an ordered set of requirements, e.g. GDPR or SOC 2.
type Framework struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Requirements []Requirement `json:"requirements"`
}

func (f Framework) Validate() error {
	if f.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "framework name is required")
	}
	seen := make(map[string]struct{}, len(f.Requirements))
	for _, req := range f.Requirements {
		if req.ID == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "requirement id is required")
		}
		if _, dup := seen[req.ID]; dup {
			return dErrors.Newf(dErrors.CodeInvalidInput, "duplicate requirement id %q", req.ID)
		}
		seen[req.ID] = struct{}{}
		for _, criteria := range req.Criteria {
			for _, cond := range criteria.Conditions {
				switch cond.Operator {
				case OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan:
				default:
					return dErrors.Newf(dErrors.CodeInvalidInput, "unknown condition operator %q", cond.Operator)
				}
			}
		}
	}
	return nil
}
