package models

import (
	"time"

	id "attest/pkg/domain"
)

// FindingStatus classifies how well a requirement was met.
type FindingStatus string

const (
	StatusCompliant          FindingStatus = "COMPLIANT"
	StatusPartiallyCompliant FindingStatus = "PARTIALLY_COMPLIANT"
	StatusNonCompliant       FindingStatus = "NON_COMPLIANT"
	StatusNotApplicable      FindingStatus = "NOT_APPLICABLE"
)

// Score bands. The bounds are inclusive: exactly 95 is COMPLIANT, exactly
// 70 is PARTIALLY_COMPLIANT.
const (
	CompliantThreshold          = 95.0
	PartiallyCompliantThreshold = 70.0
)

// StatusForScore maps a 0-100 score onto a finding status.
func StatusForScore(score float64) FindingStatus {
	switch {
	case score >= CompliantThreshold:
		return StatusCompliant
	case score >= PartiallyCompliantThreshold:
		return StatusPartiallyCompliant
	default:
		return StatusNonCompliant
	}
}

// RiskLevel grades the exposure a finding represents.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskFor grades a finding. A mandatory requirement that is NON_COMPLIANT
// is always CRITICAL regardless of its numeric score.
func RiskFor(mandatory bool, status FindingStatus, score float64) RiskLevel {
	if mandatory && status == StatusNonCompliant {
		return RiskCritical
	}
	switch {
	case score >= 70:
		return RiskLow
	case score >= 50:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Evidence links a finding to one indexed event with a content hash for
// chain-of-custody.
type Evidence struct {
	EventID     id.EventID `json:"eventId"`
	Timestamp   time.Time  `json:"timestamp"`
	Description string     `json:"description,omitempty"`
	ContentHash string     `json:"contentHash"`
}

// Finding is the per-requirement assessment result.
type Finding struct {
	RequirementID string        `json:"requirementId"`
	Title         string        `json:"title,omitempty"`
	Status        FindingStatus `json:"status"`
	Score         float64       `json:"score"`
	Evidence      []Evidence    `json:"evidence,omitempty"`
	Gaps          []string      `json:"gaps,omitempty"`
	RiskLevel     RiskLevel     `json:"riskLevel"`
	Remediation   []string      `json:"remediation,omitempty"`
}

// ReportStatus is the report lifecycle state. DRAFT -> FINAL is one-way and
// guarded; FINAL -> SUBMITTED is the only legal move afterwards.
type ReportStatus string

const (
	ReportDraft     ReportStatus = "DRAFT"
	ReportFinal     ReportStatus = "FINAL"
	ReportSubmitted ReportStatus = "SUBMITTED"
)

// Period is the assessment window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report is a signed compliance assessment.
type Report struct {
	ReportID         id.ReportID  `json:"reportId"`
	Framework        string       `json:"framework"`
	FrameworkVersion string       `json:"frameworkVersion"`
	ReportPeriod     Period       `json:"reportPeriod"`
	GeneratedAt      time.Time    `json:"generatedAt"`
	GeneratedBy      string       `json:"generatedBy"`
	CompanyID        id.CompanyID `json:"companyId"`
	Status           ReportStatus `json:"status"`
	OverallScore     float64      `json:"overallScore"`
	Findings         []Finding    `json:"findings"`
	Recommendations  []string     `json:"recommendations,omitempty"`

	Checksum          string `json:"checksum,omitempty"`
	DigitalSignature  string `json:"digitalSignature,omitempty"`
	SigningKeyVersion string `json:"signingKeyVersion,omitempty"`
}

// CanonicalExclusions lists the fields excluded from a report's canonical
// form. Status is excluded because FINAL -> SUBMITTED is a legal transition
// after signing and must not invalidate the signature.
var CanonicalExclusions = []string{"checksum", "digitalSignature", "status"}
