// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the domain records and configuration shared across
// pipeline stages.
package types

import (
	"time"

	"github.com/google/uuid"
)

// SuiteType identifies the ancillary dwelling type a permit session concerns.
type SuiteType string

const (
	SuiteGarden  SuiteType = "GARDEN"
	SuiteLaneway SuiteType = "LANEWAY"
)

// SessionStatus tracks a permit session through the pipeline.
type SessionStatus string

const (
	SessionIntake    SessionStatus = "INTAKE"
	SessionParsing   SessionStatus = "PARSING"
	SessionAnalyzing SessionStatus = "ANALYZING"
	SessionComplete  SessionStatus = "COMPLETE"
	SessionError     SessionStatus = "ERROR"
)

// PermitSession scopes one correction-response run. Sessions are created per
// run and own their deficiency items for the run's lifetime.
type PermitSession struct {
	// ID identifies the session.
	ID uuid.UUID `json:"id" yaml:"id"`

	// Status is the session's current pipeline stage.
	Status SessionStatus `json:"status" yaml:"status"`

	// PropertyAddress is the subject property.
	PropertyAddress string `json:"property_address" yaml:"property_address"`

	// SuiteType is GARDEN or LANEWAY.
	SuiteType SuiteType `json:"suite_type" yaml:"suite_type"`

	// LanewayAbutmentLength is the lot's laneway frontage in metres, when known.
	LanewayAbutmentLength float64 `json:"laneway_abutment_length,omitempty" yaml:"laneway_abutment_length,omitempty"`

	// CreatedAt is the session creation time.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// CompletedAt is set when the run finishes.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// NewSession creates a PermitSession in the INTAKE state.
func NewSession(address string, suite SuiteType) PermitSession {
	return PermitSession{
		ID:              uuid.New(),
		Status:          SessionIntake,
		PropertyAddress: address,
		SuiteType:       suite,
		CreatedAt:       time.Now().UTC(),
	}
}

// DeficiencyCategory classifies an examiner's finding by regulatory domain.
type DeficiencyCategory string

const (
	CategoryZoning         DeficiencyCategory = "ZONING"
	CategoryCode           DeficiencyCategory = "CODE"
	CategoryFireAccess     DeficiencyCategory = "FIRE_ACCESS"
	CategoryTreeProtection DeficiencyCategory = "TREE_PROTECTION"
	CategoryLandscaping    DeficiencyCategory = "LANDSCAPING"
	CategoryServicing      DeficiencyCategory = "SERVICING"
	CategoryOther          DeficiencyCategory = "OTHER"
)

// KnownCategory reports whether c is one of the defined categories.
func KnownCategory(c DeficiencyCategory) bool {
	switch c {
	case CategoryZoning, CategoryCode, CategoryFireAccess,
		CategoryTreeProtection, CategoryLandscaping, CategoryServicing,
		CategoryOther:
		return true
	}
	return false
}

// DeficiencyItem is one regulatory finding from an examiner's notice.
// Items are produced by the upstream extraction collaborator and are never
// mutated by the pipeline.
type DeficiencyItem struct {
	// ID identifies the item.
	ID uuid.UUID `json:"id" yaml:"id"`

	// SessionID links the item to its owning session.
	SessionID uuid.UUID `json:"session_id" yaml:"session_id"`

	// Category is the regulatory domain of the finding.
	Category DeficiencyCategory `json:"category" yaml:"category"`

	// RawText preserves the examiner's wording verbatim.
	RawText string `json:"raw_text" yaml:"raw_text"`

	// ExtractedAction is the corrective action the extractor identified.
	ExtractedAction string `json:"extracted_action" yaml:"extracted_action"`

	// OrderIndex preserves the item's position in the source notice.
	// Values are unique and dense within a session.
	OrderIndex int `json:"order_index" yaml:"order_index"`

	// Confidence is the extractor's certainty, between 0.0 and 1.0.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Citation references the regulatory authority a draft response relies on.
// Citations are value types embedded in a response.
type Citation struct {
	// Authority is the by-law, code, or standard cited (e.g. "By-law 569-2013").
	Authority string `json:"authority" yaml:"authority"`

	// Section is the section or subsection number.
	Section string `json:"section" yaml:"section"`

	// Version is the edition or amendment state cited.
	Version string `json:"version" yaml:"version"`
}

// ResolutionStatus classifies how a deficiency can be resolved.
type ResolutionStatus string

const (
	StatusResolved         ResolutionStatus = "RESOLVED"
	StatusRevisionNeeded   ResolutionStatus = "REVISION_NEEDED"
	StatusVarianceRequired ResolutionStatus = "VARIANCE_REQUIRED"
	// StatusExceptionProcess marks findings that can only be resolved through
	// a separate approval process (e.g. limiting distance agreement).
	StatusExceptionProcess ResolutionStatus = "EXCEPTION_PROCESS_REQUIRED"
	StatusOutOfScope       ResolutionStatus = "OUT_OF_SCOPE"
)

// GeneratedResponse is a specialist's drafted correction response for one
// deficiency. Exactly one response (or none, on hard failure) exists per item
// per run.
type GeneratedResponse struct {
	// DeficiencyID back-references the item this response answers.
	DeficiencyID uuid.UUID `json:"deficiency_id" yaml:"deficiency_id"`

	// DraftText is the professional response text to submit.
	DraftText string `json:"draft_text" yaml:"draft_text"`

	// Citations lists the regulatory references supporting the draft.
	// May be empty, never nil.
	Citations []Citation `json:"citations" yaml:"citations"`

	// ResolutionStatus classifies the resolution path.
	ResolutionStatus ResolutionStatus `json:"resolution_status" yaml:"resolution_status"`

	// VarianceMagnitude describes the extent of any variance required
	// (e.g. "0.3m over maximum height").
	VarianceMagnitude string `json:"variance_magnitude,omitempty" yaml:"variance_magnitude,omitempty"`

	// Reasoning records the specialist's internal reasoning, with audit
	// feedback appended when a revision was applied.
	Reasoning string `json:"reasoning" yaml:"reasoning"`
}

// AuditStatus is the auditor's verdict on a draft.
type AuditStatus string

const (
	AuditApproved        AuditStatus = "APPROVED"
	AuditRejectAndRevise AuditStatus = "REJECT_AND_REVISE"
)

// AuditVerdict is the outcome of a second-pass critique. Verdicts are
// consumed once by the orchestrator and never persisted.
type AuditVerdict struct {
	// Status is APPROVED or REJECT_AND_REVISE.
	Status AuditStatus `json:"status" yaml:"status"`

	// Feedback explains the verdict.
	Feedback string `json:"feedback" yaml:"feedback"`

	// RevisedDraft is the rewritten draft text when the auditor rejects.
	RevisedDraft string `json:"revised_draft,omitempty" yaml:"revised_draft,omitempty"`
}
