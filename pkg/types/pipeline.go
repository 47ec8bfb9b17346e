// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "github.com/google/uuid"

// ItemOutcome records what happened to one routed deficiency item.
// Response is non-nil for resolved items; Error is non-empty for failed ones.
// Exactly one of the two is set.
type ItemOutcome struct {
	// Deficiency is the input item this outcome answers.
	Deficiency DeficiencyItem `json:"deficiency" yaml:"deficiency"`

	// Response is the drafted correction response, nil on failure.
	Response *GeneratedResponse `json:"response" yaml:"response"`

	// Specialist names the specialist that handled the item.
	Specialist string `json:"specialist" yaml:"specialist"`

	// Error carries the failure message when processing the item failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Resolved reports whether the item produced a usable response.
func (o ItemOutcome) Resolved() bool { return o.Response != nil }

// UnhandledItem records an input item no specialist claimed.
type UnhandledItem struct {
	// Deficiency is the unclaimed input item.
	Deficiency DeficiencyItem `json:"deficiency" yaml:"deficiency"`

	// Reason names why the item was not handled.
	Reason string `json:"reason" yaml:"reason"`
}

// Summary aggregates counts for one pipeline run. ByCategory tallies the
// input items, including unhandled and failed ones, so the summary reflects
// everything that was seen.
type Summary struct {
	// Total is the number of input items.
	Total int `json:"total" yaml:"total"`

	// Processed is the number of items that produced a response.
	Processed int `json:"processed" yaml:"processed"`

	// Unhandled is the number of items no specialist claimed.
	Unhandled int `json:"unhandled" yaml:"unhandled"`

	// ByCategory counts input items per category.
	ByCategory map[string]int `json:"by_category" yaml:"by_category"`
}

// PipelineResult is the aggregate output of one run. It is assembled once
// after all items are processed and not modified afterwards. Every input item
// appears in exactly one of Outcomes or UnhandledItems, and Outcomes preserves
// input order.
type PipelineResult struct {
	// SessionID identifies the run's session.
	SessionID uuid.UUID `json:"session_id" yaml:"session_id"`

	// PropertyAddress is the subject property.
	PropertyAddress string `json:"property_address" yaml:"property_address"`

	// SuiteType is GARDEN or LANEWAY.
	SuiteType SuiteType `json:"suite_type" yaml:"suite_type"`

	// Status is the session's terminal status.
	Status SessionStatus `json:"status" yaml:"status"`

	// Summary aggregates the run's counts.
	Summary Summary `json:"summary" yaml:"summary"`

	// Outcomes lists routed items in input order.
	Outcomes []ItemOutcome `json:"outcomes" yaml:"outcomes"`

	// UnhandledItems lists items no specialist claimed, in input order.
	UnhandledItems []UnhandledItem `json:"unhandled" yaml:"unhandled"`
}
