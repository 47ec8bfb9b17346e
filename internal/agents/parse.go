// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/permit-engine/pkg/types"
)

// parseFailureReason marks responses synthesized from unparseable output.
const parseFailureReason = "failed to parse structured output"

// rawResponse mirrors the JSON object specialists are instructed to return.
type rawResponse struct {
	DraftText         string        `json:"draft_text"`
	ResolutionStatus  string        `json:"resolution_status"`
	Citations         []rawCitation `json:"citations"`
	VarianceMagnitude string        `json:"variance_magnitude"`
	Reasoning         string        `json:"reasoning"`
}

type rawCitation struct {
	Authority string `json:"authority"`
	Section   string `json:"section"`
	Version   string `json:"version"`
}

// ParseResponse normalizes backend output into a GeneratedResponse. The
// backend wraps its JSON in markdown fences or commentary often enough that
// parsing is tolerant: fences are stripped, then only the span from the
// first '{' to the last '}' is decoded. Any decode failure degrades to an
// OUT_OF_SCOPE response preserving the raw text for human review; a
// malformed backend response never aborts the item.
func ParseResponse(deficiencyID uuid.UUID, output string) types.GeneratedResponse {
	span := extractJSONSpan(stripCodeFence(output))

	var raw rawResponse
	if span == "" || json.Unmarshal([]byte(span), &raw) != nil {
		return types.GeneratedResponse{
			DeficiencyID:     deficiencyID,
			DraftText:        output,
			Citations:        []types.Citation{},
			ResolutionStatus: types.StatusOutOfScope,
			Reasoning:        parseFailureReason,
		}
	}

	citations := make([]types.Citation, 0, len(raw.Citations))
	for _, c := range raw.Citations {
		citations = append(citations, types.Citation{
			Authority: defaultString(c.Authority, "Unknown"),
			Section:   defaultString(c.Section, "Unknown"),
			Version:   defaultString(c.Version, "Current"),
		})
	}

	return types.GeneratedResponse{
		DeficiencyID:      deficiencyID,
		DraftText:         raw.DraftText,
		Citations:         citations,
		ResolutionStatus:  normalizeStatus(raw.ResolutionStatus),
		VarianceMagnitude: raw.VarianceMagnitude,
		Reasoning:         raw.Reasoning,
	}
}

// stripCodeFence removes a markdown code fence wrapping, with or without a
// language tag.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.Contains(trimmed, "```") {
		return trimmed
	}

	if i := strings.Index(trimmed, "```json"); i >= 0 {
		trimmed = trimmed[i+len("```json"):]
	} else if i := strings.Index(trimmed, "```"); i >= 0 {
		trimmed = trimmed[i+len("```"):]
	}
	if i := strings.Index(trimmed, "```"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.TrimSpace(trimmed)
}

// extractJSONSpan returns the substring from the first '{' to the last '}',
// tolerating leading and trailing commentary. Empty when no braces exist.
func extractJSONSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// normalizeStatus maps the backend's resolution_status onto the known enum.
// Unknown or missing values become OUT_OF_SCOPE rather than an error.
func normalizeStatus(s string) types.ResolutionStatus {
	switch types.ResolutionStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case types.StatusResolved:
		return types.StatusResolved
	case types.StatusRevisionNeeded:
		return types.StatusRevisionNeeded
	case types.StatusVarianceRequired:
		return types.StatusVarianceRequired
	case types.StatusExceptionProcess:
		return types.StatusExceptionProcess
	case types.StatusOutOfScope:
		return types.StatusOutOfScope
	default:
		return types.StatusOutOfScope
	}
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
