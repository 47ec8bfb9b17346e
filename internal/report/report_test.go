// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/permit-engine/pkg/types"
)

func sampleResult() types.PipelineResult {
	resolvedID := uuid.New()
	return types.PipelineResult{
		SessionID:       uuid.New(),
		PropertyAddress: "21 Maple Ave",
		SuiteType:       types.SuiteGarden,
		Status:          types.SessionComplete,
		Summary: types.Summary{
			Total:     3,
			Processed: 1,
			Unhandled: 1,
			ByCategory: map[string]int{
				"ZONING": 1, "FIRE_ACCESS": 1, "OTHER": 1,
			},
		},
		Outcomes: []types.ItemOutcome{
			{
				Deficiency: types.DeficiencyItem{ID: resolvedID, Category: types.CategoryZoning, RawText: "Rear setback below minimum."},
				Specialist: "Zoning_Validator",
				Response: &types.GeneratedResponse{
					DeficiencyID:      resolvedID,
					DraftText:         "The site plan has been revised to provide a 1.5m rear setback.",
					ResolutionStatus:  types.StatusResolved,
					VarianceMagnitude: "",
					Citations: []types.Citation{
						{Authority: "By-law 569-2013", Section: "150.8.40", Version: "2023"},
					},
					Reasoning: "Setback complies after revision.",
				},
			},
			{
				Deficiency: types.DeficiencyItem{ID: uuid.New(), Category: types.CategoryFireAccess, RawText: "Access path obstructed."},
				Specialist: "Fire_Access_Validator",
				Error:      "backend unavailable",
			},
		},
		UnhandledItems: []types.UnhandledItem{
			{
				Deficiency: types.DeficiencyItem{ID: uuid.New(), Category: types.CategoryOther, RawText: "Provide updated survey."},
				Reason:     "no specialist for category OTHER",
			},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	result := sampleResult()
	require.NoError(t, WriteJSON(&buf, result))

	var decoded types.PipelineResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, result.SessionID, decoded.SessionID)
	assert.Equal(t, result.Summary, decoded.Summary)
	require.Len(t, decoded.Outcomes, 2)
	assert.Equal(t, "backend unavailable", decoded.Outcomes[1].Error)
	require.Len(t, decoded.UnhandledItems, 1)
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, sampleResult()))
	doc := buf.String()

	assert.Contains(t, doc, "# Correction Response — 21 Maple Ave")
	assert.Contains(t, doc, "**3** deficiency item(s): **1** drafted, **1** failed, **1** unhandled.")

	// Drafted item renders status, draft text, and citations.
	assert.Contains(t, doc, "## Item 1 — ZONING")
	assert.Contains(t, doc, "> Rear setback below minimum.")
	assert.Contains(t, doc, "**Status:** RESOLVED")
	assert.Contains(t, doc, "The site plan has been revised to provide a 1.5m rear setback.")
	assert.Contains(t, doc, "- By-law 569-2013, 150.8.40 (2023)")

	// Failed item renders the error instead of a draft.
	assert.Contains(t, doc, "## Item 2 — FIRE_ACCESS")
	assert.Contains(t, doc, "**Drafting failed** (Fire_Access_Validator): backend unavailable")

	// Unhandled items get the follow-up section.
	assert.Contains(t, doc, "## Unhandled Items")
	assert.Contains(t, doc, "no specialist for category OTHER")
}

func TestWriteMarkdown_VarianceAndNoUnhandled(t *testing.T) {
	result := sampleResult()
	result.Outcomes[0].Response.VarianceMagnitude = "0.3m over maximum height"
	result.UnhandledItems = nil

	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, result))
	doc := buf.String()

	assert.Contains(t, doc, "**Variance magnitude:** 0.3m over maximum height")
	assert.NotContains(t, doc, "## Unhandled Items")
}
