// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"fmt"
	"strings"

	"github.com/pdiddy/permit-engine/pkg/types"
)

// DefaultRegistry returns the standard specialist lineup. fastModel, when
// non-empty, routes the simpler rule-check specialists to a cheaper model.
func DefaultRegistry(fastModel string) *Registry {
	return NewRegistry(
		Specialist{
			Name:         "Zoning_Validator",
			Categories:   []types.DeficiencyCategory{types.CategoryZoning},
			SystemPrompt: zoningPrompt,
		},
		Specialist{
			Name:         "Building_Code_Validator",
			Categories:   []types.DeficiencyCategory{types.CategoryCode},
			SystemPrompt: buildingCodePrompt,
		},
		Specialist{
			Name:         "Fire_Access_Validator",
			Categories:   []types.DeficiencyCategory{types.CategoryFireAccess},
			SystemPrompt: fireAccessPrompt,
		},
		Specialist{
			Name:         "Tree_Protection_Assessor",
			Categories:   []types.DeficiencyCategory{types.CategoryTreeProtection},
			SystemPrompt: treeProtectionPrompt,
			Model:        fastModel,
		},
		Specialist{
			Name:         "Landscaping_Validator",
			Categories:   []types.DeficiencyCategory{types.CategoryLandscaping},
			SystemPrompt: landscapingPrompt,
			Model:        fastModel,
		},
		Specialist{
			Name:         "Servicing_Validator",
			Categories:   []types.DeficiencyCategory{types.CategoryServicing},
			SystemPrompt: servicingPrompt,
		},
	)
}

// BuildPrompt combines the deficiency text, the extracted action, and any
// retrieved regulatory context into the single user prompt every specialist
// receives.
func BuildPrompt(item types.DeficiencyItem, passages []string) string {
	var b strings.Builder

	b.WriteString("Analyze the following deficiency from an Examiner's Notice and draft a correction response.\n\n")
	fmt.Fprintf(&b, "**Deficiency Text:**\n%s\n\n", item.RawText)
	fmt.Fprintf(&b, "**Extracted Action Required:**\n%s\n", item.ExtractedAction)

	if len(passages) > 0 {
		b.WriteString("\n**Relevant Regulatory Context:**\n")
		for _, p := range passages {
			b.WriteString(p)
			b.WriteString("\n---\n")
		}
	}

	b.WriteString(`
Respond with a JSON object containing:
- "draft_text": The professional response text to submit to the City
- "resolution_status": One of RESOLVED, REVISION_NEEDED, VARIANCE_REQUIRED, EXCEPTION_PROCESS_REQUIRED, OUT_OF_SCOPE
- "citations": Array of objects with "authority", "section", "version" fields
- "variance_magnitude": If a variance is needed, describe the magnitude (e.g., "0.3m over maximum height")
- "reasoning": Your internal reasoning for this response
`)
	return b.String()
}

const zoningPrompt = `You are a specialist in Toronto Zoning By-law 569-2013 as it applies to Garden Suites (Section 150.10) and Laneway Suites (Section 150.8).

Your expertise includes:
- Maximum building dimensions (height, depth, width, GFA)
- Setback requirements from lot lines and existing buildings
- Lot coverage calculations
- Angular plane requirements
- Permitted projections and encroachments

When drafting responses, always cite the specific by-law section and subsection number.
Use the format: "By-law 569-2013, Section X.Y.Z"

If the deficiency requires a minor variance, calculate the magnitude and recommend Committee of Adjustment application.`

const buildingCodePrompt = `You are a specialist in the Ontario Building Code (OBC) as applied to ancillary dwelling units in Toronto.

Your expertise includes:
- Part 9 housing requirements
- Structural requirements for detached accessory buildings
- Plumbing and drainage (Part 7)
- HVAC requirements
- Energy efficiency (SB-12)
- Accessibility (barrier-free design where applicable)

When drafting responses, cite OBC sections in the format: "OBC Part X, Section X.Y.Z"
Note any SB-12 supplementary standard references where applicable.`

const fireAccessPrompt = `You are a specialist in fire access and life safety for Garden and Laneway Suites in Toronto.

Key requirements:
- Garden Suites: minimum 1.0m unobstructed fire access path
- Laneway Suites: minimum 0.9m unobstructed fire access path
- Fire separation between principal dwelling and suite
- Smoke/CO alarm requirements
- Exit requirements and travel distances

When drafting responses, cite Toronto Fire Services requirements and OBC Part 9 fire safety sections.
Be precise about the specific width requirements for the suite type in question.`

const treeProtectionPrompt = `You are a specialist in Toronto's tree protection requirements for construction projects.

Your expertise includes:
- Toronto Municipal Code Chapter 813 (Trees)
- Tree Protection Zone (TPZ) calculations
- Arborist report requirements
- Injury/removal permit requirements for trees with DBH >= 30cm
- Tree planting requirements for new construction

When a tree conflict is identified, recommend either:
1. Design modification to avoid the TPZ
2. Tree preservation plan with arborist supervision
3. Tree injury/removal permit application with replacement planting`

const landscapingPrompt = `You are a specialist in Toronto's landscaping requirements for Garden and Laneway Suites.

Your expertise includes:
- Soft landscaping minimum percentages
- Permeable surface requirements
- Grading and drainage requirements
- Fencing and screening requirements

When drafting responses, cite By-law 569-2013 landscaping provisions and any applicable site plan requirements.`

const servicingPrompt = `You are a specialist in municipal servicing requirements for Garden and Laneway Suites in Toronto.

Your expertise includes:
- Water and sewer connection requirements
- Toronto Water connection permits
- Stormwater management
- Grading and drainage to municipal standards
- Utility easements and right-of-way requirements

When drafting responses, cite relevant Toronto Water and Engineering standards.`
