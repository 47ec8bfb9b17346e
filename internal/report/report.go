// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a pipeline result for submission review: a JSON
// payload for tooling and a Markdown response document for humans.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/permit-engine/pkg/types"
)

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, result types.PipelineResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteMarkdown renders the result as a correction response document, one
// section per deficiency in notice order, with unhandled items listed for
// manual follow-up.
func WriteMarkdown(w io.Writer, result types.PipelineResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Correction Response — %s\n\n", result.PropertyAddress)
	fmt.Fprintf(&b, "Suite type: %s  \n", result.SuiteType)
	fmt.Fprintf(&b, "Session: %s\n\n", result.SessionID)

	fmt.Fprintf(&b, "**%d** deficiency item(s): **%d** drafted, **%d** failed, **%d** unhandled.\n\n",
		result.Summary.Total,
		result.Summary.Processed,
		len(result.Outcomes)-result.Summary.Processed,
		result.Summary.Unhandled)

	for i, out := range result.Outcomes {
		fmt.Fprintf(&b, "## Item %d — %s\n\n", i+1, out.Deficiency.Category)
		fmt.Fprintf(&b, "> %s\n\n", out.Deficiency.RawText)

		if !out.Resolved() {
			fmt.Fprintf(&b, "**Drafting failed** (%s): %s\n\n", out.Specialist, out.Error)
			continue
		}

		resp := out.Response
		fmt.Fprintf(&b, "**Status:** %s  \n", resp.ResolutionStatus)
		fmt.Fprintf(&b, "**Specialist:** %s\n\n", out.Specialist)
		fmt.Fprintf(&b, "%s\n\n", resp.DraftText)

		if resp.VarianceMagnitude != "" {
			fmt.Fprintf(&b, "**Variance magnitude:** %s\n\n", resp.VarianceMagnitude)
		}
		if len(resp.Citations) > 0 {
			b.WriteString("**Citations:**\n\n")
			for _, c := range resp.Citations {
				fmt.Fprintf(&b, "- %s, %s (%s)\n", c.Authority, c.Section, c.Version)
			}
			b.WriteString("\n")
		}
	}

	if len(result.UnhandledItems) > 0 {
		b.WriteString("## Unhandled Items\n\n")
		b.WriteString("These findings need manual attention:\n\n")
		for _, u := range result.UnhandledItems {
			fmt.Fprintf(&b, "- **%s** — %s (%s)\n", u.Deficiency.Category, u.Deficiency.RawText, u.Reason)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
