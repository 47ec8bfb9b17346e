// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit reviews drafted correction responses before they are
// returned, rejecting and revising drafts that would not survive an
// examiner's scrutiny.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/permit-engine/internal/backoff"
	"github.com/pdiddy/permit-engine/pkg/types"
)

// Backend is the generation seam, identical in shape to the one the
// specialists use.
type Backend interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Auditor runs a second-pass critique over each draft. Auditing is
// best-effort: a failed or unparseable audit approves the original draft
// unchanged rather than failing the item.
type Auditor struct {
	// Backend performs the critique call.
	Backend Backend

	// Retry wraps the critique call. Optional; nil audits call once.
	Retry *backoff.Controller

	// Logger records audit outcomes and degradations. Optional.
	Logger *slog.Logger
}

// rawVerdict mirrors the JSON object the auditor is instructed to return.
type rawVerdict struct {
	Status       string `json:"status"`
	Feedback     string `json:"feedback"`
	RevisedDraft string `json:"revised_draft"`
}

// Audit critiques one draft against the deficiency it answers and the
// regulatory context it was drafted from. The returned verdict is always
// usable: backend failures and unparseable critiques approve the draft.
func (a *Auditor) Audit(ctx context.Context, item types.DeficiencyItem, draft types.GeneratedResponse, passages []string) types.AuditVerdict {
	approved := types.AuditVerdict{Status: types.AuditApproved}
	if a == nil || a.Backend == nil {
		return approved
	}

	prompt := buildAuditPrompt(item, draft, passages)
	out, err := a.generate(ctx, prompt)
	if err != nil {
		a.logger().Warn("audit call failed, keeping original draft",
			"deficiency", item.ID, "err", err)
		return approved
	}

	verdict, ok := parseVerdict(out)
	if !ok {
		a.logger().Warn("audit output not parseable, keeping original draft",
			"deficiency", item.ID)
		return approved
	}

	if verdict.Status == types.AuditRejectAndRevise {
		a.logger().Info("audit rejected draft",
			"deficiency", item.ID, "feedback", verdict.Feedback)
	}
	return verdict
}

func (a *Auditor) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Auditor) generate(ctx context.Context, prompt string) (string, error) {
	call := func() (string, error) {
		return a.Backend.Generate(ctx, prompt, auditSystemPrompt)
	}
	if a.Retry != nil {
		return a.Retry.Execute(ctx, call)
	}
	return call()
}

// parseVerdict applies the same tolerant decoding the specialists get:
// strip fences, decode the outermost brace span. The second return is
// false when no verdict could be recovered.
func parseVerdict(output string) (types.AuditVerdict, bool) {
	span := jsonSpan(stripFence(output))
	if span == "" {
		return types.AuditVerdict{}, false
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return types.AuditVerdict{}, false
	}

	switch types.AuditStatus(strings.ToUpper(strings.TrimSpace(raw.Status))) {
	case types.AuditApproved:
		return types.AuditVerdict{Status: types.AuditApproved, Feedback: raw.Feedback}, true
	case types.AuditRejectAndRevise:
		return types.AuditVerdict{
			Status:       types.AuditRejectAndRevise,
			Feedback:     raw.Feedback,
			RevisedDraft: raw.RevisedDraft,
		}, true
	default:
		return types.AuditVerdict{}, false
	}
}

func stripFence(s string) string {
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

func jsonSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func buildAuditPrompt(item types.DeficiencyItem, draft types.GeneratedResponse, passages []string) string {
	var b strings.Builder

	b.WriteString("Review the following drafted correction response before it is submitted to the City.\n\n")
	fmt.Fprintf(&b, "**Original Deficiency:**\n%s\n\n", item.RawText)
	fmt.Fprintf(&b, "**Claimed Resolution Status:** %s\n\n", draft.ResolutionStatus)
	fmt.Fprintf(&b, "**Drafted Response:**\n%s\n\n", draft.DraftText)

	if len(draft.Citations) > 0 {
		b.WriteString("**Citations in the Draft:**\n")
		for _, c := range draft.Citations {
			fmt.Fprintf(&b, "- %s, %s (%s)\n", c.Authority, c.Section, c.Version)
		}
		b.WriteString("\n")
	}

	if len(passages) > 0 {
		b.WriteString("**Regulatory Context the Draft Was Based On:**\n")
		for _, p := range passages {
			b.WriteString(p)
			b.WriteString("\n---\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond with a JSON object containing:
- "status": "APPROVED" if the draft is accurate, specific, and properly cited; "REJECT_AND_REVISE" otherwise
- "feedback": Your critique of the draft (required when rejecting)
- "revised_draft": Your corrected response text (required when rejecting)
`)
	return b.String()
}

const auditSystemPrompt = `You are a senior Professional Engineer (P.Eng.) reviewing permit correction responses before submission to the City of Toronto. You have thirty years of experience with Examiner's Notices and you know exactly what gets a resubmission rejected.

Critique the draft ruthlessly:
- Does it actually address the deficiency as written, or does it sidestep it?
- Are the cited by-law and code sections real, specific, and applicable? A vague or wrong citation is grounds for rejection.
- Does the claimed resolution status match what the draft actually commits to? A draft that promises future work is not RESOLVED.
- Is the language professional and factual, with no hedging and no unsupported claims?
- Would the examiner who wrote the notice accept this response without a follow-up question?

If the draft fails any of these checks, reject it and write the revised response yourself. Keep the revision in the same professional register and preserve any correct citations. If the draft passes all checks, approve it.`
