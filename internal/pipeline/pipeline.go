// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the resolution orchestration loop: route each
// deficiency to a specialist, retrieve regulatory context, generate and
// audit a draft, and aggregate the outcomes into one result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/permit-engine/internal/agents"
	"github.com/pdiddy/permit-engine/internal/audit"
	"github.com/pdiddy/permit-engine/internal/metrics"
	"github.com/pdiddy/permit-engine/pkg/types"
)

// ContextRetriever fetches regulatory passages for a query. Implementations
// degrade to an empty result on failure; retrieval never aborts an item.
type ContextRetriever interface {
	Search(ctx context.Context, query string, k int) []string
}

// defaultTopK is how many passages are requested per item when the
// orchestrator is not configured otherwise.
const defaultTopK = 5

// Orchestrator drives one pipeline run at a time. The registry, generator,
// auditor, and retriever are read-only shared resources; concurrent runs are
// safe because all per-run state lives in Run's locals.
type Orchestrator struct {
	// Registry routes items to specialists.
	Registry *agents.Registry

	// Generator drafts responses.
	Generator *agents.Generator

	// Auditor critiques drafts. Optional; nil skips the audit pass.
	Auditor *audit.Auditor

	// Retriever supplies regulatory context. Optional; nil generates
	// without context.
	Retriever ContextRetriever

	// TopK is the number of passages requested per item.
	TopK int

	// Logger records per-item progress. Optional.
	Logger *slog.Logger

	// Metrics records run and item counters. Optional.
	Metrics *metrics.Collector
}

// Run processes the session's items sequentially and returns the aggregate
// result. Per-item failures are absorbed into the result; the returned error
// is non-nil only for pipeline-level failures (an unroutable setup or a
// cancelled context), in which case exactly one error event is emitted and
// the partial result is still returned.
func (o *Orchestrator) Run(ctx context.Context, session types.PermitSession, items []types.DeficiencyItem, reporter Reporter) (types.PipelineResult, error) {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if o.Registry == nil || o.Generator == nil {
		err := fmt.Errorf("orchestrator not configured: registry and generator are required")
		reporter.Emit(Event{Type: EventError, Data: ErrorData{Message: err.Error()}})
		return types.PipelineResult{}, err
	}

	started := time.Now()
	o.Metrics.RunStarted()
	defer func() { o.Metrics.RunFinished(time.Since(started)) }()

	result := types.PipelineResult{
		SessionID:       session.ID,
		PropertyAddress: session.PropertyAddress,
		SuiteType:       session.SuiteType,
		Status:          types.SessionAnalyzing,
		Outcomes:        []types.ItemOutcome{},
		UnhandledItems:  []types.UnhandledItem{},
	}

	total := len(items)
	reporter.Emit(progress(StageAnalyze, "Routing to specialist agents", 45))

	for idx, item := range items {
		if err := ctx.Err(); err != nil {
			result.Status = types.SessionError
			result.Summary = summarize(items, result)
			reporter.Emit(Event{Type: EventError, Data: ErrorData{Message: err.Error()}})
			return result, err
		}

		spec, ok := o.Registry.Route(item)
		if !ok {
			result.UnhandledItems = append(result.UnhandledItems, types.UnhandledItem{
				Deficiency: item,
				Reason:     fmt.Sprintf("no specialist for category %s", item.Category),
			})
			o.Metrics.ItemProcessed("unhandled")
			o.logger().Info("item unhandled", "category", item.Category, "deficiency", item.ID)
		} else {
			reporter.Emit(Event{Type: EventItem, Data: ItemData{
				Index:    idx + 1,
				Total:    total,
				Category: string(item.Category),
				Action:   item.ExtractedAction,
				Agent:    spec.Name,
			}})
			result.Outcomes = append(result.Outcomes, o.processItem(ctx, spec, item))
		}

		pct := 45 + int(float64(idx)/float64(max(total, 1))*40)
		reporter.Emit(progress(StageAnalyze, fmt.Sprintf("Processed item %d of %d", idx+1, total), pct))
	}

	reporter.Emit(progress(StageDraft, "Packaging response document", 90))

	result.Status = types.SessionComplete
	result.Summary = summarize(items, result)

	reporter.Emit(progress(StageComplete, "Analysis complete", 100))
	reporter.Emit(Event{Type: EventComplete, Data: result})
	return result, nil
}

// processItem runs retrieval, generation, and audit for one routed item.
// Every failure mode is absorbed into the outcome.
func (o *Orchestrator) processItem(ctx context.Context, spec agents.Specialist, item types.DeficiencyItem) types.ItemOutcome {
	passages := o.retrieve(ctx, item)

	resp, err := o.Generator.Generate(ctx, spec, item, passages)
	if err != nil {
		o.Metrics.ItemProcessed("failed")
		o.logger().Warn("item failed", "specialist", spec.Name, "deficiency", item.ID, "err", err)
		return types.ItemOutcome{Deficiency: item, Specialist: spec.Name, Error: err.Error()}
	}

	if o.Auditor != nil {
		verdict := o.Auditor.Audit(ctx, item, resp, passages)
		if verdict.Status == types.AuditRejectAndRevise && verdict.RevisedDraft != "" {
			// The audit rewrites prose only: the original classification and
			// citations stand, with the critique kept in the reasoning trail.
			resp.DraftText = verdict.RevisedDraft
			resp.Reasoning += "\n\nAudit feedback: " + verdict.Feedback
		}
	}

	o.Metrics.ItemProcessed("resolved")
	return types.ItemOutcome{Deficiency: item, Response: &resp, Specialist: spec.Name}
}

// retrieve fetches regulatory context for the item. The extracted action is
// the better query when present; the raw text is the fallback.
func (o *Orchestrator) retrieve(ctx context.Context, item types.DeficiencyItem) []string {
	if o.Retriever == nil {
		return nil
	}
	query := item.ExtractedAction
	if query == "" {
		query = item.RawText
	}
	k := o.TopK
	if k <= 0 {
		k = defaultTopK
	}
	return o.Retriever.Search(ctx, query, k)
}

// summarize tallies the run over the input items, so categories of failed
// and unhandled items still appear in the breakdown.
func summarize(items []types.DeficiencyItem, result types.PipelineResult) types.Summary {
	s := types.Summary{
		Total:      len(items),
		Unhandled:  len(result.UnhandledItems),
		ByCategory: map[string]int{},
	}
	for _, item := range items {
		s.ByCategory[string(item.Category)]++
	}
	for _, out := range result.Outcomes {
		if out.Resolved() {
			s.Processed++
		}
	}
	return s
}

func progress(stage Stage, description string, percent int) Event {
	return Event{Type: EventProgress, Data: ProgressData{
		Stage:       stage,
		Description: description,
		Percent:     percent,
	}}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
