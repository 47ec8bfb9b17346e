// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agents routes deficiency items to specialist generators and turns
// backend output into structured correction responses.
package agents

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pdiddy/permit-engine/internal/backoff"
	"github.com/pdiddy/permit-engine/pkg/types"
)

// Backend is the single seam to the generation API: one call taking a prompt
// and an optional system instruction, returning the backend's text.
type Backend interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// ResponseCache stores backend responses keyed by prompt content. A nil
// cache is a permanent miss.
type ResponseCache interface {
	Get(ctx context.Context, prefix, content string) (string, bool)
	Set(ctx context.Context, prefix, content, value string)
}

// cachePrefix namespaces specialist draft responses in the cache.
const cachePrefix = "agent"

// Specialist is a registered generator bound to one or more deficiency
// categories. Specialists are values: prompt text, category set, and an
// optional model override, with generation shared across all of them.
type Specialist struct {
	// Name identifies the specialist in outcomes and progress events.
	Name string

	// Categories lists the deficiency categories this specialist claims.
	Categories []types.DeficiencyCategory

	// SystemPrompt is the specialist's fixed instruction text.
	SystemPrompt string

	// Model overrides the default generation model. Empty uses the default.
	Model string
}

// Handles reports whether the specialist claims the category.
func (s Specialist) Handles(category types.DeficiencyCategory) bool {
	for _, c := range s.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Registry is an ordered list of specialists. Routing is deterministic
// first-match; a category claimed by two specialists resolves to whichever
// appears earlier. Registries are configured once and read-only afterwards.
type Registry struct {
	specialists []Specialist
}

// NewRegistry builds a registry preserving the given order.
func NewRegistry(specialists ...Specialist) *Registry {
	return &Registry{specialists: specialists}
}

// Route returns the first specialist claiming the item's category. The
// second return is false when no specialist claims it; the caller records
// the item as unhandled rather than treating this as an error.
func (r *Registry) Route(item types.DeficiencyItem) (Specialist, bool) {
	for _, s := range r.specialists {
		if s.Handles(item.Category) {
			return s, true
		}
	}
	return Specialist{}, false
}

// Specialists returns the registry contents in order.
func (r *Registry) Specialists() []Specialist {
	return r.specialists
}

// Generator produces draft responses by calling the generation backend
// through the retry controller, with an optional response cache in front.
type Generator struct {
	// Default is the backend for specialists without a model override.
	Default Backend

	// Models maps model overrides to their backends.
	Models map[string]Backend

	// Retry wraps every backend call.
	Retry *backoff.Controller

	// Cache short-circuits repeat prompts. Optional.
	Cache ResponseCache

	// Logger records cache hits and parse degradations. Optional.
	Logger *slog.Logger
}

// Generate drafts a correction response for one deficiency. It always
// returns a response when the backend call succeeds: unparseable output
// degrades to an OUT_OF_SCOPE response carrying the raw text. The returned
// error is non-nil only when the backend call itself fails after retries.
func (g *Generator) Generate(ctx context.Context, spec Specialist, item types.DeficiencyItem, passages []string) (types.GeneratedResponse, error) {
	prompt := BuildPrompt(item, passages)
	cacheKey := spec.Model + "\n" + spec.SystemPrompt + "\n" + prompt

	if cached, ok := g.cacheGet(ctx, cacheKey); ok {
		var resp types.GeneratedResponse
		if err := json.Unmarshal([]byte(cached), &resp); err == nil {
			resp.DeficiencyID = item.ID
			if resp.Citations == nil {
				resp.Citations = []types.Citation{}
			}
			g.logger().Debug("draft served from cache", "specialist", spec.Name)
			return resp, nil
		}
	}

	backend := g.backendFor(spec.Model)
	out, err := g.Retry.Execute(ctx, func() (string, error) {
		return backend.Generate(ctx, prompt, spec.SystemPrompt)
	})
	if err != nil {
		return types.GeneratedResponse{}, err
	}

	resp := ParseResponse(item.ID, out)
	if resp.ResolutionStatus == types.StatusOutOfScope && resp.Reasoning == parseFailureReason {
		g.logger().Warn("backend output not parseable, draft degraded",
			"specialist", spec.Name, "deficiency", item.ID)
	}

	if data, err := json.Marshal(resp); err == nil {
		g.cacheSet(ctx, cacheKey, string(data))
	}
	return resp, nil
}

func (g *Generator) backendFor(model string) Backend {
	if model != "" {
		if b, ok := g.Models[model]; ok {
			return b
		}
	}
	return g.Default
}

func (g *Generator) cacheGet(ctx context.Context, content string) (string, bool) {
	if g.Cache == nil {
		return "", false
	}
	return g.Cache.Get(ctx, cachePrefix, content)
}

func (g *Generator) cacheSet(ctx context.Context, content, value string) {
	if g.Cache != nil {
		g.Cache.Set(ctx, cachePrefix, content, value)
	}
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
