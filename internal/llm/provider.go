// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the generation backend behind a single Provider
// interface with Gemini and OpenAI-compatible implementations. The provider
// is selected by explicit configuration, never by reading process state
// inside pipeline components.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/permit-engine/pkg/types"
)

// generationTemperature keeps drafts deterministic across runs.
const generationTemperature = 0.1

// Provider is the sole seam to the generation backend: one call taking a
// prompt and an optional system instruction, returning the backend's text.
type Provider interface {
	// Generate produces text for the combined prompt. Errors carry the
	// backend's message verbatim so the retry layer can classify them.
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)

	// Name identifies the backend for logs.
	Name() string
}

// New constructs a Provider for the configured backend and model. The model
// argument overrides cfg.Model when non-empty, which lets specialists run on
// cheaper models than the default.
func New(cfg types.LLMConfig, model string) (Provider, error) {
	if model == "" {
		model = cfg.Model
	}

	switch cfg.Provider {
	case "", "gemini":
		if model == "" {
			model = "gemini-2.5-flash"
		}
		return &GeminiProvider{
			Client: &http.Client{Timeout: 120 * time.Second},
			Model:  model,
			APIKey: cfg.APIKey,
		}, nil
	case "openrouter":
		if model == "" {
			model = "anthropic/claude-3.5-sonnet"
		}
		return &OpenRouterProvider{
			Client: &http.Client{Timeout: 120 * time.Second},
			Model:  model,
			APIKey: cfg.APIKey,
		}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: use gemini or openrouter", cfg.Provider)
	}
}
