// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/permit-engine/internal/backoff"
	"github.com/pdiddy/permit-engine/pkg/types"
)

func TestNew_SelectsProvider(t *testing.T) {
	p, err := New(types.LLMConfig{Provider: "gemini", Model: "gemini-2.5-flash", APIKey: "k"}, "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())

	p, err = New(types.LLMConfig{Provider: "openrouter", APIKey: "k"}, "")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name())

	// Empty provider defaults to gemini.
	p, err = New(types.LLMConfig{APIKey: "k"}, "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())

	_, err = New(types.LLMConfig{Provider: "bedrock"}, "")
	assert.Error(t, err)
}

func TestNew_ModelOverride(t *testing.T) {
	p, err := New(types.LLMConfig{Provider: "gemini", Model: "gemini-2.5-pro", APIKey: "k"}, "gemini-2.5-flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", p.(*GeminiProvider).Model)
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath string
	var gotReq geminiRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "  drafted response  "}}}},
			},
		})
	}))
	defer ts.Close()

	old := geminiAPIBase
	geminiAPIBase = ts.URL
	defer func() { geminiAPIBase = old }()

	p := &GeminiProvider{Client: ts.Client(), Model: "gemini-2.5-flash", APIKey: "test-key"}
	out, err := p.Generate(context.Background(), "draft it", "you are a specialist")
	require.NoError(t, err)

	assert.Equal(t, "drafted response", out)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "draft it", gotReq.Contents[0].Parts[0].Text)
	require.NotNil(t, gotReq.SystemInstruction)
	assert.Equal(t, "you are a specialist", gotReq.SystemInstruction.Parts[0].Text)
}

func TestGeminiGenerate_RateLimitErrorIsClassifiable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"status": "RESOURCE_EXHAUSTED", "message": "retryDelay: 7s"}}`))
	}))
	defer ts.Close()

	old := geminiAPIBase
	geminiAPIBase = ts.URL
	defer func() { geminiAPIBase = old }()

	p := &GeminiProvider{Client: ts.Client(), Model: "gemini-2.5-flash", APIKey: "test-key"}
	_, err := p.Generate(context.Background(), "draft it", "")
	require.Error(t, err)

	assert.True(t, backoff.IsRateLimited(err))
	delay, ok := backoff.ParseRetryDelay(err.Error())
	require.True(t, ok)
	assert.Equal(t, "7s", delay.String())
}

func TestGeminiGenerate_MissingKey(t *testing.T) {
	p := &GeminiProvider{Client: http.DefaultClient, Model: "gemini-2.5-flash"}
	_, err := p.Generate(context.Background(), "x", "")
	assert.ErrorContains(t, err, "API key not set")
}

func TestOpenRouterGenerate(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "drafted"}},
			},
		})
	}))
	defer ts.Close()

	old := openRouterAPIBase
	openRouterAPIBase = ts.URL
	defer func() { openRouterAPIBase = old }()

	p := &OpenRouterProvider{Client: ts.Client(), Model: "anthropic/claude-3.5-sonnet", APIKey: "or-key"}
	out, err := p.Generate(context.Background(), "draft it", "be strict")
	require.NoError(t, err)

	assert.Equal(t, "drafted", out)
	assert.Equal(t, "Bearer or-key", gotAuth)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.InDelta(t, generationTemperature, gotReq.Temperature, 1e-9)
}

func TestOpenRouterGenerate_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer ts.Close()

	old := openRouterAPIBase
	openRouterAPIBase = ts.URL
	defer func() { openRouterAPIBase = old }()

	p := &OpenRouterProvider{Client: ts.Client(), Model: "m", APIKey: "k"}
	_, err := p.Generate(context.Background(), "x", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.False(t, backoff.IsRateLimited(err))
}
