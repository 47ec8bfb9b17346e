// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// openRouterAPIBase is the OpenAI-compatible chat completions root. Declared
// as a var so tests can substitute an httptest server.
var openRouterAPIBase = "https://openrouter.ai/api/v1"

// OpenRouterProvider calls an OpenAI-compatible chat completions API.
type OpenRouterProvider struct {
	Client *http.Client
	Model  string
	APIKey string
}

// Name returns the backend identifier.
func (p *OpenRouterProvider) Name() string { return "openrouter" }

// Generate sends the prompt as a chat completion. The system instruction
// becomes a system-role message. Non-2xx responses become errors carrying
// the status code and body for rate-limit classification.
func (p *OpenRouterProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("openrouter API key not set")
	}

	var messages []chatMessage
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       p.Model,
		Messages:    messages,
		Temperature: generationTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterAPIBase+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openrouter API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("parsing chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}

	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// OpenAI-compatible JSON structures.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
