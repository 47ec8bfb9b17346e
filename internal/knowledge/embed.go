// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// embeddingDims is the fixed output dimensionality for all stored vectors.
const embeddingDims = 768

// embedAPIBase is the Gemini embedContent endpoint root. Declared as a var
// so tests can substitute an httptest server.
var embedAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// Embedder turns text into a fixed-dimensionality vector. Implementations
// must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder calls the Gemini embedContent REST API.
type GeminiEmbedder struct {
	Client *http.Client
	Model  string
	APIKey string
}

// Embed returns the embedding vector for text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not set")
	}
	model := e.Model
	if model == "" {
		model = "gemini-embedding-001"
	}

	payload, err := json.Marshal(embedRequest{
		Content:              embedContent{Parts: []embedPart{{Text: text}}},
		OutputDimensionality: embeddingDims,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding embed request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:embedContent?key=%s", embedAPIBase, model, e.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var er embedResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("parsing embed response: %w", err)
	}
	if len(er.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embed response contained no values")
	}
	return er.Embedding.Values, nil
}

// Gemini embedContent JSON structures.
type embedRequest struct {
	Content              embedContent `json:"content"`
	OutputDimensionality int          `json:"outputDimensionality"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}
