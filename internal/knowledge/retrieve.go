// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/pdiddy/permit-engine/pkg/types"
)

// Retriever fetches regulatory passages relevant to a query. The store and
// embedder are read-only shared resources, so a Retriever is safe for
// concurrent runs.
type Retriever struct {
	store       *Store
	embedder    Embedder
	maxPassages int
	logger      *slog.Logger
}

// NewRetriever builds a Retriever over an opened store.
func NewRetriever(store *Store, embedder Embedder, cfg types.KnowledgeConfig, logger *slog.Logger) *Retriever {
	maxPassages := cfg.MaxPassages
	if maxPassages <= 0 {
		maxPassages = 12
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:       store,
		embedder:    embedder,
		maxPassages: maxPassages,
		logger:      logger,
	}
}

// Search returns passage contents relevant to query. It embeds the query,
// takes the k nearest passages by cosine distance, expands the set with
// passages sharing a parent section with any hit, and orders the result by
// (document, position) so the context reads as a coherent excerpt rather
// than a similarity-ranked list.
//
// Retrieval failures degrade to an empty result: the pipeline stays usable
// when context is simply unavailable.
func (r *Retriever) Search(ctx context.Context, query string, k int) []string {
	if k <= 0 {
		return nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("context retrieval degraded to empty", "err", err)
		return nil
	}

	passages, err := r.store.AllPassages(ctx)
	if err != nil {
		r.logger.Warn("context retrieval degraded to empty", "err", err)
		return nil
	}
	if len(passages) == 0 {
		return nil
	}

	// Rank by cosine similarity and keep the top k.
	type scored struct {
		idx int
		sim float64
	}
	ranked := make([]scored, len(passages))
	for i, p := range passages {
		ranked[i] = scored{idx: i, sim: cosineSimilarity(queryVec, p.Embedding)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })
	if k > len(ranked) {
		k = len(ranked)
	}

	// Expand: pull in every passage sharing a parent section with a hit.
	selected := make(map[string]bool, k)
	parents := make(map[string]bool, k)
	for _, s := range ranked[:k] {
		p := passages[s.idx]
		selected[p.ID] = true
		if p.ParentSection != "" {
			parents[p.ParentSection] = true
		}
	}
	for _, p := range passages {
		if parents[p.ParentSection] {
			selected[p.ID] = true
		}
	}

	// Reorder by source position for coherent reading.
	var result []Passage
	for _, p := range passages {
		if selected[p.ID] {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Document != result[j].Document {
			return result[i].Document < result[j].Document
		}
		return result[i].Position < result[j].Position
	})

	if len(result) > r.maxPassages {
		result = result[:r.maxPassages]
	}

	contents := make([]string, len(result))
	for i, p := range result {
		contents[i] = p.Content
	}
	return contents
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
