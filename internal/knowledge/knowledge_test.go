// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/permit-engine/pkg/types"
)

// fakeEmbedder returns a fixed vector per distinct text, deterministic across
// calls. The vector is a crude bag-of-bytes projection, enough to make
// similar strings similar.
type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("embedding backend unavailable")
	}
	vec := make([]float32, 8)
	for i, b := range []byte(text) {
		vec[i%8] += float32(b)
	}
	return vec, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(types.KnowledgeConfig{KnowledgeDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestChunkDocument(t *testing.T) {
	content := `## 150.8.60.1 Angular Planes

Angular plane requirements for laneway suites.

## 150.8.60.2 Setbacks

Setback requirements from lot lines.

### General Notes

Miscellaneous provisions.
`
	passages := ChunkDocument("bylaw-569-2013.md", content)
	require.Len(t, passages, 3)

	assert.Equal(t, "150.8.60.1", passages[0].Section)
	assert.Equal(t, "150.8.60", passages[0].ParentSection)
	assert.Equal(t, "150.8.60.2", passages[1].Section)
	assert.Equal(t, "150.8.60", passages[1].ParentSection)
	assert.Equal(t, "General Notes", passages[2].Section)
	assert.Equal(t, "General Notes", passages[2].ParentSection)

	// Positions are dense and ordered.
	for i, p := range passages {
		assert.Equal(t, i, p.Position)
		assert.Equal(t, "bylaw-569-2013.md", p.Document)
		assert.NotEmpty(t, p.ID)
	}
}

func TestChunkDocument_LongSectionSplitsWithOverlap(t *testing.T) {
	body := strings.Repeat("a", 2500)
	passages := ChunkDocument("doc.md", "## 5.1 Long\n\n"+body)
	require.Greater(t, len(passages), 1)

	// Consecutive chunks share the overlap region.
	first := passages[0].Content
	second := passages[1].Content
	assert.Equal(t, first[len(first)-chunkOverlap:], second[:chunkOverlap])
	for _, p := range passages {
		assert.Equal(t, "5.1", p.Section)
		assert.Equal(t, "5", p.ParentSection)
	}
}

func TestSectionLabel(t *testing.T) {
	assert.Equal(t, "150.10.40.1", SectionLabel("150.10.40.1 Maximum Height"))
	assert.Equal(t, "9.10.14", SectionLabel("9.10.14. Spatial Separation"))
	assert.Equal(t, "Fire Access Paths", SectionLabel("Fire Access Paths"))
	assert.Equal(t, "", SectionLabel("   "))
}

func TestParentSection(t *testing.T) {
	assert.Equal(t, "150.10.40", ParentSection("150.10.40.1"))
	assert.Equal(t, "150", ParentSection("150.10"))
	assert.Equal(t, "Chapter 813", ParentSection("Chapter 813"))
}

func TestIngestAndReload(t *testing.T) {
	store := newTestStore(t)
	dataDir := t.TempDir()

	doc := "## 150.8.60.1 Heights\n\nMaximum height is 6.3m.\n\n## 150.8.60.2 Setbacks\n\nMinimum setback is 1.5m.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "bylaw.md"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "ignored.pdf"), []byte("binary"), 0o644))

	var out strings.Builder
	summary, err := store.Ingest(context.Background(), &fakeEmbedder{}, dataDir, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Ingested)
	assert.Equal(t, 0, summary.Failed)

	passages, err := store.AllPassages(context.Background())
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "150.8.60.1", passages[0].Section)
	assert.Len(t, passages[0].Embedding, 8)

	// Embeddings survive the blob roundtrip.
	want, _ := (&fakeEmbedder{}).Embed(context.Background(), passages[0].Content)
	assert.Equal(t, want, passages[0].Embedding)

	// Re-ingest skips the unchanged document.
	summary, err = store.Ingest(context.Background(), &fakeEmbedder{}, dataDir, &out)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Ingested)
	assert.Equal(t, 1, summary.Skipped)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngest_EmbedFailureCountsDocumentFailed(t *testing.T) {
	store := newTestStore(t)
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "doc.md"), []byte("## 1.1 A\n\nbody\n"), 0o644))

	var out strings.Builder
	summary, err := store.Ingest(context.Background(), &fakeEmbedder{fail: true}, dataDir, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, out.String(), "failed")
}

// seedPassages inserts passages with handcrafted embeddings for retrieval tests.
func seedPassages(t *testing.T, store *Store, passages []Passage) {
	t.Helper()
	require.NoError(t, store.insertDocument(context.Background(), passages[0].Document, passages))
}

// axisEmbedder maps known texts to fixed axis-aligned vectors so tests
// control similarity exactly.
type axisEmbedder struct {
	vectors map[string][]float32
}

func (a *axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := a.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func TestRetrieverSearch_ParentExpansionAndDocumentOrder(t *testing.T) {
	store := newTestStore(t)

	// Three passages under parent 150.8.60 plus one unrelated. Only the
	// middle sibling is similar to the query; expansion must pull in its
	// siblings and document order must win over similarity order.
	mk := func(id, section string, position int, content string, vec []float32) Passage {
		return Passage{
			ID: id, Document: "bylaw.md", Section: section,
			ParentSection: ParentSection(section), Position: position,
			Content: content, Embedding: vec,
		}
	}
	seedPassages(t, store, []Passage{
		mk("p0", "150.8.60.1", 0, "heights", []float32{0, 1, 0}),
		mk("p1", "150.8.60.2", 1, "setbacks", []float32{1, 0, 0}),
		mk("p2", "150.8.60.3", 2, "coverage", []float32{0, 0, 1}),
		mk("p3", "813.1", 3, "trees", []float32{-1, 0, 0}),
	})

	embedder := &axisEmbedder{vectors: map[string][]float32{
		"setback query": {1, 0, 0},
	}}
	r := NewRetriever(store, embedder, types.KnowledgeConfig{}, nil)

	got := r.Search(context.Background(), "setback query", 1)
	// Top-1 hit is p1; siblings p0 and p2 share parent 150.8.60 and are
	// pulled in; p3 is not. Order is by position, not similarity.
	assert.Equal(t, []string{"heights", "setbacks", "coverage"}, got)
}

func TestRetrieverSearch_CapsPassages(t *testing.T) {
	store := newTestStore(t)
	var passages []Passage
	for i := 0; i < 10; i++ {
		passages = append(passages, Passage{
			ID: fmt.Sprintf("p%d", i), Document: "doc.md", Section: "5.1",
			ParentSection: "5", Position: i,
			Content: fmt.Sprintf("passage %d", i), Embedding: []float32{1, 0, 0},
		})
	}
	seedPassages(t, store, passages)

	embedder := &axisEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	r := NewRetriever(store, embedder, types.KnowledgeConfig{MaxPassages: 4}, nil)

	got := r.Search(context.Background(), "q", 2)
	assert.Len(t, got, 4)
}

func TestRetrieverSearch_DegradesToEmpty(t *testing.T) {
	store := newTestStore(t)
	r := NewRetriever(store, &fakeEmbedder{fail: true}, types.KnowledgeConfig{}, nil)
	assert.Nil(t, r.Search(context.Background(), "anything", 3))

	// Zero k returns nothing without touching the embedder.
	r = NewRetriever(store, &fakeEmbedder{}, types.KnowledgeConfig{}, nil)
	assert.Nil(t, r.Search(context.Background(), "anything", 0))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}

func TestGeminiEmbedder(t *testing.T) {
	var gotPath string
	var gotReq embedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3}},
		})
	}))
	defer ts.Close()

	old := embedAPIBase
	embedAPIBase = ts.URL
	defer func() { embedAPIBase = old }()

	e := &GeminiEmbedder{Client: ts.Client(), APIKey: "k"}
	vec, err := e.Embed(context.Background(), "fire access path width")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "/models/gemini-embedding-001:embedContent", gotPath)
	assert.Equal(t, embeddingDims, gotReq.OutputDimensionality)
	assert.Equal(t, "fire access path width", gotReq.Content.Parts[0].Text)
}

func TestGeminiEmbedder_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	old := embedAPIBase
	embedAPIBase = ts.URL
	defer func() { embedAPIBase = old }()

	e := &GeminiEmbedder{Client: ts.Client(), APIKey: "k"}
	_, err := e.Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "HTTP 403")
}
