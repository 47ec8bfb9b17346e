// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/permit-engine/internal/knowledge"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the regulatory knowledge base (ingest, search)",
	Long: `Knowledge manages a local SQLite index of regulatory text: zoning by-law
sections, building code excerpts, and municipal standards. Ingested documents
are chunked, embedded, and stored for retrieval during pipeline runs.`,
}

// --- ingest subcommand ---

var knowledgeIngestCmd = &cobra.Command{
	Use:   "ingest [data-dir]",
	Short: "Chunk, embed, and index regulatory documents",
	Long: `Ingest reads Markdown and plain-text documents from the data directory,
splits them into heading-aware chunks, embeds each chunk, and stores the
result in the knowledge base. Already-indexed documents are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKnowledgeIngest,
}

func runKnowledgeIngest(cmd *cobra.Command, args []string) error {
	cfg := loadConfig().Knowledge
	if dir, _ := cmd.Flags().GetString("knowledge-dir"); dir != "" {
		cfg.KnowledgeDir = dir
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("embedding API key required: set google-api-key in .secrets/ or knowledge.api_key in the config file")
	}

	dataDir := filepath.Join(cfg.KnowledgeDir, "data")
	if len(args) > 0 {
		dataDir = args[0]
	}

	store, err := knowledge.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder := &knowledge.GeminiEmbedder{
		Client: &http.Client{Timeout: 60 * time.Second},
		Model:  cfg.EmbedModel,
		APIKey: cfg.APIKey,
	}

	summary, err := store.Ingest(context.Background(), embedder, dataDir, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- search subcommand ---

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query the knowledge base by semantic similarity",
	Long: `Search embeds the query, ranks indexed passages by cosine similarity,
expands matches to their parent by-law sections, and prints the passages in
document order, the same context a pipeline run would retrieve.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKnowledgeSearch,
}

func runKnowledgeSearch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig().Knowledge
	if dir, _ := cmd.Flags().GetString("knowledge-dir"); dir != "" {
		cfg.KnowledgeDir = dir
	}
	if k, _ := cmd.Flags().GetInt("top-k"); k > 0 {
		cfg.TopK = k
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("embedding API key required: set google-api-key in .secrets/")
	}

	store, err := knowledge.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder := &knowledge.GeminiEmbedder{
		Client: &http.Client{Timeout: 60 * time.Second},
		Model:  cfg.EmbedModel,
		APIKey: cfg.APIKey,
	}
	retriever := knowledge.NewRetriever(store, embedder, cfg, newLogger(false))

	passages := retriever.Search(context.Background(), strings.Join(args, " "), cfg.TopK)
	if len(passages) == 0 {
		fmt.Println("No passages found.")
		return nil
	}
	for i, p := range passages {
		fmt.Printf("--- passage %d ---\n%s\n\n", i+1, p)
	}
	return nil
}

func init() {
	knowledgeCmd.PersistentFlags().String("knowledge-dir", "", "base directory for the knowledge base (default: knowledge)")

	knowledgeSearchCmd.Flags().Int("top-k", 0, "number of nearest passages to seed retrieval (0 = use config)")

	knowledgeCmd.AddCommand(knowledgeIngestCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)

	rootCmd.AddCommand(knowledgeCmd)
}
