// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/permit-engine/internal/agents"
	"github.com/pdiddy/permit-engine/internal/audit"
	"github.com/pdiddy/permit-engine/internal/backoff"
	"github.com/pdiddy/permit-engine/internal/cache"
	"github.com/pdiddy/permit-engine/internal/knowledge"
	"github.com/pdiddy/permit-engine/internal/llm"
	"github.com/pdiddy/permit-engine/internal/logging"
	"github.com/pdiddy/permit-engine/internal/metrics"
	"github.com/pdiddy/permit-engine/internal/pipeline"
	"github.com/pdiddy/permit-engine/pkg/types"
)

// loadConfig assembles configuration from the config file, environment, and
// secrets directory, in that precedence order for API keys.
func loadConfig() types.Config {
	viper.SetDefault("llm.provider", "gemini")
	viper.SetDefault("retry.max_retries", 5)
	viper.SetDefault("retry.base_delay", "2s")
	viper.SetDefault("retry.max_delay", "60s")
	viper.SetDefault("retry.factor", 2.0)
	viper.SetDefault("knowledge.knowledge_dir", "knowledge")
	viper.SetDefault("knowledge.top_k", 3)
	viper.SetDefault("knowledge.max_passages", 12)
	viper.SetDefault("cache.addr", "localhost:6379")
	viper.SetDefault("server.addr", ":8080")

	cfg := types.Config{
		LLM: types.LLMConfig{
			Provider:   viper.GetString("llm.provider"),
			Model:      viper.GetString("llm.model"),
			FastModel:  viper.GetString("llm.fast_model"),
			AuditModel: viper.GetString("llm.audit_model"),
		},
		Retry: types.RetryConfig{
			MaxRetries: viper.GetInt("retry.max_retries"),
			BaseDelay:  viper.GetDuration("retry.base_delay"),
			MaxDelay:   viper.GetDuration("retry.max_delay"),
			Factor:     viper.GetFloat64("retry.factor"),
			Disabled:   viper.GetBool("retry.disabled"),
		},
		Knowledge: types.KnowledgeConfig{
			KnowledgeDir: viper.GetString("knowledge.knowledge_dir"),
			TopK:         viper.GetInt("knowledge.top_k"),
			MaxPassages:  viper.GetInt("knowledge.max_passages"),
			EmbedModel:   viper.GetString("knowledge.embed_model"),
		},
		Cache: types.CacheConfig{
			Enabled:  viper.GetBool("cache.enabled"),
			Addr:     viper.GetString("cache.addr"),
			Password: secretDefault("redis-password", viper.GetString("cache.password")),
			DB:       viper.GetInt("cache.db"),
			TTL:      viper.GetDuration("cache.ttl"),
		},
		Server: types.ServerConfig{
			Addr: viper.GetString("server.addr"),
		},
	}

	switch cfg.LLM.Provider {
	case "openrouter":
		cfg.LLM.APIKey = secretDefault("openrouter-api-key", viper.GetString("llm.api_key"))
	default:
		cfg.LLM.APIKey = secretDefault("google-api-key", viper.GetString("llm.api_key"))
	}
	// Embeddings always go through Gemini regardless of the generation provider.
	cfg.Knowledge.APIKey = secretDefault("google-api-key", viper.GetString("knowledge.api_key"))

	return cfg
}

// engine bundles the wired pipeline with the resources it owns.
type engine struct {
	Orchestrator *pipeline.Orchestrator
	closers      []func() error
}

// Close releases the engine's stores and connections.
func (e *engine) Close() {
	for _, c := range e.closers {
		_ = c()
	}
}

// buildEngine wires the orchestrator from configuration: backends for the
// default, fast, and audit models, the retry controller, the optional redis
// cache, and the optional knowledge retriever.
func buildEngine(cfg types.Config, logger *slog.Logger, collector *metrics.Collector) (*engine, error) {
	defaultProvider, err := llm.New(cfg.LLM, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("building generation provider: %w", err)
	}

	controller := backoff.New(cfg.Retry)
	controller.OnRetry = func(attempt int, delay time.Duration, reason string) {
		collector.RetryObserved()
		logger.Warn("backend rate limited, waiting",
			"attempt", attempt, "delay", delay, "reason", reason)
	}

	models := map[string]agents.Backend{}
	if cfg.LLM.FastModel != "" {
		fast, err := llm.New(cfg.LLM, cfg.LLM.FastModel)
		if err != nil {
			return nil, fmt.Errorf("building fast-model provider: %w", err)
		}
		models[cfg.LLM.FastModel] = fast
	}

	auditBackend := agents.Backend(defaultProvider)
	if cfg.LLM.AuditModel != "" {
		ab, err := llm.New(cfg.LLM, cfg.LLM.AuditModel)
		if err != nil {
			return nil, fmt.Errorf("building audit provider: %w", err)
		}
		auditBackend = ab
	}

	eng := &engine{}

	responseCache := cache.New(cfg.Cache, cache.WithTTL(cfg.Cache.TTL), cache.WithLogger(logger))
	if responseCache != nil {
		eng.closers = append(eng.closers, responseCache.Close)
	}

	retriever, err := buildRetriever(cfg.Knowledge, logger, eng)
	if err != nil {
		return nil, err
	}

	generator := &agents.Generator{
		Default: defaultProvider,
		Models:  models,
		Retry:   controller,
		Logger:  logger,
	}
	if responseCache != nil {
		generator.Cache = responseCache
	}

	eng.Orchestrator = &pipeline.Orchestrator{
		Registry:  agents.DefaultRegistry(cfg.LLM.FastModel),
		Generator: generator,
		Auditor: &audit.Auditor{
			Backend: auditBackend,
			Retry:   controller,
			Logger:  logger,
		},
		Retriever: retriever,
		TopK:      cfg.Knowledge.TopK,
		Logger:    logger,
		Metrics:   collector,
	}
	return eng, nil
}

// buildRetriever opens the knowledge base when one is configured. A missing
// index or embedding key degrades to no retrieval context rather than an
// error: the pipeline can still draft responses without it.
func buildRetriever(cfg types.KnowledgeConfig, logger *slog.Logger, eng *engine) (pipeline.ContextRetriever, error) {
	if cfg.KnowledgeDir == "" {
		return nil, nil
	}
	if cfg.APIKey == "" {
		logger.Warn("no embedding API key configured, drafting without regulatory context")
		return nil, nil
	}

	store, err := knowledge.NewStore(cfg)
	if err != nil {
		logger.Warn("knowledge base unavailable, drafting without regulatory context", "err", err)
		return nil, nil
	}
	eng.closers = append(eng.closers, store.Close)

	embedder := &knowledge.GeminiEmbedder{
		Client: &http.Client{Timeout: 60 * time.Second},
		Model:  cfg.EmbedModel,
		APIKey: cfg.APIKey,
	}
	return knowledge.NewRetriever(store, embedder, cfg, logger), nil
}

// newLogger builds the CLI logger at the level selected by --verbose.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return logging.New(level)
}
