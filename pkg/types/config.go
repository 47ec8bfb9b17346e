// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// LLMConfig holds shared settings for components that call a generation backend.
type LLMConfig struct {
	// Provider selects the backend implementation: "gemini" or "openrouter".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the default model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model"`

	// FastModel is used by specialists flagged for cheaper rule checks.
	// Empty means Model is used.
	FastModel string `json:"fast_model,omitempty" yaml:"fast_model,omitempty"`

	// AuditModel is used for the second-pass critique. Empty means Model.
	AuditModel string `json:"audit_model,omitempty" yaml:"audit_model,omitempty"`

	// APIKey authenticates against the backend.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// RetryConfig controls backoff behavior for rate-limited backend calls.
type RetryConfig struct {
	// MaxRetries is the retry budget after the first attempt (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseDelay is the first exponential backoff delay (default 2s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps every computed delay (default 60s).
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// Factor is the exponential growth factor (default 2.0).
	Factor float64 `json:"factor" yaml:"factor"`

	// Disabled turns off retrying entirely: the first failure is fatal.
	// Used for low-latency local iteration.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// KnowledgeConfig holds settings for the regulatory knowledge base.
type KnowledgeConfig struct {
	// KnowledgeDir is the base directory for the knowledge base
	// (contains index/ and source documents under data/).
	KnowledgeDir string `json:"knowledge_dir" yaml:"knowledge_dir"`

	// TopK is the number of nearest passages fetched per query (default 3).
	TopK int `json:"top_k" yaml:"top_k"`

	// MaxPassages caps the context returned after parent-section expansion
	// (default 12).
	MaxPassages int `json:"max_passages" yaml:"max_passages"`

	// EmbedModel is the embedding model identifier (default "gemini-embedding-001").
	EmbedModel string `json:"embed_model" yaml:"embed_model"`

	// APIKey authenticates the embedding calls.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// CacheConfig holds settings for the redis draft-response cache.
type CacheConfig struct {
	// Enabled turns the cache on. When false the pipeline always calls the backend.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Addr is the redis address (e.g. "localhost:6379").
	Addr string `json:"addr" yaml:"addr"`

	// Password is the redis password, if any.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// DB is the redis database number.
	DB int `json:"db" yaml:"db"`

	// TTL expires cached responses. Zero means no expiration.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`
}

// Config groups all component configurations.
type Config struct {
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Retry     RetryConfig     `json:"retry" yaml:"retry"`
	Knowledge KnowledgeConfig `json:"knowledge" yaml:"knowledge"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}
