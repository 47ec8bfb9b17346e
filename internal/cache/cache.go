// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores backend responses in Redis keyed by a digest of the
// prompt content, so identical deficiencies across sessions reuse one
// generation call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/pdiddy/permit-engine/pkg/types"
)

// Store is a Redis-backed response cache. A nil Store is a valid cache that
// always misses, so callers never branch on whether caching is configured.
type Store struct {
	client *backend.Client
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*Store)

// WithTTL sets the expiration for cached responses. Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithLogger sets the logger for cache errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New builds a cache from configuration. Returns nil when caching is
// disabled.
func New(cfg types.CacheConfig, opts ...Option) *Store {
	if !cfg.Enabled {
		return nil
	}

	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	store := &Store{client: client, ttl: cfg.TTL}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// NewFromClient builds a cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{client: client}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Get looks up the cached value for the given content. Redis errors degrade
// to a miss.
func (s *Store) Get(ctx context.Context, prefix, content string) (string, bool) {
	if s == nil {
		return "", false
	}

	val, err := s.client.Get(ctx, key(prefix, content)).Result()
	if err == backend.Nil {
		return "", false
	}
	if err != nil {
		s.log().Warn("cache lookup failed", "err", err)
		return "", false
	}
	return val, true
}

// Set stores a value for the given content. Redis errors are logged and
// otherwise ignored: the cache is an optimization, never a dependency.
func (s *Store) Set(ctx context.Context, prefix, content, value string) {
	if s == nil {
		return
	}
	if err := s.client.Set(ctx, key(prefix, content), value, s.ttl).Err(); err != nil {
		s.log().Warn("cache store failed", "err", err)
	}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

// key digests the content so prompt text of any length maps to a fixed-size
// Redis key.
func key(prefix, content string) string {
	sum := sha256.Sum256([]byte(content))
	return "permit-engine:" + prefix + ":" + hex.EncodeToString(sum[:])
}

func (s *Store) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
