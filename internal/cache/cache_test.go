// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/permit-engine/pkg/types"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, ok := store.Get(ctx, "agent", "some prompt")
	assert.False(t, ok)

	store.Set(ctx, "agent", "some prompt", `{"draft_text":"d"}`)

	val, ok := store.Get(ctx, "agent", "some prompt")
	require.True(t, ok)
	assert.Equal(t, `{"draft_text":"d"}`, val)
}

func TestStoreKeyIsDigested(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("very long prompt content ", 200)
	store.Set(ctx, "agent", long, "v")

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "permit-engine:agent:"))
	// sha256 hex digest after the namespace.
	assert.Len(t, keys[0], len("permit-engine:agent:")+64)
}

func TestStoreDistinctContentDistinctKeys(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "agent", "prompt a", "va")
	store.Set(ctx, "agent", "prompt b", "vb")

	va, ok := store.Get(ctx, "agent", "prompt a")
	require.True(t, ok)
	assert.Equal(t, "va", va)

	vb, ok := store.Get(ctx, "agent", "prompt b")
	require.True(t, ok)
	assert.Equal(t, "vb", vb)
}

func TestStoreTTL(t *testing.T) {
	store, mr := newTestStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	store.Set(ctx, "agent", "prompt", "v")

	_, ok := store.Get(ctx, "agent", "prompt")
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	_, ok = store.Get(ctx, "agent", "prompt")
	assert.False(t, ok)
}

func TestStoreErrorDegradesToMiss(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "agent", "prompt", "v")
	mr.Close()

	_, ok := store.Get(ctx, "agent", "prompt")
	assert.False(t, ok)

	// Set after the server is gone must not panic.
	store.Set(ctx, "agent", "prompt", "v2")
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	ctx := context.Background()

	_, ok := store.Get(ctx, "agent", "prompt")
	assert.False(t, ok)
	store.Set(ctx, "agent", "prompt", "v")
	assert.NoError(t, store.Close())
}

func TestNewDisabledReturnsNil(t *testing.T) {
	assert.Nil(t, New(types.CacheConfig{Enabled: false, Addr: "localhost:6379"}))
}
