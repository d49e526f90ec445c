package promptcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archhub/investigator/internal/storage/sqlite"
	"github.com/archhub/investigator/internal/types"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store)
}

func TestCheckMiss(t *testing.T) {
	cache := newCache(t)

	result := cache.Check(context.Background(), "myrepo", "apis", "abc123def456", "1")

	assert.True(t, result.NeedsAnalysis)
	assert.Equal(t, types.CacheStatusMiss, result.Status)
	assert.Equal(t, "No cached result for this prompt at commit abc123de v1", result.Reason)
	assert.Empty(t, result.CachedResult)
}

func TestSaveThenCheckHit(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	saved := cache.Save(ctx, "myrepo", "apis", "abc123def456", "## APIs\n\ndetails", "2", 0)
	require.Equal(t, types.SaveStatusSuccess, saved.Status)
	assert.Equal(t, "myrepo_apis_abc123def456_v2", saved.CacheKey)
	require.NotNil(t, saved.Timestamp)

	result := cache.Check(ctx, "myrepo", "apis", "abc123def456", "2")

	assert.False(t, result.NeedsAnalysis)
	assert.Equal(t, types.CacheStatusHit, result.Status)
	assert.Equal(t, "## APIs\n\ndetails", result.CachedResult)
	assert.Equal(t, "myrepo_apis_abc123def456_v2", result.CachedResultKey)
	assert.Equal(t, "Using cached result from commit abc123de v2", result.Reason)
	require.NotNil(t, result.CacheTimestamp)
}

// A result saved under one version must not satisfy a lookup for another;
// same for a different commit.
func TestCheckVersionAndCommitIsolation(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	cache.Save(ctx, "myrepo", "apis", "abc123def456", "content", "1", 0)

	bumped := cache.Check(ctx, "myrepo", "apis", "abc123def456", "2")
	assert.True(t, bumped.NeedsAnalysis)
	assert.Equal(t, types.CacheStatusMiss, bumped.Status)

	moved := cache.Check(ctx, "myrepo", "apis", "def456abc123", "1")
	assert.True(t, moved.NeedsAnalysis)
	assert.Equal(t, types.CacheStatusMiss, moved.Status)
}

func TestCheckDefaultsVersion(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	cache.Save(ctx, "myrepo", "apis", "abc123def456", "content", "", 0)

	result := cache.Check(ctx, "myrepo", "apis", "abc123def456", "")
	assert.False(t, result.NeedsAnalysis)
	assert.Equal(t, "1", result.Version)
}

func TestCheckInvalidKeyFailsOpen(t *testing.T) {
	cache := newCache(t)

	result := cache.Check(context.Background(), "", "apis", "abc123def456", "1")

	assert.True(t, result.NeedsAnalysis)
	assert.Equal(t, types.CacheStatusError, result.Status)
	assert.Contains(t, result.Reason, "Cache check failed")
}

type failingStore struct{}

func (failingStore) GetResult(ctx context.Context, key string) (*types.PromptCacheEntry, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) PutResult(ctx context.Context, key string, entry *types.PromptCacheEntry, ttl time.Duration) error {
	return errors.New("disk on fire")
}

func (failingStore) DeleteResult(ctx context.Context, key string) error {
	return errors.New("disk on fire")
}

func TestCheckStoreErrorFailsOpen(t *testing.T) {
	cache := New(failingStore{})

	result := cache.Check(context.Background(), "myrepo", "apis", "abc123def456", "1")

	assert.True(t, result.NeedsAnalysis)
	assert.Equal(t, types.CacheStatusError, result.Status)
	assert.Contains(t, result.Reason, "disk on fire")
}

func TestSaveStoreErrorIsReported(t *testing.T) {
	cache := New(failingStore{})

	saved := cache.Save(context.Background(), "myrepo", "apis", "abc123def456", "content", "1", 0)

	assert.Equal(t, types.SaveStatusError, saved.Status)
	assert.Contains(t, saved.Message, "disk on fire")
	assert.Nil(t, saved.Timestamp)
}
