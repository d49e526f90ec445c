// Package promptcache caches individual analysis-step outputs keyed by
// (repository, step, commit, prompt version). A cache miss is the common
// path, not an error; store failures fail open toward re-analysis.
package promptcache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/archhub/investigator/internal/storage"
	"github.com/archhub/investigator/internal/storage/keys"
	"github.com/archhub/investigator/internal/types"
)

// DefaultTTLDays is how long a cached prompt result stays live.
const DefaultTTLDays = 90

// Cache wraps a prompt cache store with the composite-key lookup and
// fail-open semantics the analysis steps rely on.
type Cache struct {
	store storage.PromptCacheStore
}

// New creates a cache backed by the given store.
func New(store storage.PromptCacheStore) *Cache {
	return &Cache{store: store}
}

// CheckResult is the outcome of a cache lookup for one step.
type CheckResult struct {
	// NeedsAnalysis is true when no reusable result exists and the
	// analysis service must be called.
	NeedsAnalysis bool

	// Status classifies the lookup: hit, miss, or store error.
	Status types.CacheStatus

	// CachedResultKey is the storage key of the reused result, set on hit.
	CachedResultKey string

	// CachedResult is the reused content, set on hit.
	CachedResult string

	// CacheTimestamp is when the reused result was written, set on hit.
	CacheTimestamp *time.Time

	// Reason explains the decision for audit logs.
	Reason string

	// Version is the prompt version the lookup was made for.
	Version string
}

// Check looks up a cached result for the step at the given commit and
// prompt version. An empty version defaults to "1".
func (c *Cache) Check(ctx context.Context, repoName, stepName, commitID, version string) CheckResult {
	key, err := keys.NewPromptCacheKey(repoName, stepName, commitID, version)
	if err != nil {
		// A key we cannot build is a key we cannot have written: re-analyze.
		log.Printf("[CACHE] invalid cache key for %s/%s: %v", repoName, stepName, err)
		return CheckResult{
			NeedsAnalysis: true,
			Status:        types.CacheStatusError,
			Reason:        fmt.Sprintf("Cache check failed: %v", err),
			Version:       version,
		}
	}

	entry, err := c.store.GetResult(ctx, key.String())
	if err != nil {
		log.Printf("[CACHE] lookup failed for %s: %v (re-analyzing)", key, err)
		return CheckResult{
			NeedsAnalysis: true,
			Status:        types.CacheStatusError,
			Reason:        fmt.Sprintf("Cache check failed: %v", err),
			Version:       key.Version,
		}
	}

	if entry == nil {
		log.Printf("[CACHE] miss for %s/%s at %s v%s", repoName, stepName, types.ShortCommit(commitID), key.Version)
		return CheckResult{
			NeedsAnalysis: true,
			Status:        types.CacheStatusMiss,
			Reason: fmt.Sprintf("No cached result for this prompt at commit %s v%s",
				types.ShortCommit(commitID), key.Version),
			Version: key.Version,
		}
	}

	log.Printf("[CACHE] hit for %s/%s at %s v%s (%d chars)",
		repoName, stepName, types.ShortCommit(commitID), key.Version, len(entry.Content))
	ts := entry.Timestamp
	return CheckResult{
		NeedsAnalysis:   false,
		Status:          types.CacheStatusHit,
		CachedResultKey: key.String(),
		CachedResult:    entry.Content,
		CacheTimestamp:  &ts,
		Reason: fmt.Sprintf("Using cached result from commit %s v%s",
			types.ShortCommit(commitID), key.Version),
		Version: key.Version,
	}
}

// SaveResult reports the outcome of caching one step's output.
type SaveResult struct {
	Status    types.SaveStatus
	Message   string
	CacheKey  string
	Timestamp *time.Time
}

// Save caches a step's output for future runs at the same commit and
// prompt version. A save failure is reported, not raised; losing a cache
// write only costs a future re-analysis.
func (c *Cache) Save(ctx context.Context, repoName, stepName, commitID, content, version string, ttlDays int) SaveResult {
	key, err := keys.NewPromptCacheKey(repoName, stepName, commitID, version)
	if err != nil {
		return SaveResult{
			Status:  types.SaveStatusError,
			Message: fmt.Sprintf("Failed to cache result: %v", err),
		}
	}

	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}

	now := time.Now().UTC()
	entry := &types.PromptCacheEntry{
		Content:   content,
		StepName:  stepName,
		Version:   key.Version,
		Timestamp: now,
	}

	ttl := time.Duration(ttlDays) * 24 * time.Hour
	if err := c.store.PutResult(ctx, key.String(), entry, ttl); err != nil {
		log.Printf("[CACHE] save failed for %s: %v", key, err)
		return SaveResult{
			Status:  types.SaveStatusError,
			Message: fmt.Sprintf("Failed to cache result: %v", err),
		}
	}

	log.Printf("[CACHE] saved %s/%s at %s v%s (%d chars, ttl %dd)",
		repoName, stepName, types.ShortCommit(commitID), key.Version, len(content), ttlDays)
	return SaveResult{
		Status:    types.SaveStatusSuccess,
		Message:   "Cached result for " + stepName,
		CacheKey:  key.String(),
		Timestamp: &now,
	}
}
