package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archhub/investigator/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInvestigationRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &types.InvestigationRecord{
		RepositoryName:    "myrepo",
		RepositoryURL:     "https://github.com/org/myrepo",
		CommitID:          "abc123def456",
		BranchName:        "main",
		AnalysisTimestamp: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
		AnalysisSummary:   map[string]any{"steps_total": float64(3)},
		PromptMetadata: &types.PromptMetadata{
			Count:    2,
			Versions: map[string]string{"apis": "1", "monitoring": "2"},
		},
	}
	require.NoError(t, store.PutInvestigation(ctx, rec, 0))

	got, err := store.GetInvestigation(ctx, "myrepo")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.RepositoryName, got.RepositoryName)
	assert.Equal(t, rec.CommitID, got.CommitID)
	assert.Equal(t, rec.BranchName, got.BranchName)
	assert.Equal(t, rec.AnalysisTimestamp.Unix(), got.AnalysisTimestamp.Unix())
	assert.Equal(t, rec.AnalysisSummary, got.AnalysisSummary)
	require.NotNil(t, got.PromptMetadata)
	assert.Equal(t, 2, got.PromptMetadata.Count)
	assert.Equal(t, "2", got.PromptMetadata.Versions["monitoring"])
}

func TestGetInvestigationMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetInvestigation(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// The stored count survives round trips even when it disagrees with the
// number of version entries; the decision engine treats it as
// authoritative.
func TestInvestigationCountPreserved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &types.InvestigationRecord{
		RepositoryName:    "myrepo",
		CommitID:          "abc123def456",
		BranchName:        "main",
		AnalysisTimestamp: time.Now().UTC(),
		PromptMetadata: &types.PromptMetadata{
			Count:    3,
			Versions: map[string]string{"apis": "1", "monitoring": "1"},
		},
	}
	require.NoError(t, store.PutInvestigation(ctx, rec, 0))

	got, err := store.GetInvestigation(ctx, "myrepo")
	require.NoError(t, err)
	require.NotNil(t, got.PromptMetadata)
	assert.Equal(t, 3, got.PromptMetadata.Count)
	assert.Len(t, got.PromptMetadata.Versions, 2)
}

// Writing again for the same repository supersedes the record in place:
// last writer wins, no history kept.
func TestInvestigationSupersede(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &types.InvestigationRecord{
		RepositoryName:    "myrepo",
		CommitID:          "aaaaaaaaaaaa",
		BranchName:        "main",
		AnalysisTimestamp: time.Now().UTC(),
	}
	require.NoError(t, store.PutInvestigation(ctx, first, 0))

	second := &types.InvestigationRecord{
		RepositoryName:    "myrepo",
		CommitID:          "bbbbbbbbbbbb",
		BranchName:        "main",
		AnalysisTimestamp: time.Now().UTC(),
	}
	require.NoError(t, store.PutInvestigation(ctx, second, 0))

	got, err := store.GetInvestigation(ctx, "myrepo")
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbbbbbb", got.CommitID)
}

func TestInvestigationExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &types.InvestigationRecord{
		RepositoryName:    "myrepo",
		CommitID:          "abc123def456",
		BranchName:        "main",
		AnalysisTimestamp: time.Now().UTC(),
	}
	require.NoError(t, store.PutInvestigation(ctx, rec, time.Hour))

	got, err := store.GetInvestigation(ctx, "myrepo")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Move the clock past the TTL: the row is treated as absent.
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	got, err = store.GetInvestigation(ctx, "myrepo")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPromptResultRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &types.PromptCacheEntry{
		Content:   "## APIs\n\nThe service exposes...",
		StepName:  "apis",
		Version:   "2",
		Timestamp: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, store.PutResult(ctx, "myrepo_apis_abc123def456_v2", entry, 0))

	got, err := store.GetResult(ctx, "myrepo_apis_abc123def456_v2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Content, got.Content)
	assert.Equal(t, "apis", got.StepName)
	assert.Equal(t, "2", got.Version)
}

// Entries for different commits or versions of the same step are fully
// independent rows.
func TestPromptResultKeysIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{
		"myrepo_apis_aaaaaaaaaaaa_v1",
		"myrepo_apis_bbbbbbbbbbbb_v1",
		"myrepo_apis_aaaaaaaaaaaa_v2",
	} {
		entry := &types.PromptCacheEntry{Content: "for " + key, Version: "1"}
		require.NoError(t, store.PutResult(ctx, key, entry, 0))
	}

	got, err := store.GetResult(ctx, "myrepo_apis_aaaaaaaaaaaa_v2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "for myrepo_apis_aaaaaaaaaaaa_v2", got.Content)
}

func TestPromptResultExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &types.PromptCacheEntry{Content: "cached", Version: "1"}
	require.NoError(t, store.PutResult(ctx, "myrepo_apis_abc123def456_v1", entry, time.Minute))

	store.now = func() time.Time { return time.Now().Add(time.Hour) }
	got, err := store.GetResult(ctx, "myrepo_apis_abc123def456_v1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &types.PromptCacheEntry{Content: "cached", Version: "1"}
	require.NoError(t, store.PutResult(ctx, "myrepo_apis_abc123def456_v1", entry, 0))
	require.NoError(t, store.DeleteResult(ctx, "myrepo_apis_abc123def456_v1"))

	got, err := store.GetResult(ctx, "myrepo_apis_abc123def456_v1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPurgeExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	live := &types.PromptCacheEntry{Content: "live", Version: "1"}
	require.NoError(t, store.PutResult(ctx, "myrepo_apis_aaaaaaaaaaaa_v1", live, 0))
	dead := &types.PromptCacheEntry{Content: "dead", Version: "1"}
	require.NoError(t, store.PutResult(ctx, "myrepo_apis_bbbbbbbbbbbb_v1", dead, time.Minute))

	store.now = func() time.Time { return time.Now().Add(time.Hour) }
	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	got, err := store.GetResult(ctx, "myrepo_apis_aaaaaaaaaaaa_v1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
