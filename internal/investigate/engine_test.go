package investigate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archhub/investigator/internal/steps"
	"github.com/archhub/investigator/internal/storage/sqlite"
	"github.com/archhub/investigator/internal/types"
)

// fakeAnalyzer returns canned output per prompt body and records every
// prompt it was asked to analyze.
type fakeAnalyzer struct {
	prompts []string
	err     error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.prompts = append(f.prompts, prompt)
	return "analysis of: " + firstLine(prompt), nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func testStepConfig(t *testing.T) *steps.Config {
	t.Helper()
	cfg, err := steps.Parse([]byte(`
processing_order:
  - name: hl_overview
    description: High level overview
  - name: apis
    description: API surface
    context_dependencies: [hl_overview]
  - name: monitoring
    description: Monitoring posture
`))
	require.NoError(t, err)
	return cfg
}

func testPrompts() map[string]string {
	return map[string]string{
		"hl_overview": "version=1\nDescribe the repository at a high level.",
		"apis":        "version=1\nList the public APIs.",
		"monitoring":  "version=1\nAssess monitoring coverage.",
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeAnalyzer) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	analyzer := &fakeAnalyzer{}
	return NewEngine(store, analyzer, testStepConfig(t)), analyzer
}

func baseOptions() Options {
	return Options{
		RepoName: "myrepo",
		RepoURL:  "https://github.com/org/myrepo",
		State: types.RepositoryState{
			CommitID:   "abc123def456",
			BranchName: "main",
		},
		Prompts: testPrompts(),
	}
}

func TestRunFreshRepository(t *testing.T) {
	engine, analyzer := newTestEngine(t)

	result, err := engine.Run(context.Background(), baseOptions())
	require.NoError(t, err)

	assert.True(t, result.Decision.NeedsInvestigation)
	assert.Equal(t, "No previous investigation found", result.Decision.Reason)
	assert.False(t, result.Skipped)
	assert.Equal(t, 3, result.FreshSteps)
	assert.Equal(t, 0, result.CachedSteps)
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, analyzer.prompts, 3)

	// All three sections appear, in configured order.
	assert.Contains(t, result.Document, "# hl_overview")
	assert.Contains(t, result.Document, "# apis")
	assert.Contains(t, result.Document, "# monitoring")
	assert.Less(t,
		strings.Index(result.Document, "# hl_overview"),
		strings.Index(result.Document, "# apis"))

	assert.Equal(t, types.SaveStatusSuccess, result.MetadataSave.Status)
}

// The second run over an unchanged repository ends at the staleness
// decision without touching the analyzer.
func TestRunUnchangedRepositorySkips(t *testing.T) {
	engine, analyzer := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Run(ctx, baseOptions())
	require.NoError(t, err)
	callsAfterFirst := len(analyzer.prompts)

	result, err := engine.Run(ctx, baseOptions())
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.False(t, result.Decision.NeedsInvestigation)
	assert.Equal(t, "No changes since last investigation", result.Decision.Reason)
	assert.Empty(t, result.Document)
	assert.Len(t, analyzer.prompts, callsAfterFirst)
}

// A forced re-run bypasses the staleness skip but still reuses every
// cached step result, so the analyzer is not called again.
func TestRunForceReusesCache(t *testing.T) {
	engine, analyzer := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.Run(ctx, baseOptions())
	require.NoError(t, err)

	opts := baseOptions()
	opts.Force = true
	second, err := engine.Run(ctx, opts)
	require.NoError(t, err)

	assert.False(t, second.Skipped)
	assert.Equal(t, 0, second.FreshSteps)
	assert.Equal(t, 3, second.CachedSteps)
	assert.Len(t, analyzer.prompts, 3)
	assert.Equal(t, first.Document, second.Document)
}

// A new commit invalidates every per-step cache entry: all steps are
// re-analyzed.
func TestRunNewCommitReanalyzes(t *testing.T) {
	engine, analyzer := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Run(ctx, baseOptions())
	require.NoError(t, err)

	opts := baseOptions()
	opts.State.CommitID = "def456abc123"
	result, err := engine.Run(ctx, opts)
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Contains(t, result.Decision.Reason, "New commits detected")
	assert.Equal(t, 3, result.FreshSteps)
	assert.Len(t, analyzer.prompts, 6)
}

// Bumping one prompt's version triggers a run in which only that step is
// re-analyzed; the others hit their per-commit cache entries.
func TestRunVersionBumpReanalyzesOnlyThatStep(t *testing.T) {
	engine, analyzer := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Run(ctx, baseOptions())
	require.NoError(t, err)

	opts := baseOptions()
	opts.Prompts["apis"] = "version=2\nList the public APIs, including internal RPC."
	result, err := engine.Run(ctx, opts)
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, "apis version changed: v1 → v2", result.Decision.Reason)
	assert.Equal(t, 1, result.FreshSteps)
	assert.Equal(t, 2, result.CachedSteps)
	assert.Len(t, analyzer.prompts, 4)
}

func TestRunAppendsContextDependencies(t *testing.T) {
	engine, analyzer := newTestEngine(t)

	_, err := engine.Run(context.Background(), baseOptions())
	require.NoError(t, err)

	require.Len(t, analyzer.prompts, 3)
	apisPrompt := analyzer.prompts[1]
	assert.Contains(t, apisPrompt, "List the public APIs.")
	assert.Contains(t, apisPrompt, "## Context: hl_overview")
	assert.Contains(t, apisPrompt, "analysis of: Describe the repository at a high level.")
	// The version header never reaches the analyzer.
	assert.NotContains(t, apisPrompt, "version=")
}

func TestRunAnalyzerErrorAborts(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine := NewEngine(store, &fakeAnalyzer{err: errors.New("rate limited")}, testStepConfig(t))

	_, err = engine.Run(context.Background(), baseOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis failed for step hl_overview")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestRunMalformedPromptAborts(t *testing.T) {
	engine, _ := newTestEngine(t)

	opts := baseOptions()
	opts.Prompts["apis"] = "no version header"
	_, err := engine.Run(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"apis"`)
}

func TestRunInvalidStateRejected(t *testing.T) {
	engine, _ := newTestEngine(t)

	opts := baseOptions()
	opts.State.CommitID = ""
	_, err := engine.Run(context.Background(), opts)
	require.Error(t, err)
}

func TestRunMetadataRecordsVersions(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	engine := NewEngine(store, &fakeAnalyzer{}, testStepConfig(t))
	opts := baseOptions()
	opts.Prompts["monitoring"] = "version=4\nAssess monitoring coverage."
	_, err = engine.Run(ctx, opts)
	require.NoError(t, err)

	rec, err := store.GetInvestigation(ctx, "myrepo")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "abc123def456", rec.CommitID)
	require.NotNil(t, rec.PromptMetadata)
	assert.Equal(t, 3, rec.PromptMetadata.Count)
	assert.Equal(t, "4", rec.PromptMetadata.Versions["monitoring"])
}
