// Package types defines the core data model shared by the staleness
// decision engine, the prompt result cache, and the results collector.
package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPromptVersion is assumed for any step whose prompt does not
// declare an explicit version.
const DefaultPromptVersion = "1"

// SaveStatus reports the outcome of a store write. Serialized as a plain
// string at the store boundary.
type SaveStatus string

const (
	SaveStatusSuccess SaveStatus = "success"
	SaveStatusError   SaveStatus = "error"
)

// CacheStatus classifies the outcome of a prompt cache lookup.
type CacheStatus string

const (
	CacheStatusHit   CacheStatus = "hit"
	CacheStatusMiss  CacheStatus = "miss"
	CacheStatusError CacheStatus = "error"
)

// RepositoryState is the current state of a checked-out working copy,
// computed fresh for each decision call. It is never persisted.
type RepositoryState struct {
	CommitID              string `json:"commit_id"`
	BranchName            string `json:"branch_name"`
	HasUncommittedChanges bool   `json:"has_uncommitted_changes"`
}

// Validate checks that the state carries the two fields every decision
// depends on.
func (s *RepositoryState) Validate() error {
	if strings.TrimSpace(s.CommitID) == "" {
		return fmt.Errorf("repository state: commit id is required")
	}
	if strings.TrimSpace(s.BranchName) == "" {
		return fmt.Errorf("repository state: branch name is required")
	}
	return nil
}

// PromptMetadata is a compact fingerprint of the prompt set used by an
// investigation: how many steps ran and which prompt version each was at.
type PromptMetadata struct {
	Count    int               `json:"count"`
	Versions map[string]string `json:"versions"`
}

// NewPromptMetadata builds metadata from a version map, keeping the
// invariant that Count equals the number of steps considered.
func NewPromptMetadata(versions map[string]string) *PromptMetadata {
	m := &PromptMetadata{
		Count:    len(versions),
		Versions: make(map[string]string, len(versions)),
	}
	for name, v := range versions {
		m.Versions[name] = v
	}
	return m
}

// Validate rejects empty version strings; an empty version would poison
// every cache key computed from it.
func (m *PromptMetadata) Validate() error {
	if m.Count < 0 {
		return fmt.Errorf("prompt metadata: count must be non-negative (got %d)", m.Count)
	}
	for name, v := range m.Versions {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("prompt metadata: version for %q must be a non-empty string", name)
		}
	}
	return nil
}

// InvestigationRecord is the durable one-per-repository record of the last
// completed investigation. It is written only after a full investigation
// finishes and is superseded, never mutated, by the next one.
type InvestigationRecord struct {
	RepositoryName    string            `json:"repository_name"`
	RepositoryURL     string            `json:"repository_url,omitempty"`
	CommitID          string            `json:"commit_id"`
	BranchName        string            `json:"branch_name"`
	AnalysisTimestamp time.Time         `json:"analysis_timestamp"`
	AnalysisSummary   map[string]any    `json:"analysis_summary,omitempty"`
	PromptMetadata    *PromptMetadata   `json:"prompt_metadata,omitempty"`
}

// Validate checks the fields the staleness checks depend on.
func (r *InvestigationRecord) Validate() error {
	if strings.TrimSpace(r.RepositoryName) == "" {
		return fmt.Errorf("investigation record: repository name is required")
	}
	if strings.TrimSpace(r.BranchName) == "" {
		return fmt.Errorf("investigation record: branch name is required")
	}
	if r.PromptMetadata != nil {
		if err := r.PromptMetadata.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// InvestigationDecision is the result of a single staleness decision.
// It is ephemeral and never persisted.
type InvestigationDecision struct {
	NeedsInvestigation bool                 `json:"needs_investigation"`
	Reason             string               `json:"reason"`
	LatestCommit       string               `json:"latest_commit"`
	BranchName         string               `json:"branch_name"`
	LastInvestigation  *InvestigationRecord `json:"last_investigation,omitempty"`
}

// PromptCacheEntry is one cached analysis output, keyed externally by the
// composite (repo, step, commit, version) cache key. Entries are immutable:
// a different commit or prompt version produces a different key.
type PromptCacheEntry struct {
	Content   string    `json:"content"`
	StepName  string    `json:"step_name,omitempty"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// StepDescriptor describes one configured analysis step. Descriptors come
// from caller-supplied configuration and are not persisted.
type StepDescriptor struct {
	Name                string   `yaml:"name" json:"name"`
	Description         string   `yaml:"description" json:"description"`
	Required            bool     `yaml:"required" json:"required"`
	ContextDependencies []string `yaml:"context_dependencies" json:"context_dependencies,omitempty"`
}

// TrackedStepResult records that a step ran (or was skipped from cache)
// during the current run. In-memory only; discarded at end of run.
type TrackedStepResult struct {
	Name                string
	Description         string
	ResultKey           string
	Content             string
	Required            bool
	Cached              bool
	CacheTimestamp      *time.Time
	ContextDependencies []string
}

// ShortCommit returns the short display form of a commit id (8 hex chars).
func ShortCommit(commit string) string {
	if len(commit) <= 8 {
		return commit
	}
	return commit[:8]
}
