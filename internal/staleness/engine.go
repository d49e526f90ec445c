// Package staleness decides whether a repository needs a full
// re-investigation, based on its current state, the last recorded
// investigation, and the current prompt versions.
//
// The engine fails open: when the metadata store cannot be consulted, the
// answer is always "investigate", never a silent skip.
package staleness

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/archhub/investigator/internal/storage"
	"github.com/archhub/investigator/internal/types"
)

// DefaultTTLDays is how long an investigation record stays live in the
// metadata store before it expires and forces a fresh investigation.
const DefaultTTLDays = 90

// Engine performs staleness decisions and metadata writes against an
// injected metadata store.
type Engine struct {
	store storage.MetadataStore
}

// NewEngine creates a decision engine backed by the given store.
func NewEngine(store storage.MetadataStore) *Engine {
	return &Engine{store: store}
}

// Decide determines whether repoName needs a full investigation.
//
// Checks run in priority order, first match wins: store error, no previous
// record, branch change, commit change, prompt-version change. The
// uncommitted-changes flag is deliberately ignored: a working copy with
// only local edits is still "unchanged" for caching purposes.
//
// currentPromptVersions may be nil, which disables the version check.
func (e *Engine) Decide(ctx context.Context, repoName string, state types.RepositoryState, currentPromptVersions map[string]string) types.InvestigationDecision {
	log.Printf("[STALENESS] checking %s (branch=%s commit=%s dirty=%v)",
		repoName, state.BranchName, types.ShortCommit(state.CommitID), state.HasUncommittedChanges)

	last, err := e.store.GetInvestigation(ctx, repoName)
	if err != nil {
		log.Printf("[STALENESS] store lookup failed for %s: %v (assuming investigation needed)", repoName, err)
		return decision(state, nil, true,
			fmt.Sprintf("Unable to check previous investigations (storage error: %v)", err))
	}
	if last == nil {
		log.Printf("[STALENESS] no previous investigation for %s", repoName)
		return decision(state, nil, true, "No previous investigation found")
	}

	if state.BranchName != last.BranchName {
		return decision(state, last, true,
			fmt.Sprintf("Branch changed (current: %s, last: %s)", state.BranchName, last.BranchName))
	}

	if state.CommitID != last.CommitID {
		return decision(state, last, true,
			fmt.Sprintf("New commits detected (current: %s, last: %s)",
				types.ShortCommit(state.CommitID), shortOrUnknown(last.CommitID)))
	}

	if currentPromptVersions != nil {
		if reason, changed := e.promptVersionsChanged(repoName, currentPromptVersions, last.PromptMetadata); changed {
			return decision(state, last, true, reason)
		}
	} else {
		log.Printf("[STALENESS] no prompt versions supplied for %s, skipping version check", repoName)
	}

	log.Printf("[STALENESS] %s unchanged since %s", repoName, last.AnalysisTimestamp.Format(time.RFC3339))
	return decision(state, last, false, "No changes since last investigation")
}

// promptVersionsChanged applies the prompt-version sub-check. The stored
// count is authoritative for the count comparison; removed steps are
// detected by comparing key sets, independent of the count.
func (e *Engine) promptVersionsChanged(repoName string, current map[string]string, lastMeta *types.PromptMetadata) (string, bool) {
	var lastVersions map[string]string
	lastCount := 0
	if lastMeta != nil {
		lastVersions = lastMeta.Versions
		lastCount = lastMeta.Count
	}

	if len(lastVersions) == 0 {
		// A fresh repository whose prompts are all at the default version
		// is not a version change; anything past v1 is.
		for _, name := range sortedKeys(current) {
			if current[name] != types.DefaultPromptVersion {
				return fmt.Sprintf("%s updated to v%s (no previous version tracking)", name, current[name]), true
			}
		}
		log.Printf("[STALENESS] %s: no prior version tracking, all prompts at v1", repoName)
		return "", false
	}

	if len(current) != lastCount {
		return fmt.Sprintf("Prompt count changed: %d → %d", lastCount, len(current)), true
	}

	for _, name := range sortedKeys(current) {
		lastVersion, ok := lastVersions[name]
		if !ok {
			// Steps that predate version tracking were implicitly at v1.
			lastVersion = types.DefaultPromptVersion
		}
		if lastVersion != current[name] {
			return fmt.Sprintf("%s version changed: v%s → v%s", name, lastVersion, current[name]), true
		}
	}

	for _, name := range sortedKeys(lastVersions) {
		if _, ok := current[name]; !ok {
			return fmt.Sprintf("%s was removed", name), true
		}
	}

	return "", false
}

func decision(state types.RepositoryState, last *types.InvestigationRecord, needed bool, reason string) types.InvestigationDecision {
	if needed {
		log.Printf("[STALENESS] decision: needs investigation (%s)", reason)
	}
	return types.InvestigationDecision{
		NeedsInvestigation: needed,
		Reason:             reason,
		LatestCommit:       state.CommitID,
		BranchName:         state.BranchName,
		LastInvestigation:  last,
	}
}

func shortOrUnknown(commit string) string {
	if commit == "" {
		return "unknown"
	}
	return types.ShortCommit(commit)
}

// sortedKeys gives the version checks a deterministic iteration order so
// the reported reason is stable across runs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
