// Package keys builds and parses the composite storage keys used by the
// prompt result cache and the metadata store. The formats are a wire
// contract shared with other consumers of the store and must not change.
package keys

import (
	"fmt"
	"strings"
)

// PromptCacheKey identifies one cached prompt result. Independent entries
// exist per commit and per prompt version; no field is optional.
type PromptCacheKey struct {
	RepoName string
	StepName string
	CommitID string
	Version  string
}

// NewPromptCacheKey validates the parts and applies the default version.
func NewPromptCacheKey(repoName, stepName, commitID, version string) (PromptCacheKey, error) {
	if version == "" {
		version = "1"
	}
	k := PromptCacheKey{
		RepoName: repoName,
		StepName: stepName,
		CommitID: commitID,
		Version:  version,
	}
	if err := k.validate(); err != nil {
		return PromptCacheKey{}, err
	}
	return k, nil
}

func (k PromptCacheKey) validate() error {
	for _, part := range []struct{ field, value string }{
		{"repo name", k.RepoName},
		{"step name", k.StepName},
	} {
		if part.value == "" {
			return fmt.Errorf("prompt cache key: %s is required", part.field)
		}
		if strings.ContainsAny(part.value, "#/\\") {
			return fmt.Errorf("prompt cache key: invalid characters in %s %q", part.field, part.value)
		}
	}
	if len(k.CommitID) < 6 {
		return fmt.Errorf("prompt cache key: invalid commit id %q", k.CommitID)
	}
	if strings.TrimSpace(k.Version) == "" {
		return fmt.Errorf("prompt cache key: version must be a non-empty string")
	}
	return nil
}

// String renders the storage key. Format (bit-exact interop contract):
// {repo_name}_{step_name}_{commit_id}_v{version}
func (k PromptCacheKey) String() string {
	return fmt.Sprintf("%s_%s_%s_v%s", k.RepoName, k.StepName, k.CommitID, k.Version)
}

// ParsePromptCacheKey parses a storage key back into its parts.
// Returns false when the key does not match the expected shape.
//
// Repo names may themselves contain underscores, so the key is split from
// the right: version first, then commit and step.
func ParsePromptCacheKey(key string) (PromptCacheKey, bool) {
	idx := strings.LastIndex(key, "_v")
	if idx < 0 || idx+2 >= len(key) {
		return PromptCacheKey{}, false
	}
	version := key[idx+2:]
	rest := key[:idx]

	commitIdx := strings.LastIndex(rest, "_")
	if commitIdx < 0 {
		return PromptCacheKey{}, false
	}
	commit := rest[commitIdx+1:]
	rest = rest[:commitIdx]

	stepIdx := strings.LastIndex(rest, "_")
	if stepIdx < 0 {
		return PromptCacheKey{}, false
	}
	k := PromptCacheKey{
		RepoName: rest[:stepIdx],
		StepName: rest[stepIdx+1:],
		CommitID: commit,
		Version:  version,
	}
	if k.validate() != nil {
		return PromptCacheKey{}, false
	}
	return k, true
}

// InvestigationMetadataKey returns the metadata record key for a
// repository. The record is keyed by the bare repository name.
func InvestigationMetadataKey(repoName string) string {
	return repoName
}
