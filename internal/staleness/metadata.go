package staleness

import (
	"context"
	"log"
	"time"

	"github.com/archhub/investigator/internal/types"
)

// SaveMetadataParams carries everything recorded about a completed
// investigation. AnalysisSummary is caller-supplied and uninterpreted;
// PromptVersions, when present, becomes the prompt fingerprint the next
// decision compares against.
type SaveMetadataParams struct {
	RepoName        string
	RepoURL         string
	CommitID        string
	BranchName      string
	AnalysisSummary map[string]any
	PromptVersions  map[string]string
	TTLDays         int
}

// SaveResult reports the outcome of a metadata write. A failed write is
// reported here, not raised: a bookkeeping failure must not retroactively
// fail an otherwise-successful investigation.
type SaveResult struct {
	Status    types.SaveStatus
	Message   string
	Timestamp *time.Time
}

// SaveMetadata records a completed investigation for future decisions.
func (e *Engine) SaveMetadata(ctx context.Context, p SaveMetadataParams) SaveResult {
	log.Printf("[STALENESS] saving metadata for %s (commit=%s branch=%s)",
		p.RepoName, types.ShortCommit(p.CommitID), p.BranchName)

	ttlDays := p.TTLDays
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}

	now := time.Now().UTC()
	record := &types.InvestigationRecord{
		RepositoryName:    p.RepoName,
		RepositoryURL:     p.RepoURL,
		CommitID:          p.CommitID,
		BranchName:        p.BranchName,
		AnalysisTimestamp: now,
		AnalysisSummary:   p.AnalysisSummary,
	}
	if p.PromptVersions != nil {
		record.PromptMetadata = types.NewPromptMetadata(p.PromptVersions)
	}

	ttl := time.Duration(ttlDays) * 24 * time.Hour
	if err := e.store.PutInvestigation(ctx, record, ttl); err != nil {
		log.Printf("[STALENESS] metadata save failed for %s: %v", p.RepoName, err)
		return SaveResult{
			Status:  types.SaveStatusError,
			Message: "Failed to save investigation metadata: " + err.Error(),
		}
	}

	return SaveResult{
		Status:    types.SaveStatusSuccess,
		Message:   "Saved investigation metadata for " + p.RepoName,
		Timestamp: &now,
	}
}
