// Package sqlite provides the SQLite-backed store for investigation
// metadata and cached prompt results. TTLs are stored as an expires_at
// column; expired rows are treated as absent on read and purged lazily.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/archhub/investigator/internal/types"
)

// SQLiteStore implements the storage interfaces using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// now is swappable for expiry tests
	now func() time.Time
}

// New creates a new SQLite store backend.
func New(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; keep the pool at one so
	// every query sees the same database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetInvestigation returns the last investigation record for the repository,
// or (nil, nil) when none exists or the row has expired.
func (s *SQLiteStore) GetInvestigation(ctx context.Context, repoName string) (*types.InvestigationRecord, error) {
	query := `
		SELECT repo_name, repo_url, commit_id, branch_name, analysis_timestamp,
		       analysis_summary, prompt_count, prompt_versions
		FROM investigations
		WHERE repo_name = ? AND (expires_at IS NULL OR expires_at > ?)
	`

	var (
		rec         types.InvestigationRecord
		ts          int64
		summaryJSON string
		count       sql.NullInt64
		versions    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, repoName, s.now().Unix()).Scan(
		&rec.RepositoryName,
		&rec.RepositoryURL,
		&rec.CommitID,
		&rec.BranchName,
		&ts,
		&summaryJSON,
		&count,
		&versions,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investigation for %s: %w", repoName, err)
	}

	rec.AnalysisTimestamp = time.Unix(ts, 0).UTC()
	if summaryJSON != "" && summaryJSON != "{}" {
		if err := json.Unmarshal([]byte(summaryJSON), &rec.AnalysisSummary); err != nil {
			return nil, fmt.Errorf("failed to decode analysis summary for %s: %w", repoName, err)
		}
	}

	// prompt_count is authoritative even when it disagrees with the number
	// of stored version entries.
	if count.Valid {
		meta := &types.PromptMetadata{
			Count:    int(count.Int64),
			Versions: map[string]string{},
		}
		if versions.Valid && versions.String != "" {
			if err := json.Unmarshal([]byte(versions.String), &meta.Versions); err != nil {
				return nil, fmt.Errorf("failed to decode prompt versions for %s: %w", repoName, err)
			}
		}
		rec.PromptMetadata = meta
	}

	return &rec, nil
}

// PutInvestigation writes the record keyed by repository name. The write is
// last-writer-wins: concurrent investigations of the same repository
// supersede each other without locking.
func (s *SQLiteStore) PutInvestigation(ctx context.Context, record *types.InvestigationRecord, ttl time.Duration) error {
	if record == nil {
		return fmt.Errorf("investigation record is required")
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid investigation record: %w", err)
	}

	summaryJSON := "{}"
	if len(record.AnalysisSummary) > 0 {
		data, err := json.Marshal(record.AnalysisSummary)
		if err != nil {
			return fmt.Errorf("failed to encode analysis summary: %w", err)
		}
		summaryJSON = string(data)
	}

	var count sql.NullInt64
	var versions sql.NullString
	if record.PromptMetadata != nil {
		count = sql.NullInt64{Int64: int64(record.PromptMetadata.Count), Valid: true}
		data, err := json.Marshal(record.PromptMetadata.Versions)
		if err != nil {
			return fmt.Errorf("failed to encode prompt versions: %w", err)
		}
		versions = sql.NullString{String: string(data), Valid: true}
	}

	ts := record.AnalysisTimestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investigations (
			repo_name, repo_url, commit_id, branch_name, analysis_timestamp,
			analysis_summary, prompt_count, prompt_versions, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_name) DO UPDATE SET
			repo_url = excluded.repo_url,
			commit_id = excluded.commit_id,
			branch_name = excluded.branch_name,
			analysis_timestamp = excluded.analysis_timestamp,
			analysis_summary = excluded.analysis_summary,
			prompt_count = excluded.prompt_count,
			prompt_versions = excluded.prompt_versions,
			expires_at = excluded.expires_at
	`, record.RepositoryName, record.RepositoryURL, record.CommitID, record.BranchName,
		ts.Unix(), summaryJSON, count, versions, s.expiry(ttl))
	if err != nil {
		return fmt.Errorf("failed to save investigation for %s: %w", record.RepositoryName, err)
	}

	return nil
}

// DeleteInvestigation removes the record for the repository.
func (s *SQLiteStore) DeleteInvestigation(ctx context.Context, repoName string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM investigations WHERE repo_name = ?`, repoName); err != nil {
		return fmt.Errorf("failed to delete investigation for %s: %w", repoName, err)
	}
	return nil
}

// GetResult returns the cached prompt result for the key, or (nil, nil)
// on miss or expiry.
func (s *SQLiteStore) GetResult(ctx context.Context, cacheKey string) (*types.PromptCacheEntry, error) {
	query := `
		SELECT step_name, content, version, created_at
		FROM prompt_results
		WHERE cache_key = ? AND (expires_at IS NULL OR expires_at > ?)
	`

	var (
		entry types.PromptCacheEntry
		ts    int64
	)
	err := s.db.QueryRowContext(ctx, query, cacheKey, s.now().Unix()).Scan(
		&entry.StepName,
		&entry.Content,
		&entry.Version,
		&ts,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached result %s: %w", cacheKey, err)
	}

	entry.Timestamp = time.Unix(ts, 0).UTC()
	return &entry, nil
}

// PutResult writes the entry under the composite key. Re-writing the same
// key replaces the row, but callers never reuse a key for different
// logical content: commit and version are part of the key.
func (s *SQLiteStore) PutResult(ctx context.Context, cacheKey string, entry *types.PromptCacheEntry, ttl time.Duration) error {
	if entry == nil {
		return fmt.Errorf("cache entry is required")
	}
	version := entry.Version
	if version == "" {
		version = types.DefaultPromptVersion
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_results (cache_key, step_name, content, version, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			step_name = excluded.step_name,
			content = excluded.content,
			version = excluded.version,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, cacheKey, entry.StepName, entry.Content, version, ts.Unix(), s.expiry(ttl))
	if err != nil {
		return fmt.Errorf("failed to save cached result %s: %w", cacheKey, err)
	}

	return nil
}

// DeleteResult removes the entry for the key.
func (s *SQLiteStore) DeleteResult(ctx context.Context, cacheKey string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM prompt_results WHERE cache_key = ?`, cacheKey); err != nil {
		return fmt.Errorf("failed to delete cached result %s: %w", cacheKey, err)
	}
	return nil
}

// PurgeExpired removes rows whose TTL has elapsed. Reads already ignore
// them; this reclaims space. Returns the number of rows removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now().Unix()
	total := 0
	for _, table := range []string{"investigations", "prompt_results"} {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= ?`, table), now)
		if err != nil {
			return total, fmt.Errorf("failed to purge %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += int(n)
		}
	}
	return total, nil
}

func (s *SQLiteStore) expiry(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.now().Add(ttl).Unix(), Valid: true}
}
