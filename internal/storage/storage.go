// Package storage defines the store interfaces the investigation core
// depends on. Implementations are injected by the caller; the core never
// constructs a store itself.
package storage

import (
	"context"
	"time"

	"github.com/archhub/investigator/internal/storage/sqlite"
	"github.com/archhub/investigator/internal/types"
)

// MetadataStore persists the one-per-repository investigation record.
type MetadataStore interface {
	// GetInvestigation returns the last investigation record for the
	// repository, or (nil, nil) when none exists.
	GetInvestigation(ctx context.Context, repoName string) (*types.InvestigationRecord, error)

	// PutInvestigation writes the record keyed by its repository name,
	// superseding any previous record. A zero ttl means no expiry.
	PutInvestigation(ctx context.Context, record *types.InvestigationRecord, ttl time.Duration) error

	// DeleteInvestigation removes the record for the repository.
	DeleteInvestigation(ctx context.Context, repoName string) error
}

// PromptCacheStore persists per-step analysis results under composite
// cache keys. Entries are immutable once written; a new commit or prompt
// version produces a new key.
type PromptCacheStore interface {
	// GetResult returns the cached entry for the key, or (nil, nil) on miss.
	GetResult(ctx context.Context, cacheKey string) (*types.PromptCacheEntry, error)

	// PutResult writes the entry under the key. A zero ttl means no expiry.
	PutResult(ctx context.Context, cacheKey string, entry *types.PromptCacheEntry, ttl time.Duration) error

	// DeleteResult removes the entry for the key.
	DeleteResult(ctx context.Context, cacheKey string) error
}

// Store combines both store roles plus lifecycle. The SQLite backend
// implements both over one database file.
type Store interface {
	MetadataStore
	PromptCacheStore
	Close() error
}

// Config holds store configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".investigator/investigator.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".investigator/investigator.db",
	}
}

// NewStore creates a new SQLite store backend.
// The ctx parameter is currently unused but kept for API consistency
// and future extension possibilities.
func NewStore(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Path == "" {
		cfg.Path = ".investigator/investigator.db"
	}

	return sqlite.New(cfg.Path)
}
