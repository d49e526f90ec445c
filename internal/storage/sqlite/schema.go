package sqlite

const schema = `
-- Investigation metadata: one row per repository, superseded in place.
CREATE TABLE IF NOT EXISTS investigations (
    repo_name TEXT PRIMARY KEY,
    repo_url TEXT NOT NULL DEFAULT '',
    commit_id TEXT NOT NULL DEFAULT '',
    branch_name TEXT NOT NULL,
    analysis_timestamp INTEGER NOT NULL,
    analysis_summary TEXT NOT NULL DEFAULT '{}',
    prompt_count INTEGER,
    prompt_versions TEXT,
    expires_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_investigations_expires ON investigations(expires_at);

-- Prompt result cache: immutable rows keyed by the composite cache key.
CREATE TABLE IF NOT EXISTS prompt_results (
    cache_key TEXT PRIMARY KEY,
    step_name TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    version TEXT NOT NULL DEFAULT '1',
    created_at INTEGER NOT NULL,
    expires_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_prompt_results_step ON prompt_results(step_name);
CREATE INDEX IF NOT EXISTS idx_prompt_results_expires ON prompt_results(expires_at);
`
