package store

// Schema v1 - jobs, per-album results, review queue, album registry
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per batch run
CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_albums INTEGER NOT NULL DEFAULT 0,
  processed INTEGER NOT NULL DEFAULT 0,
  successful INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  needs_review INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0,
  confidence_threshold REAL NOT NULL,
  dry_run INTEGER NOT NULL DEFAULT 1,
  config_json TEXT,
  created_at DATETIME NOT NULL,
  started_at DATETIME,
  completed_at DATETIME
);

-- One row per album per job
CREATE TABLE IF NOT EXISTS album_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
  album_key TEXT NOT NULL,
  artist TEXT NOT NULL,
  album TEXT NOT NULL,
  original_genres TEXT,
  suggested_genres TEXT,
  final_genres TEXT,
  confidence REAL NOT NULL DEFAULT 0,
  sources_used TEXT,
  matched_source TEXT,
  reasoning TEXT,
  files_updated INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  error_message TEXT,
  processing_seconds REAL NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  UNIQUE (job_id, album_key)
);

-- Albums waiting for an operator decision
CREATE TABLE IF NOT EXISTS review_queue (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id TEXT NOT NULL,
  album_key TEXT NOT NULL,
  artist TEXT NOT NULL,
  album TEXT NOT NULL,
  suggested_genres TEXT,
  confidence REAL NOT NULL,
  reason TEXT,
  priority INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL,
  reviewed_at DATETIME,
  decision TEXT,
  reviewer_genres TEXT,
  UNIQUE (job_id, album_key)
);

-- Albums found by the scanner
CREATE TABLE IF NOT EXISTS albums (
  album_key TEXT PRIMARY KEY,
  artist TEXT NOT NULL,
  album TEXT NOT NULL,
  genres TEXT,
  tracks TEXT,
  scanned_at DATETIME NOT NULL
);
`

// Schema v2 - response cache, request log and lookup indexes
const schemaV2 = `
-- Cached source responses; expires_at is unix nanoseconds
CREATE TABLE IF NOT EXISTS api_cache (
  cache_key TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at INTEGER NOT NULL,
  expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_api_cache_expires ON api_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_api_cache_source ON api_cache(source);

-- Outbound requests per source for the sliding rate window; at is unix nanoseconds
CREATE TABLE IF NOT EXISTS rate_limit_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rate_limit_log_source_at ON rate_limit_log(source, at);

CREATE INDEX IF NOT EXISTS idx_album_results_key_status ON album_results(album_key, status);
CREATE INDEX IF NOT EXISTS idx_album_results_job ON album_results(job_id, status);
CREATE INDEX IF NOT EXISTS idx_review_queue_pending ON review_queue(reviewed_at, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
`
