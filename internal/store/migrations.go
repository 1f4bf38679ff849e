package store

const schema = `
CREATE TABLE IF NOT EXISTS anime (
    key           TEXT PRIMARY KEY,
    id            INTEGER NOT NULL,
    provider      TEXT NOT NULL,
    title         TEXT NOT NULL,
    title_english TEXT NOT NULL DEFAULT '',
    url           TEXT NOT NULL DEFAULT '',
    score         REAL NOT NULL DEFAULT 0,
    scored_by     INTEGER NOT NULL DEFAULT 0,
    site_rank     INTEGER NOT NULL DEFAULT 0,
    members       INTEGER NOT NULL DEFAULT 0,
    episodes      INTEGER NOT NULL DEFAULT 0,
    year          INTEGER NOT NULL DEFAULT 0,
    has_year      BOOLEAN NOT NULL DEFAULT 0,
    fetched_at    DATETIME NOT NULL,
    UNIQUE(provider, id)
);

CREATE INDEX IF NOT EXISTS idx_anime_provider ON anime(provider);
CREATE INDEX IF NOT EXISTS idx_anime_year ON anime(year);
CREATE INDEX IF NOT EXISTS idx_anime_score ON anime(score);

CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    algorithm       TEXT NOT NULL,
    baseline_start  INTEGER NOT NULL,
    baseline_end    INTEGER NOT NULL,
    baseline_count  INTEGER NOT NULL DEFAULT 0,
    baseline_median REAL NOT NULL DEFAULT 0,
    degenerate      BOOLEAN NOT NULL DEFAULT 0,
    min_sample_size INTEGER NOT NULL DEFAULT 0,
    item_count      INTEGER NOT NULL DEFAULT 0,
    estimated_count INTEGER NOT NULL DEFAULT 0,
    dropped_count   INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS rankings (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id         TEXT NOT NULL REFERENCES runs(id),
    anime_key      TEXT NOT NULL REFERENCES anime(key),
    original_score REAL NOT NULL,
    original_rank  INTEGER NOT NULL,
    adjusted_score REAL NOT NULL,
    adjusted_rank  INTEGER NOT NULL,
    delta          REAL NOT NULL,
    percentile     REAL NOT NULL,
    estimated      BOOLEAN NOT NULL DEFAULT 0,
    UNIQUE(run_id, anime_key)
);

CREATE INDEX IF NOT EXISTS idx_rankings_run ON rankings(run_id);
CREATE INDEX IF NOT EXISTS idx_rankings_rank ON rankings(run_id, adjusted_rank);

CREATE TABLE IF NOT EXISTS cohorts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL REFERENCES runs(id),
    year        INTEGER NOT NULL,
    members     INTEGER NOT NULL DEFAULT 0,
    median      REAL NOT NULL DEFAULT 0,
    percentiles TEXT NOT NULL DEFAULT '{}',
    UNIQUE(run_id, year)
);

CREATE INDEX IF NOT EXISTS idx_cohorts_run ON cohorts(run_id);
`
