package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    shard_index INTEGER NOT NULL,
    shard_count INTEGER NOT NULL,
    test_only BOOLEAN DEFAULT FALSE,
    status TEXT NOT NULL DEFAULT 'running',
    started_at TIMESTAMP,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

CREATE TABLE IF NOT EXISTS target_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    package TEXT NOT NULL,
    env TEXT,
    status TEXT NOT NULL,
    failure_kind TEXT,
    detail TEXT,
    caused_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_results_run_id ON target_results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_package ON target_results(package);
`
