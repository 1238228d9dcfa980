package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the evidence database schema.
const Schema = `
-- Attempt-audit records, one row per candidate tried
CREATE TABLE IF NOT EXISTS evidence (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,

    -- Timestamps
    request_time TIMESTAMP NOT NULL,
    provider_call_time TIMESTAMP,
    response_time TIMESTAMP,
    recorded_time TIMESTAMP NOT NULL,

    -- Request
    request_hash TEXT NOT NULL,
    model TEXT NOT NULL,

    -- Routing
    provider TEXT NOT NULL,
    provider_model TEXT,
    candidate_position INTEGER,
    outcome TEXT,

    -- Result
    finish_reason TEXT,
    prompt_tokens INTEGER,
    completion_tokens INTEGER,
    total_tokens INTEGER,
    actual_cost REAL,
    provider_latency INTEGER,

    -- Attribution
    user_id TEXT,
    api_key TEXT,

    -- Error info
    error TEXT
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_evidence_request_time ON evidence(request_time);
CREATE INDEX IF NOT EXISTS idx_evidence_user_id ON evidence(user_id);
CREATE INDEX IF NOT EXISTS idx_evidence_provider ON evidence(provider);
CREATE INDEX IF NOT EXISTS idx_evidence_model ON evidence(model);
CREATE INDEX IF NOT EXISTS idx_evidence_outcome ON evidence(outcome);
CREATE INDEX IF NOT EXISTS idx_evidence_actual_cost ON evidence(actual_cost);
CREATE INDEX IF NOT EXISTS idx_evidence_total_tokens ON evidence(total_tokens);
CREATE INDEX IF NOT EXISTS idx_evidence_request_id ON evidence(request_id);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
