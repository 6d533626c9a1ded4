package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements creating the usage database schema.
// Timestamps are stored as Unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS usage_events (
    request_id TEXT PRIMARY KEY,
    provider_id TEXT NOT NULL,
    content_type TEXT NOT NULL,
    tokens INTEGER NOT NULL,
    cost REAL NOT NULL,
    success BOOLEAN NOT NULL DEFAULT 0,
    completed BOOLEAN NOT NULL DEFAULT 0,
    response_time REAL NOT NULL DEFAULT 0,
    strategy TEXT,
    timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_provider ON usage_events(provider_id);
CREATE INDEX IF NOT EXISTS idx_usage_content_type ON usage_events(content_type);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const upsertEvent = `
INSERT INTO usage_events (
    request_id, provider_id, content_type, tokens, cost,
    success, completed, response_time, strategy, timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(request_id) DO UPDATE SET
    cost = excluded.cost,
    success = excluded.success,
    completed = excluded.completed,
    response_time = excluded.response_time
WHERE usage_events.completed = 0 OR excluded.completed = 1;
`

const pruneEvents = `DELETE FROM usage_events WHERE timestamp < ?;`

const countEvents = `SELECT COUNT(*) FROM usage_events;`

const selectEvents = `
SELECT request_id, provider_id, content_type, tokens, cost,
       success, completed, response_time, strategy, timestamp
FROM usage_events`
