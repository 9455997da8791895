package journal

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS calls (
    id TEXT PRIMARY KEY,
    request_id TEXT,
    endpoint TEXT NOT NULL,
    method TEXT NOT NULL,
    url TEXT NOT NULL,
    status_code INTEGER NOT NULL,
    duration_ns INTEGER NOT NULL,
    conflicts INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    called_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calls_called_at ON calls(called_at);
CREATE INDEX IF NOT EXISTS idx_calls_endpoint ON calls(endpoint);
CREATE INDEX IF NOT EXISTS idx_calls_request_id ON calls(request_id);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const selectSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;`

const insertCall = `
INSERT INTO calls (
    id, request_id, endpoint, method, url, status_code, duration_ns, conflicts, error, called_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectCalls = `
SELECT id, request_id, endpoint, method, url, status_code, duration_ns, conflicts, error, called_at
FROM calls`
