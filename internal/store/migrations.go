package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				id            TEXT PRIMARY KEY,
				active_owner  TEXT NOT NULL DEFAULT '',
				active_name   TEXT NOT NULL DEFAULT '',
				pending       TEXT,
				created_at    TEXT NOT NULL,
				updated_at    TEXT NOT NULL
			);

			CREATE INDEX idx_sessions_updated ON sessions (updated_at);

			CREATE TABLE messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				timestamp   TEXT NOT NULL
			);

			CREATE INDEX idx_messages_session ON messages (session_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create action log",
		SQL: `
			CREATE TABLE action_log (
				id           TEXT PRIMARY KEY,
				session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				kind         TEXT NOT NULL,
				status       TEXT NOT NULL,
				intent       TEXT NOT NULL,
				http_status  INTEGER NOT NULL DEFAULT 0,
				attempts     INTEGER NOT NULL DEFAULT 0,
				records      INTEGER NOT NULL DEFAULT 0,
				detail       TEXT NOT NULL DEFAULT '',
				raw          TEXT,
				created_at   TEXT NOT NULL
			);

			CREATE INDEX idx_action_log_session ON action_log (session_id, created_at);
		`,
	},
	{
		Version: 3,
		Name:    "index messages with FTS5",
		SQL: `
			CREATE VIRTUAL TABLE messages_fts USING fts5(
				content,
				content='messages',
				content_rowid='id'
			);

			INSERT INTO messages_fts(rowid, content) SELECT id, content FROM messages;

			CREATE TRIGGER messages_ai AFTER INSERT ON messages BEGIN
				INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
			END;

			CREATE TRIGGER messages_ad AFTER DELETE ON messages BEGIN
				INSERT INTO messages_fts(messages_fts, rowid, content)
				VALUES ('delete', old.id, old.content);
			END;
		`,
	},
}
