package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/ghagent/internal/domain"
)

// SQLiteSessionStore implements agent.SessionStore backed by SQLite.
// Write failures are logged: a turn never fails because history could not
// be saved.
type SQLiteSessionStore struct {
	db *DB
}

// NewSQLiteSessionStore creates a session store using the given database.
func NewSQLiteSessionStore(db *DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db}
}

// GetOrCreate returns the session with the given ID, creating it if needed.
// An empty ID creates a session with a fresh ID.
func (s *SQLiteSessionStore) GetOrCreate(id string) *domain.Session {
	if id == "" {
		id = uuid.New().String()
	}

	now := formatTime(time.Now())
	_, err := s.db.sql.Exec(
		`INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, now, now,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", id).Msg("failed to create session")
	}

	if sess := s.Get(id); sess != nil {
		return sess
	}
	// Keep the turn going on a transient session.
	return &domain.Session{ID: id, CreatedAt: parseTime(now), UpdatedAt: parseTime(now)}
}

// Get returns a session by ID, or nil if not found.
func (s *SQLiteSessionStore) Get(id string) *domain.Session {
	var sess domain.Session
	var owner, name, createdAt, updatedAt string
	var pending sql.NullString

	err := s.db.sql.QueryRow(
		`SELECT id, active_owner, active_name, pending, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &owner, &name, &pending, &createdAt, &updatedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.db.log.Error().Err(err).Str("session", id).Msg("failed to load session")
		}
		return nil
	}

	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	if owner != "" && name != "" {
		sess.ActiveRepo = &domain.RepoRef{Owner: owner, Name: name}
	}
	if pending.Valid && pending.String != "" {
		var p domain.PendingClarification
		if err := json.Unmarshal([]byte(pending.String), &p); err != nil {
			s.db.log.Warn().Err(err).Str("session", id).Msg("discarding unreadable pending action")
		} else {
			sess.Pending = &p
		}
	}

	sess.Messages = s.loadMessages(id, -1)
	return &sess
}

// Append adds a message to a session.
func (s *SQLiteSessionStore) Append(sessionID string, msg domain.Message) {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to append message")
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
		sessionID, msg.Role, msg.Content, formatTime(ts),
	); err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to append message")
		return
	}
	if _, err := tx.Exec(
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		formatTime(time.Now()), sessionID,
	); err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to touch session")
		return
	}
	if err := tx.Commit(); err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to append message")
	}
}

// History returns the last limit messages in order (all when limit <= 0).
func (s *SQLiteSessionStore) History(sessionID string, limit int) []domain.Message {
	if limit <= 0 {
		limit = -1
	}
	return s.loadMessages(sessionID, limit)
}

// UpdateContext stores the active repository and pending action. A nil
// active repository is ignored; a nil pending action clears it.
func (s *SQLiteSessionStore) UpdateContext(sessionID string, active *domain.RepoRef, pending *domain.PendingClarification) {
	var pendingJSON sql.NullString
	if pending != nil {
		data, err := json.Marshal(pending)
		if err != nil {
			s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to encode pending action")
			return
		}
		pendingJSON = sql.NullString{String: string(data), Valid: true}
	}

	now := formatTime(time.Now())
	var err error
	if active != nil && !active.IsZero() {
		_, err = s.db.sql.Exec(
			`UPDATE sessions SET active_owner = ?, active_name = ?, pending = ?, updated_at = ? WHERE id = ?`,
			active.Owner, active.Name, pendingJSON, now, sessionID,
		)
	} else {
		_, err = s.db.sql.Exec(
			`UPDATE sessions SET pending = ?, updated_at = ? WHERE id = ?`,
			pendingJSON, now, sessionID,
		)
	}
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to update session context")
	}
}

// List returns all session IDs, most recently updated first.
func (s *SQLiteSessionStore) List() []string {
	rows, err := s.db.sql.Query(`SELECT id FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		s.db.log.Error().Err(err).Msg("failed to list sessions")
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// MessageHit is a message matched by a full-text search.
type MessageHit struct {
	SessionID string         `json:"sessionId"`
	Message   domain.Message `json:"message"`
}

// SearchMessages finds messages across all sessions matching an FTS5 query,
// best match first. A limit of 0 defaults to 20.
func (s *SQLiteSessionStore) SearchMessages(query string, limit int) ([]MessageHit, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.sql.Query(
		`SELECT m.session_id, m.role, m.content, m.timestamp
		 FROM messages_fts
		 JOIN messages m ON m.id = messages_fts.rowid
		 WHERE messages_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []MessageHit
	for rows.Next() {
		var hit MessageHit
		var ts string
		if err := rows.Scan(&hit.SessionID, &hit.Message.Role, &hit.Message.Content, &ts); err != nil {
			return nil, err
		}
		hit.Message.Timestamp = parseTime(ts)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// loadMessages returns the newest limit messages of a session in order;
// -1 loads all of them.
func (s *SQLiteSessionStore) loadMessages(sessionID string, limit int) []domain.Message {
	rows, err := s.db.sql.Query(
		`SELECT role, content, timestamp FROM messages
		 WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to load messages")
		return nil
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var ts string
		if err := rows.Scan(&msg.Role, &msg.Content, &ts); err != nil {
			continue
		}
		msg.Timestamp = parseTime(ts)
		msgs = append(msgs, msg)
	}
	slices.Reverse(msgs)
	return msgs
}
