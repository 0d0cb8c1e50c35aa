package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/ghagent/internal/domain"
)

// ActionEntry is one dispatched action as recorded for diagnostics.
type ActionEntry struct {
	ID         string              `json:"id"`
	SessionID  string              `json:"sessionId"`
	Kind       domain.IntentKind   `json:"kind"`
	Status     domain.ResultStatus `json:"status"`
	Intent     domain.Intent       `json:"intent"`
	HTTPStatus int                 `json:"httpStatus,omitempty"`
	Attempts   int                 `json:"attempts"`
	Records    int                 `json:"records"`
	Detail     string              `json:"detail,omitempty"`
	Raw        json.RawMessage     `json:"raw,omitempty"` // provider response pages
	CreatedAt  time.Time           `json:"createdAt"`
}

// ActionLog stores every dispatched action with the raw provider response.
// It implements agent.ActionRecorder.
type ActionLog struct {
	db  *DB
	now func() time.Time
}

// NewActionLog creates an action log using the given database.
func NewActionLog(db *DB) *ActionLog {
	return &ActionLog{db: db, now: time.Now}
}

// RecordAction appends an entry for the result of dispatching in.
func (l *ActionLog) RecordAction(ctx context.Context, sessionID string, in domain.Intent, res domain.ActionResult) error {
	intentJSON, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding intent: %w", err)
	}

	var raw sql.NullString
	if data := res.RawJSON(); data != nil {
		raw = sql.NullString{String: string(data), Valid: true}
	}

	_, err = l.db.sql.ExecContext(ctx,
		`INSERT INTO action_log (id, session_id, kind, status, intent, http_status, attempts, records, detail, raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, string(res.Kind), string(res.Status), string(intentJSON),
		res.HTTPStatus, res.Attempts, len(res.Records), res.Detail, raw, formatTime(l.now()),
	)
	if err != nil {
		return fmt.Errorf("recording action: %w", err)
	}
	return nil
}

// ListActions returns a session's most recent entries, newest first. A limit
// of 0 defaults to 50.
func (l *ActionLog) ListActions(ctx context.Context, sessionID string, limit int) ([]ActionEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.sql.QueryContext(ctx,
		`SELECT id, session_id, kind, status, intent, http_status, attempts, records, detail, raw, created_at
		 FROM action_log WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	defer rows.Close()

	var entries []ActionEntry
	for rows.Next() {
		var e ActionEntry
		var kind, status, intentJSON, createdAt string
		var raw sql.NullString

		if err := rows.Scan(
			&e.ID, &e.SessionID, &kind, &status, &intentJSON,
			&e.HTTPStatus, &e.Attempts, &e.Records, &e.Detail, &raw, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}

		e.Kind = domain.IntentKind(kind)
		e.Status = domain.ResultStatus(status)
		e.CreatedAt = parseTime(createdAt)
		if err := json.Unmarshal([]byte(intentJSON), &e.Intent); err != nil {
			l.db.log.Warn().Err(err).Str("id", e.ID).Msg("unreadable intent in action log")
		}
		if raw.Valid {
			e.Raw = json.RawMessage(raw.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
