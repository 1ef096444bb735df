// Package store persists the active chat session in SQLite so a restart
// can pick up where the user left off. Exactly one session is kept.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"kbchat/internal/logging"
	"kbchat/internal/session"
	"kbchat/internal/types"
)

// ErrNoActiveSession is returned when no session has been begun, or when
// a write names a session that is no longer the active one.
var ErrNoActiveSession = errors.New("no active session")

// SessionStore implements session.Persister on SQLite.
type SessionStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

var _ session.Persister = (*SessionStore)(nil)

// NewSessionStore opens (or creates) the database at path.
func NewSessionStore(path string) (*SessionStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SessionStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("session store opened at %s", path)
	return s, nil
}

func (s *SessionStore) initialize() error {
	sessionTable := `
	CREATE TABLE IF NOT EXISTS active_session (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		session_id TEXT NOT NULL,
		started_at TEXT NOT NULL,
		last_response TEXT
	);
	`

	turnsTable := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		diagnostics TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	`

	for _, table := range []string{sessionTable, turnsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Begin makes sessionID the active session, discarding any previous one.
func (s *SessionStore) Begin(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM turns"); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO active_session (slot, session_id, started_at, last_response) VALUES (1, ?, ?, NULL)",
		sessionID, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	logging.StoreDebug("began session %s", sessionID)
	return nil
}

// AppendTurns stores finalized turns of the active session.
func (s *SessionStore) AppendTurns(ctx context.Context, sessionID string, turns ...session.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireActive(ctx, tx, sessionID); err != nil {
		return err
	}

	for _, t := range turns {
		var diags sql.NullString
		if len(t.Diagnostics) > 0 {
			data, err := json.Marshal(t.Diagnostics)
			if err != nil {
				return fmt.Errorf("failed to marshal diagnostics: %w", err)
			}
			diags = sql.NullString{String: string(data), Valid: true}
		}
		created := t.Time
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO turns (session_id, role, content, diagnostics, created_at) VALUES (?, ?, ?, ?, ?)",
			sessionID, string(t.Role), t.Content, diags, created.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turns: %w", err)
	}
	logging.StoreDebug("stored %d turns for %s", len(turns), sessionID)
	return nil
}

// SaveLastResponse keeps the structured part of the most recent response.
func (s *SessionStore) SaveLastResponse(ctx context.Context, sessionID string, resp types.RawResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(types.RawResponse{Citations: resp.Citations, Trace: resp.Trace})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE active_session SET last_response = ? WHERE slot = 1 AND session_id = ?",
		string(data), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to save last response: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoActiveSession
	}
	return nil
}

// Load restores the active session.
func (s *SessionStore) Load(ctx context.Context) (session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st session.State
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, last_response FROM active_session WHERE slot = 1",
	).Scan(&st.ID, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return session.State{}, ErrNoActiveSession
	}
	if err != nil {
		return session.State{}, fmt.Errorf("failed to load session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, diagnostics, created_at FROM turns WHERE session_id = ? ORDER BY id",
		st.ID,
	)
	if err != nil {
		return session.State{}, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t session.Turn
		var role, created string
		var diags sql.NullString
		if err := rows.Scan(&role, &t.Content, &diags, &created); err != nil {
			return session.State{}, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = session.Role(role)
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			t.Time = ts
		}
		if diags.Valid {
			if err := json.Unmarshal([]byte(diags.String), &t.Diagnostics); err != nil {
				logging.Get(logging.CategoryStore).Warn("dropping unreadable diagnostics: %v", err)
			}
		}
		st.Turns = append(st.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return session.State{}, fmt.Errorf("failed to read turns: %w", err)
	}

	if last.Valid && last.String != "" {
		var resp types.RawResponse
		if err := json.Unmarshal([]byte(last.String), &resp); err != nil {
			logging.Get(logging.CategoryStore).Warn("dropping unreadable last response: %v", err)
		} else {
			st.LastCitations = resp.Citations
			st.LastTrace = resp.Trace
		}
	}

	logging.StoreDebug("loaded session %s with %d turns", st.ID, len(st.Turns))
	return st, nil
}

// Clear removes the active session entirely.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []string{"DELETE FROM turns", "DELETE FROM active_session"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}
	return nil
}

func requireActive(ctx context.Context, tx *sql.Tx, sessionID string) error {
	var active string
	err := tx.QueryRowContext(ctx, "SELECT session_id FROM active_session WHERE slot = 1").Scan(&active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && active != sessionID) {
		return ErrNoActiveSession
	}
	if err != nil {
		return fmt.Errorf("failed to read active session: %w", err)
	}
	return nil
}
