// Package remotestore implements the relational store of record for
// authenticated users over two tables, chat_sessions and chat_turns.
package remotestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/haeun/whatif/pkg/session"
)

// Store is a SQL-backed session.RemoteStore.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens the database, enables WAL mode, and bootstraps the schema.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("Remote store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			story_id TEXT,
			title TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(user_id, updated_at);

		CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns(session_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// LoadSessions returns the user's sessions newest-updated-first, each
// with its turns oldest-first.
func (s *Store) LoadSessions(ctx context.Context, userID string) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, story_id, title, created_at, updated_at, is_active
		FROM chat_sessions
		WHERE user_id = ?
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []session.Session{}
	for rows.Next() {
		var (
			sess      session.Session
			storyID   sql.NullString
			createdAt int64
			updatedAt int64
			isActive  int
		)
		if err := rows.Scan(&sess.ID, &storyID, &sess.Title, &createdAt, &updatedAt, &isActive); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.StoryID = storyID.String
		sess.CreatedAt = time.UnixMilli(createdAt)
		sess.UpdatedAt = time.UnixMilli(updatedAt)
		sess.IsActive = isActive != 0
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	for i := range sessions {
		turns, err := s.loadTurns(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Turns = turns
	}

	return sessions, nil
}

func (s *Store) loadTurns(ctx context.Context, sessionID string) ([]session.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM chat_turns
		WHERE session_id = ?
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []session.Turn{}
	for rows.Next() {
		var (
			turn      session.Turn
			role      string
			createdAt int64
		)
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = session.Role(role)
		turn.Timestamp = time.UnixMilli(createdAt)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}
	return turns, nil
}

// InsertSession inserts the session row owned by the user. Turns are
// inserted separately via InsertTurn.
func (s *Store) InsertSession(ctx context.Context, userID string, sess session.Session) error {
	var storyID interface{}
	if sess.StoryID != "" {
		storyID = sess.StoryID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, story_id, title, created_at, updated_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, userID, storyID, sess.Title, sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(), boolToInt(sess.IsActive))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	s.logger.Debug().Str("session_id", sess.ID).Msg("Session inserted")
	return nil
}

// InsertTurn inserts one turn for a session.
func (s *Store) InsertTurn(ctx context.Context, sessionID string, turn session.Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_turns (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, turn.ID, sessionID, string(turn.Role), turn.Content, turn.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// TouchSession bumps updated_at and marks the session active.
func (s *Store) TouchSession(ctx context.Context, userID, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET updated_at = ?, is_active = 1
		WHERE id = ? AND user_id = ?
	`, time.Now().UnixMilli(), sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return requireRow(res, sessionID)
}

// SetSessionActive updates the activation flag for one session.
func (s *Store) SetSessionActive(ctx context.Context, userID, sessionID string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET is_active = ?
		WHERE id = ? AND user_id = ?
	`, boolToInt(active), sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to update session activation: %w", err)
	}
	return requireRow(res, sessionID)
}

// DeactivateAll clears the activation flag on every session the user owns.
func (s *Store) DeactivateAll(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET is_active = 0 WHERE user_id = ?
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate sessions: %w", err)
	}
	return nil
}

// DeactivateOthers clears the activation flag on every session except one.
func (s *Store) DeactivateOthers(ctx context.Context, userID, keepSessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET is_active = 0 WHERE user_id = ? AND id != ?
	`, userID, keepSessionID)
	if err != nil {
		return fmt.Errorf("failed to deactivate other sessions: %w", err)
	}
	return nil
}

// DeleteSession removes a session and, via cascade, its turns. The
// delete is scoped to the owning user.
func (s *Store) DeleteSession(ctx context.Context, userID, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_sessions WHERE id = ? AND user_id = ?
	`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result, sessionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("session %s not found for user", sessionID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
