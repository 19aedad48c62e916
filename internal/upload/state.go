package upload

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/claude/circuitrunner/internal/models"
)

// StateDB holds finished sessions until the server has accepted them.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pending_sessions (
		id          TEXT PRIMARY KEY,
		payload     TEXT NOT NULL,
		enqueued_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		attempts    INTEGER NOT NULL DEFAULT 0,
		last_error  TEXT,
		uploaded_at TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// Enqueue stores a session for upload. Re-enqueueing an uploaded session is a no-op.
func (s *StateDB) Enqueue(ctx context.Context, ws models.WorkoutSession) error {
	payload, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_sessions (id, payload) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload
		 WHERE pending_sessions.uploaded_at IS NULL`,
		ws.ID, string(payload),
	)
	return err
}

// Pending returns sessions not yet uploaded, oldest first.
func (s *StateDB) Pending(ctx context.Context) ([]models.WorkoutSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM pending_sessions WHERE uploaded_at IS NULL ORDER BY enqueued_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WorkoutSession
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ws models.WorkoutSession
		if err := json.Unmarshal([]byte(payload), &ws); err != nil {
			return nil, fmt.Errorf("decoding pending session: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// MarkUploaded records that a session was accepted by the server.
func (s *StateDB) MarkUploaded(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_sessions SET uploaded_at = CURRENT_TIMESTAMP, last_error = NULL WHERE id = ?`, id)
	return err
}

// RecordFailure counts a failed attempt and keeps the last error.
func (s *StateDB) RecordFailure(ctx context.Context, id string, cause error) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_sessions SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		cause.Error(), id)
	return err
}

// Attempts returns the failed attempt count for a session.
func (s *StateDB) Attempts(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT attempts FROM pending_sessions WHERE id = ?`, id).Scan(&n)
	return n, err
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}
