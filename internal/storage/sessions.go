package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/claude/circuitrunner/internal/models"
)

const sessionColumns = `id, workout_id, status, started_at, completed_at, stopped_at,
	completed_items, total_items, percent_complete, actual_duration_worked, estimated_calories_burned,
	stopped_at_item, rpe, notes, feedback_updated_at, workout`

// InsertSession stores a finished session. Returns true if inserted, false if duplicate.
func (db *DB) InsertSession(ctx context.Context, s models.WorkoutSession, userID int) (bool, error) {
	workout, err := json.Marshal(s.Workout)
	if err != nil {
		return false, fmt.Errorf("encoding session workout: %w", err)
	}
	var stoppedAt []byte
	if s.StoppedAtItem != nil {
		if stoppedAt, err = json.Marshal(s.StoppedAtItem); err != nil {
			return false, fmt.Errorf("encoding stopped-at item: %w", err)
		}
	}
	var rpe *int
	var notes *string
	var fbUpdated *time.Time
	if s.Feedback != nil {
		rpe, notes, fbUpdated = s.Feedback.RPE, s.Feedback.Notes, s.Feedback.UpdatedAt
	}

	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_sessions (id, user_id, workout_id, workout_name, status, started_at,
		 completed_at, stopped_at, completed_items, total_items, percent_complete,
		 actual_duration_worked, estimated_calories_burned, stopped_at_item, rpe, notes,
		 feedback_updated_at, workout)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		 ON CONFLICT DO NOTHING`,
		s.ID, userID, s.WorkoutID, s.Workout.Name, string(s.Status), s.StartedAt,
		s.CompletedAt, s.StoppedAt, s.CompletedItems, s.TotalItems, s.PercentComplete,
		s.ActualDurationWorked, s.EstimatedCaloriesBurned, stoppedAt, rpe, notes,
		fbUpdated, workout)
	if err != nil {
		return false, fmt.Errorf("inserting session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	return false, db.checkOwner(ctx, "workout_sessions", s.ID, userID)
}

// checkOwner reports ErrIDTaken when the existing row with id in table is
// owned by someone other than userID. table is never user input.
func (db *DB) checkOwner(ctx context.Context, table, id string, userID int) error {
	var owner int
	err := db.Pool.QueryRow(ctx, `SELECT user_id FROM `+table+` WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		return fmt.Errorf("checking %s owner: %w", table, err)
	}
	if owner != userID {
		return models.ErrIDTaken
	}
	return nil
}

// GetSession retrieves a single session by ID.
func (db *DB) GetSession(ctx context.Context, id string, userID int) (*models.WorkoutSession, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM workout_sessions
		 WHERE id = $1 AND user_id = $2`,
		id, userID)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// QuerySessions retrieves sessions started in a time range, newest first.
// A zero limit returns every match.
func (db *DB) QuerySessions(ctx context.Context, start, end time.Time, userID, limit int) ([]models.WorkoutSession, error) {
	query := `SELECT ` + sessionColumns + `
		 FROM workout_sessions
		 WHERE COALESCE(started_at, completed_at, stopped_at) >= $1
		   AND COALESCE(started_at, completed_at, stopped_at) < $2
		   AND user_id = $3
		 ORDER BY COALESCE(completed_at, stopped_at, started_at) DESC`
	args := []any{start, end, userID}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// UpdateSessionFeedback replaces the feedback columns of a session.
func (db *DB) UpdateSessionFeedback(ctx context.Context, id string, fb models.Feedback, userID int) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE workout_sessions SET rpe = $3, notes = $4, feedback_updated_at = $5
		 WHERE id = $1 AND user_id = $2`,
		id, userID, fb.RPE, fb.Notes, fb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating session feedback %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteSession removes a session. Returns false if it did not exist.
func (db *DB) DeleteSession(ctx context.Context, id string, userID int) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM workout_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanSession(row pgx.Row) (models.WorkoutSession, error) {
	var (
		s         models.WorkoutSession
		status    string
		stoppedAt []byte
		workout   []byte
		rpe       *int
		notes     *string
		fbUpdated *time.Time
	)
	if err := row.Scan(&s.ID, &s.WorkoutID, &status, &s.StartedAt, &s.CompletedAt, &s.StoppedAt,
		&s.CompletedItems, &s.TotalItems, &s.PercentComplete, &s.ActualDurationWorked,
		&s.EstimatedCaloriesBurned, &stoppedAt, &rpe, &notes, &fbUpdated, &workout); err != nil {
		return s, fmt.Errorf("scanning session: %w", err)
	}
	s.Status = models.SessionStatus(status)

	if len(stoppedAt) > 0 {
		s.StoppedAtItem = &models.StoppedAt{}
		if err := json.Unmarshal(stoppedAt, s.StoppedAtItem); err != nil {
			return s, fmt.Errorf("decoding stopped-at item: %w", err)
		}
	}
	if err := json.Unmarshal(workout, &s.Workout); err != nil {
		return s, fmt.Errorf("decoding session workout: %w", err)
	}
	if rpe != nil || notes != nil || fbUpdated != nil {
		s.Feedback = &models.Feedback{RPE: rpe, Notes: notes, UpdatedAt: fbUpdated}
	}
	return s, nil
}
