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

// WorkoutSummary is a workout listing row without the full document.
type WorkoutSummary struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Difficulty        models.Difficulty `json:"difficulty"`
	ActualDuration    int               `json:"actual_duration"`
	EstimatedCalories int               `json:"estimated_calories"`
	IsManual          bool              `json:"is_manual"`
	CreatedAt         time.Time         `json:"created_at"`
}

// InsertWorkout stores a generated workout. Returns true if inserted, false if duplicate.
func (db *DB) InsertWorkout(ctx context.Context, w models.GeneratedWorkout, userID int) (bool, error) {
	doc, err := json.Marshal(w)
	if err != nil {
		return false, fmt.Errorf("encoding workout: %w", err)
	}
	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO workouts (id, user_id, name, difficulty, actual_duration, estimated_calories,
		 is_manual, created_at, doc)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT DO NOTHING`,
		w.ID, userID, w.Name, string(w.Difficulty), w.ActualDuration, w.EstimatedCalories,
		w.IsManual, createdAt, doc)
	if err != nil {
		return false, fmt.Errorf("inserting workout: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	return false, db.checkOwner(ctx, "workouts", w.ID, userID)
}

// GetWorkout retrieves a single workout document by ID.
func (db *DB) GetWorkout(ctx context.Context, id string, userID int) (*models.GeneratedWorkout, error) {
	var doc []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT doc FROM workouts WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying workout: %w", err)
	}

	var w models.GeneratedWorkout
	if err := json.Unmarshal(doc, &w); err != nil {
		return nil, fmt.Errorf("decoding workout %s: %w", id, err)
	}
	return &w, nil
}

// QueryWorkouts lists workouts created in a time range, newest first.
func (db *DB) QueryWorkouts(ctx context.Context, start, end time.Time, userID, limit int) ([]WorkoutSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, difficulty, actual_duration, estimated_calories, is_manual, created_at
		 FROM workouts
		 WHERE created_at >= $1 AND created_at < $2 AND user_id = $3
		 ORDER BY created_at DESC
		 LIMIT $4`,
		start, end, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []WorkoutSummary
	for rows.Next() {
		var w WorkoutSummary
		var difficulty string
		if err := rows.Scan(&w.ID, &w.Name, &difficulty, &w.ActualDuration, &w.EstimatedCalories,
			&w.IsManual, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		w.Difficulty = models.Difficulty(difficulty)
		result = append(result, w)
	}
	return result, rows.Err()
}
