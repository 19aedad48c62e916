package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about all stored data.
type DataStats struct {
	TotalWorkouts     int64              `json:"total_workouts"`
	TotalSessions     int64              `json:"total_sessions"`
	CompletedCount    int64              `json:"completed_sessions"`
	StoppedCount      int64              `json:"stopped_sessions"`
	EarliestSession   *time.Time         `json:"earliest_session"`
	LatestSession     *time.Time         `json:"latest_session"`
	SessionsByWorkout []WorkoutUsageStat `json:"sessions_by_workout"`
}

// WorkoutUsageStat holds how often a single workout was run.
type WorkoutUsageStat struct {
	Name          string `json:"name"`
	Count         int64  `json:"count"`
	Completed     int64  `json:"completed"`
	TotalDuration int64  `json:"total_duration_sec"`
	TotalCalories int64  `json:"total_calories"`
}

// GetDataStats returns aggregate statistics for a user's stored data.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workouts WHERE user_id = $1`, userID,
	).Scan(&stats.TotalWorkouts)
	if err != nil {
		return nil, fmt.Errorf("counting workouts: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*) FILTER (WHERE status = 'stopped_early'),
		        MIN(started_at),
		        MAX(started_at)
		 FROM workout_sessions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalSessions, &stats.CompletedCount, &stats.StoppedCount,
		&stats.EarliestSession, &stats.LatestSession)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT workout_name, COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COALESCE(SUM(actual_duration_worked), 0),
		        COALESCE(SUM(estimated_calories_burned), 0)
		 FROM workout_sessions
		 WHERE user_id = $1
		 GROUP BY workout_name
		 ORDER BY COUNT(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions by workout: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s WorkoutUsageStat
		if err := rows.Scan(&s.Name, &s.Count, &s.Completed, &s.TotalDuration, &s.TotalCalories); err != nil {
			return nil, fmt.Errorf("scanning workout usage stat: %w", err)
		}
		stats.SessionsByWorkout = append(stats.SessionsByWorkout, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
