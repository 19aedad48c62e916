package storage

import (
	"context"
	"fmt"
	"time"
)

// TrainingSummaryPeriod holds session totals for one week or month.
type TrainingSummaryPeriod struct {
	Period    string   `json:"period"`
	Sessions  int      `json:"sessions"`
	Completed int      `json:"completed"`
	Stopped   int      `json:"stopped"`
	Minutes   int      `json:"minutes"`
	Calories  int      `json:"calories"`
	AvgRPE    *float64 `json:"avg_rpe,omitempty"`
}

// GetTrainingSummary returns session totals per period, newest first.
func (db *DB) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]TrainingSummaryPeriod, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, started_at)::date AS period,
		        COUNT(*)::int,
		        (COUNT(*) FILTER (WHERE status = 'completed'))::int,
		        (COUNT(*) FILTER (WHERE status = 'stopped_early'))::int,
		        COALESCE(SUM(ROUND(actual_duration_worked / 60.0)), 0)::int,
		        COALESCE(SUM(estimated_calories_burned), 0)::int,
		        AVG(rpe)::float8
		 FROM workout_sessions
		 WHERE started_at >= $2 AND started_at < $3 AND user_id = $4
		 GROUP BY period
		 ORDER BY period DESC`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying training summary: %w", err)
	}
	defer rows.Close()

	var result []TrainingSummaryPeriod
	for rows.Next() {
		var periodTime time.Time
		var p TrainingSummaryPeriod
		if err := rows.Scan(&periodTime, &p.Sessions, &p.Completed, &p.Stopped, &p.Minutes, &p.Calories, &p.AvgRPE); err != nil {
			return nil, fmt.Errorf("scanning training summary: %w", err)
		}
		p.Period = periodTime.Format("2006-01-02")
		result = append(result, p)
	}
	return result, rows.Err()
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 week", "week":
		return "week"
	case "1 month", "month":
		return "month"
	default:
		return "month"
	}
}
