package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/claude/circuitrunner/internal/models"
)

// ManualEntry describes a workout done outside the timer.
type ManualEntry struct {
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Calories        int       `json:"calories"`
	Difficulty      string    `json:"difficulty,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

// NewManualSession builds a completed session for a manually logged workout.
// The workout has no circuits, so the session has no items and is 100% done.
func NewManualSession(e ManualEntry, now time.Time) models.WorkoutSession {
	completed := e.CompletedAt
	if completed.IsZero() {
		completed = now
	}
	seconds := e.DurationMinutes * 60
	started := completed.Add(-time.Duration(seconds) * time.Second)

	difficulty := models.Difficulty(e.Difficulty)
	if !difficulty.Valid() {
		difficulty = models.Intermediate
	}

	w := models.GeneratedWorkout{
		ID:                uuid.NewString(),
		CreatedAt:         now,
		Name:              e.Name,
		Description:       e.Description,
		Difficulty:        difficulty,
		TargetDuration:    e.DurationMinutes,
		ActualDuration:    seconds,
		EstimatedCalories: e.Calories,
		CalorieRange:      models.CalorieRange{Low: e.Calories, High: e.Calories},
		IsManual:          true,
	}

	s := models.WorkoutSession{
		ID:                      uuid.NewString(),
		WorkoutID:               w.ID,
		Workout:                 w,
		Status:                  models.StatusCompleted,
		StartedAt:               &started,
		CompletedAt:             &completed,
		PercentComplete:         100,
		ActualDurationWorked:    seconds,
		EstimatedCaloriesBurned: e.Calories,
	}
	if e.Description != "" {
		notes := e.Description
		s.Feedback = &models.Feedback{Notes: &notes, UpdatedAt: &now}
	}
	return s
}
