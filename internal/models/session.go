package models

import (
	"errors"
	"time"
)

// SessionStatus is the lifecycle state of a WorkoutSession.
type SessionStatus string

const (
	StatusPending      SessionStatus = "pending"
	StatusInProgress   SessionStatus = "in_progress"
	StatusCompleted    SessionStatus = "completed"
	StatusStoppedEarly SessionStatus = "stopped_early"
)

// Terminal reports whether the session has finished, either way.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusStoppedEarly
}

// Feedback is the post-workout rating a user may add or edit later.
type Feedback struct {
	RPE       *int       `json:"rpe,omitempty"` // 1-10
	Notes     *string    `json:"notes,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// StoppedAt records where an abandoned session ended.
type StoppedAt struct {
	CircuitIndex  *int   `json:"circuitIndex,omitempty"`
	RoundIndex    *int   `json:"roundIndex,omitempty"`
	ExerciseIndex *int   `json:"exerciseIndex,omitempty"`
	ItemName      string `json:"itemName"`
}

// WorkoutSession is the execution record of one workout attempt.
type WorkoutSession struct {
	ID              string           `json:"id"`
	WorkoutID       string           `json:"workoutId"`
	Workout         GeneratedWorkout `json:"workout"`
	Status          SessionStatus    `json:"status"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
	StoppedAt       *time.Time       `json:"stoppedAt,omitempty"`
	CompletedItems  int              `json:"completedItems"`
	TotalItems      int              `json:"totalItems"`
	PercentComplete int              `json:"percentComplete"`
	StoppedAtItem   *StoppedAt       `json:"stoppedAtItem,omitempty"`
	// ActualDurationWorked is wall-clock seconds through the timeline, rests included.
	ActualDurationWorked    int       `json:"actualDurationWorked"`
	EstimatedCaloriesBurned int       `json:"estimatedCaloriesBurned"`
	Feedback                *Feedback `json:"feedback,omitempty"`
}

// FinishedAt returns the completion or stop time, whichever is set.
func (s WorkoutSession) FinishedAt() *time.Time {
	if s.CompletedAt != nil {
		return s.CompletedAt
	}
	return s.StoppedAt
}

// NewSession creates the in-progress draft for a workout about to run.
func NewSession(id string, w GeneratedWorkout, timeline FlattenedWorkout, now time.Time) WorkoutSession {
	return WorkoutSession{
		ID:         id,
		WorkoutID:  w.ID,
		Workout:    w,
		Status:     StatusInProgress,
		StartedAt:  &now,
		TotalItems: timeline.TotalItems,
	}
}

// ErrNotFound is returned by stores when a workout or session does not exist
// for the requesting user.
var ErrNotFound = errors.New("not found")

// ErrIDTaken is returned when an insert reuses an id owned by another user.
var ErrIDTaken = errors.New("id belongs to another user")
