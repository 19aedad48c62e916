// Package history records finished workout sessions and derives lifetime
// totals and the day streak from them.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/claude/circuitrunner/internal/models"
)

var (
	ErrNotFound    = models.ErrNotFound
	ErrNotTerminal = errors.New("session is not completed or stopped early")
	ErrInvalidRPE  = errors.New("rpe must be between 1 and 10")
)

// Store persists sessions for one user. *storage.DB and MemoryStore satisfy it.
type Store interface {
	InsertSession(ctx context.Context, s models.WorkoutSession, userID int) (bool, error)
	GetSession(ctx context.Context, id string, userID int) (*models.WorkoutSession, error)
	QuerySessions(ctx context.Context, start, end time.Time, userID, limit int) ([]models.WorkoutSession, error)
	UpdateSessionFeedback(ctx context.Context, id string, fb models.Feedback, userID int) error
	DeleteSession(ctx context.Context, id string, userID int) (bool, error)
}

// Hook is notified after a session has been stored.
type Hook interface {
	SessionRecorded(ctx context.Context, s models.WorkoutSession)
}

// Recorder is the boundary that receives finished sessions.
type Recorder struct {
	store  Store
	userID int
	hooks  []Hook
	log    *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder writing to store on behalf of userID.
func NewRecorder(store Store, userID int, log *slog.Logger, hooks ...Hook) *Recorder {
	return &Recorder{store: store, userID: userID, hooks: hooks, log: log, now: time.Now}
}

// Record stores a terminal session. Duplicate ids are ignored.
func (r *Recorder) Record(ctx context.Context, s models.WorkoutSession) error {
	if !s.Status.Terminal() {
		return ErrNotTerminal
	}
	inserted, err := r.store.InsertSession(ctx, s, r.userID)
	if err != nil {
		return fmt.Errorf("recording session %s: %w", s.ID, err)
	}
	if !inserted {
		r.log.Info("session already recorded", "session_id", s.ID)
		return nil
	}
	r.log.Info("session recorded",
		"session_id", s.ID,
		"workout", s.Workout.Name,
		"status", s.Status,
		"percent", s.PercentComplete,
		"seconds", s.ActualDurationWorked,
	)
	for _, h := range r.hooks {
		h.SessionRecorded(ctx, s)
	}
	return nil
}

// EditFeedback merges fb into the session's feedback and stamps UpdatedAt.
// Fields left nil in fb keep their previous value.
func (r *Recorder) EditFeedback(ctx context.Context, id string, fb models.Feedback) (*models.WorkoutSession, error) {
	if fb.RPE != nil && (*fb.RPE < 1 || *fb.RPE > 10) {
		return nil, ErrInvalidRPE
	}
	s, err := r.store.GetSession(ctx, id, r.userID)
	if err != nil {
		return nil, err
	}

	merged := MergeFeedback(s.Feedback, fb, r.now())
	if err := r.store.UpdateSessionFeedback(ctx, id, merged, r.userID); err != nil {
		return nil, fmt.Errorf("updating feedback: %w", err)
	}
	s.Feedback = &merged
	return s, nil
}

// MergeFeedback overlays update on prev.
func MergeFeedback(prev *models.Feedback, update models.Feedback, now time.Time) models.Feedback {
	var out models.Feedback
	if prev != nil {
		out = *prev
	}
	if update.RPE != nil {
		out.RPE = update.RPE
	}
	if update.Notes != nil {
		out.Notes = update.Notes
	}
	out.UpdatedAt = &now
	return out
}

// Remove deletes a session.
func (r *Recorder) Remove(ctx context.Context, id string) error {
	deleted, err := r.store.DeleteSession(ctx, id, r.userID)
	if err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Get returns one session.
func (r *Recorder) Get(ctx context.Context, id string) (*models.WorkoutSession, error) {
	return r.store.GetSession(ctx, id, r.userID)
}

// Recent returns up to n finished sessions, newest first.
func (r *Recorder) Recent(ctx context.Context, n int) ([]models.WorkoutSession, error) {
	all, err := r.store.QuerySessions(ctx, time.Time{}, r.now().Add(24*time.Hour), r.userID, 0)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	return RecentFinished(all, n), nil
}

// Summary loads every session and computes totals and the streak.
func (r *Recorder) Summary(ctx context.Context) (Summary, error) {
	all, err := r.store.QuerySessions(ctx, time.Time{}, r.now().Add(24*time.Hour), r.userID, 0)
	if err != nil {
		return Summary{}, fmt.Errorf("querying sessions: %w", err)
	}
	return Summarize(all, r.now()), nil
}

// RecentFinished filters completed and stopped sessions and returns the n
// newest. n <= 0 returns all of them.
func RecentFinished(sessions []models.WorkoutSession, n int) []models.WorkoutSession {
	var out []models.WorkoutSession
	for _, s := range sessions {
		if s.Status.Terminal() {
			out = append(out, s)
		}
	}
	sortNewest(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func sortNewest(sessions []models.WorkoutSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessionTime(sessions[i]).After(sessionTime(sessions[j]))
	})
}

func sessionTime(s models.WorkoutSession) time.Time {
	if t := s.FinishedAt(); t != nil {
		return *t
	}
	if s.StartedAt != nil {
		return *s.StartedAt
	}
	return time.Time{}
}
