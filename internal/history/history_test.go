package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/circuitrunner/internal/models"
)

var now = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completedOn(id string, t time.Time, seconds, calories int) models.WorkoutSession {
	start := t.Add(-time.Duration(seconds) * time.Second)
	return models.WorkoutSession{
		ID:                      id,
		Status:                  models.StatusCompleted,
		StartedAt:               &start,
		CompletedAt:             &t,
		PercentComplete:         100,
		ActualDurationWorked:    seconds,
		EstimatedCaloriesBurned: calories,
	}
}

func stoppedOn(id string, t time.Time, seconds, calories int) models.WorkoutSession {
	start := t.Add(-time.Duration(seconds) * time.Second)
	return models.WorkoutSession{
		ID:                      id,
		Status:                  models.StatusStoppedEarly,
		StartedAt:               &start,
		StoppedAt:               &t,
		ActualDurationWorked:    seconds,
		EstimatedCaloriesBurned: calories,
	}
}

func daysAgo(n int) time.Time { return now.AddDate(0, 0, -n) }

type recordingHook struct{ ids []string }

func (h *recordingHook) SessionRecorded(_ context.Context, s models.WorkoutSession) {
	h.ids = append(h.ids, s.ID)
}

// TestRecordRejectsNonTerminal verifies only finished sessions are recorded.
func TestRecordRejectsNonTerminal(t *testing.T) {
	r := NewRecorder(NewMemoryStore(), 1, discardLogger())
	err := r.Record(context.Background(), models.WorkoutSession{ID: "s", Status: models.StatusInProgress})
	if !errors.Is(err, ErrNotTerminal) {
		t.Errorf("err = %v, want ErrNotTerminal", err)
	}
}

// TestRecordDuplicate verifies a second Record of the same id is ignored and
// hooks fire once.
func TestRecordDuplicate(t *testing.T) {
	hook := &recordingHook{}
	r := NewRecorder(NewMemoryStore(), 1, discardLogger(), hook)
	ctx := context.Background()
	s := completedOn("s1", daysAgo(0), 600, 80)

	for range 2 {
		if err := r.Record(ctx, s); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if len(hook.ids) != 1 {
		t.Errorf("hook calls = %d, want 1", len(hook.ids))
	}
}

// TestEditFeedback verifies merge semantics and RPE validation.
func TestEditFeedback(t *testing.T) {
	r := NewRecorder(NewMemoryStore(), 1, discardLogger())
	r.now = func() time.Time { return now }
	ctx := context.Background()
	if err := r.Record(ctx, completedOn("s1", daysAgo(0), 600, 80)); err != nil {
		t.Fatal(err)
	}

	rpe := 7
	if _, err := r.EditFeedback(ctx, "s1", models.Feedback{RPE: &rpe}); err != nil {
		t.Fatalf("EditFeedback: %v", err)
	}
	notes := "legs heavy"
	got, err := r.EditFeedback(ctx, "s1", models.Feedback{Notes: &notes})
	if err != nil {
		t.Fatalf("EditFeedback: %v", err)
	}
	if got.Feedback == nil || got.Feedback.RPE == nil || *got.Feedback.RPE != 7 {
		t.Errorf("rpe lost after notes edit: %+v", got.Feedback)
	}
	if got.Feedback.Notes == nil || *got.Feedback.Notes != notes {
		t.Errorf("notes = %v, want %q", got.Feedback.Notes, notes)
	}
	if got.Feedback.UpdatedAt == nil || !got.Feedback.UpdatedAt.Equal(now) {
		t.Errorf("updatedAt = %v, want %v", got.Feedback.UpdatedAt, now)
	}

	stored, _ := r.Get(ctx, "s1")
	if stored.Feedback == nil || *stored.Feedback.Notes != notes {
		t.Errorf("stored feedback = %+v", stored.Feedback)
	}

	bad := 11
	if _, err := r.EditFeedback(ctx, "s1", models.Feedback{RPE: &bad}); !errors.Is(err, ErrInvalidRPE) {
		t.Errorf("err = %v, want ErrInvalidRPE", err)
	}
	if _, err := r.EditFeedback(ctx, "missing", models.Feedback{RPE: &rpe}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestRemove verifies removal and the not-found case.
func TestRemove(t *testing.T) {
	r := NewRecorder(NewMemoryStore(), 1, discardLogger())
	ctx := context.Background()
	if err := r.Record(ctx, completedOn("s1", daysAgo(0), 600, 80)); err != nil {
		t.Fatal(err)
	}
	if err := r.Remove(ctx, "s1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.Remove(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove err = %v, want ErrNotFound", err)
	}
}

// TestUserIsolation verifies sessions are scoped to the recorder's user.
func TestUserIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	alice := NewRecorder(store, 1, discardLogger())
	bob := NewRecorder(store, 2, discardLogger())
	if err := alice.Record(ctx, completedOn("s1", daysAgo(0), 600, 80)); err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("bob.Get err = %v, want ErrNotFound", err)
	}
	if err := bob.Remove(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("bob.Remove err = %v, want ErrNotFound", err)
	}
	if err := bob.Record(ctx, completedOn("s1", daysAgo(0), 300, 40)); !errors.Is(err, models.ErrIDTaken) {
		t.Errorf("bob.Record(alice's id) err = %v, want ErrIDTaken", err)
	}
}

// TestRecent verifies ordering, the limit and that only finished sessions appear.
func TestRecent(t *testing.T) {
	sessions := []models.WorkoutSession{
		completedOn("old", daysAgo(3), 600, 50),
		stoppedOn("mid", daysAgo(1), 300, 20),
		completedOn("new", daysAgo(0), 900, 90),
		{ID: "draft", Status: models.StatusInProgress},
	}

	got := RecentFinished(sessions, 2)
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "mid" {
		t.Errorf("RecentFinished = %v, want [new mid]", ids(got))
	}
	if all := RecentFinished(sessions, 0); len(all) != 3 {
		t.Errorf("RecentFinished(0) len = %d, want 3", len(all))
	}
}

func ids(ss []models.WorkoutSession) []string {
	var out []string
	for _, s := range ss {
		out = append(out, s.ID)
	}
	return out
}

// TestSummarize verifies totals. Stopped sessions add minutes and calories
// but not completed workouts.
func TestSummarize(t *testing.T) {
	sessions := []models.WorkoutSession{
		completedOn("a", daysAgo(0), 1200, 150), // 20 min
		stoppedOn("b", daysAgo(1), 450, 40),     // 7.5 -> 8 min
		completedOn("c", daysAgo(1), 89, 10),    // 1.48 -> 1 min
		{ID: "draft", Status: models.StatusInProgress, ActualDurationWorked: 600},
	}
	sum := Summarize(sessions, now)

	if sum.TotalSessions != 3 {
		t.Errorf("TotalSessions = %d, want 3", sum.TotalSessions)
	}
	if sum.TotalWorkoutsCompleted != 2 {
		t.Errorf("TotalWorkoutsCompleted = %d, want 2", sum.TotalWorkoutsCompleted)
	}
	if sum.TotalMinutesWorked != 29 {
		t.Errorf("TotalMinutesWorked = %d, want 29", sum.TotalMinutesWorked)
	}
	if sum.TotalCaloriesBurned != 200 {
		t.Errorf("TotalCaloriesBurned = %d, want 200", sum.TotalCaloriesBurned)
	}
	if sum.Streak.Current != 2 {
		t.Errorf("Streak.Current = %d, want 2", sum.Streak.Current)
	}
}

// TestSummaryAfterRemove verifies totals are derived from stored sessions.
func TestSummaryAfterRemove(t *testing.T) {
	r := NewRecorder(NewMemoryStore(), 1, discardLogger())
	r.now = func() time.Time { return now }
	ctx := context.Background()
	for _, s := range []models.WorkoutSession{
		completedOn("a", daysAgo(0), 600, 100),
		completedOn("b", daysAgo(1), 600, 100),
	} {
		if err := r.Record(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Remove(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	sum, err := r.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalWorkoutsCompleted != 1 || sum.TotalCaloriesBurned != 100 {
		t.Errorf("summary = %+v, want 1 workout / 100 cal", sum)
	}
}

// TestCalculateStreak covers runs, same-day duplicates and a broken streak.
func TestCalculateStreak(t *testing.T) {
	tests := []struct {
		name        string
		days        []int
		wantCurrent int
		wantLongest int
	}{
		{"none", nil, 0, 0},
		{"today only", []int{0}, 1, 1},
		{"yesterday only", []int{1}, 1, 1},
		{"three in a row", []int{0, 1, 2}, 3, 3},
		{"same day twice", []int{0, 0, 1}, 2, 2},
		{"gap resets current", []int{0, 1, 3, 4, 5, 6}, 2, 4},
		{"broken", []int{2, 3, 4}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sessions []models.WorkoutSession
			for i, d := range tt.days {
				sessions = append(sessions, completedOn(string(rune('a'+i)), daysAgo(d), 600, 50))
			}
			got := CalculateStreak(sessions, now)
			if got.Current != tt.wantCurrent || got.Longest != tt.wantLongest {
				t.Errorf("streak = %d/%d, want %d/%d", got.Current, got.Longest, tt.wantCurrent, tt.wantLongest)
			}
			if len(tt.days) > 0 && got.LastWorkoutDate == nil {
				t.Error("LastWorkoutDate = nil")
			}
		})
	}
}

// TestStreakIgnoresStopped verifies stopped sessions never extend a streak.
func TestStreakIgnoresStopped(t *testing.T) {
	sessions := []models.WorkoutSession{
		completedOn("a", daysAgo(0), 600, 50),
		stoppedOn("b", daysAgo(1), 600, 50),
		completedOn("c", daysAgo(2), 600, 50),
	}
	got := CalculateStreak(sessions, now)
	if got.Current != 1 || got.Longest != 1 {
		t.Errorf("streak = %d/%d, want 1/1", got.Current, got.Longest)
	}
}

// TestNewManualSession verifies the shape of a manually logged session.
func TestNewManualSession(t *testing.T) {
	done := now.Add(-2 * time.Hour)
	s := NewManualSession(ManualEntry{
		Name:            "Park run",
		Description:     "easy pace",
		DurationMinutes: 30,
		Calories:        250,
		CompletedAt:     done,
	}, now)

	if s.Status != models.StatusCompleted || s.PercentComplete != 100 {
		t.Errorf("status = %s/%d, want completed/100", s.Status, s.PercentComplete)
	}
	if s.ActualDurationWorked != 1800 || s.EstimatedCaloriesBurned != 250 {
		t.Errorf("duration/calories = %d/%d, want 1800/250", s.ActualDurationWorked, s.EstimatedCaloriesBurned)
	}
	if !s.Workout.IsManual || len(s.Workout.Circuits) != 0 || s.TotalItems != 0 {
		t.Errorf("workout = %+v, want manual with no circuits", s.Workout)
	}
	if s.WorkoutID != s.Workout.ID {
		t.Errorf("WorkoutID = %s, want %s", s.WorkoutID, s.Workout.ID)
	}
	if s.StartedAt == nil || !s.StartedAt.Equal(done.Add(-30*time.Minute)) {
		t.Errorf("StartedAt = %v", s.StartedAt)
	}
	if s.Feedback == nil || *s.Feedback.Notes != "easy pace" {
		t.Errorf("feedback = %+v, want notes", s.Feedback)
	}
	if s.Workout.Difficulty != models.Intermediate {
		t.Errorf("difficulty = %s, want intermediate default", s.Workout.Difficulty)
	}
}
