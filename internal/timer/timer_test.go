package timer

import (
	"testing"
	"time"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/workout"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func powerWorkout() models.GeneratedWorkout {
	w := models.GeneratedWorkout{
		ID:         "w-power",
		Name:       "Power",
		Difficulty: models.Intermediate,
		Circuits: []models.Circuit{{
			Name: "Power", Rounds: 2, RestBetweenExercises: 10, RestBetweenRounds: 45,
			Exercises: []models.Exercise{
				{ID: "ex1", Name: "Squat Jump", Duration: 30},
				{ID: "ex2", Name: "Push-up", Duration: 30},
			},
		}},
		EstimatedCalories: 70,
	}
	workout.ComputeDurations(&w)
	return w
}

// newTimer returns a timer loaded with w and already counted down into
// running.
func newTimer(t *testing.T, w models.GeneratedWorkout) (*Timer, models.FlattenedWorkout) {
	t.Helper()
	flat := workout.Flatten(w)
	tm := New(WithClock(func() time.Time { return fixedNow }))
	tm.Initialize(flat.Items, models.NewSession("s1", w, flat, fixedNow))
	if !tm.StartCountdown() {
		t.Fatal("StartCountdown() = false")
	}
	for tm.Status() == StatusCountdown {
		tm.CountdownTick()
	}
	return tm, flat
}

// TestInitialState verifies the idle defaults after Initialize and New.
func TestInitialState(t *testing.T) {
	tm := New()
	if tm.Status() != StatusIdle || tm.TimeRemaining() != 0 || len(tm.Items()) != 0 {
		t.Errorf("New() = %s/%d/%d items, want idle/0/0", tm.Status(), tm.TimeRemaining(), len(tm.Items()))
	}
	if _, ok := tm.Session(); ok {
		t.Error("New() has a session")
	}

	w := powerWorkout()
	flat := workout.Flatten(w)
	tm.Initialize(flat.Items, models.NewSession("s1", w, flat, fixedNow))
	if tm.Status() != StatusIdle {
		t.Errorf("status = %s, want idle", tm.Status())
	}
	if tm.CurrentIndex() != 0 || tm.TimeRemaining() != 30 || tm.TotalElapsed() != 0 {
		t.Errorf("state = %d/%d/%d, want 0/30/0", tm.CurrentIndex(), tm.TimeRemaining(), tm.TotalElapsed())
	}
	s, _ := tm.Session()
	if s.Status != models.StatusInProgress || s.TotalItems != 7 {
		t.Errorf("session = %s/%d items, want in_progress/7", s.Status, s.TotalItems)
	}
}

// TestCountdown verifies the 3-2-1 start sequence ends in running with the
// countdown flag hidden.
func TestCountdown(t *testing.T) {
	w := powerWorkout()
	flat := workout.Flatten(w)
	tm := New()
	tm.Initialize(flat.Items, models.NewSession("s1", w, flat, fixedNow))

	if tm.Tick() {
		t.Error("Tick() in idle = true, want no-op")
	}
	if !tm.StartCountdown() {
		t.Fatal("StartCountdown() = false")
	}
	if tm.CountdownValue() != 3 || !tm.ShowCountdown() {
		t.Fatalf("countdown = %d/%v, want 3/true", tm.CountdownValue(), tm.ShowCountdown())
	}
	if tm.StartCountdown() {
		t.Error("second StartCountdown() = true, want no-op")
	}

	for _, want := range []int{2, 1} {
		tm.CountdownTick()
		if tm.CountdownValue() != want || tm.Status() != StatusCountdown {
			t.Fatalf("countdown = %d/%s, want %d/countdown", tm.CountdownValue(), tm.Status(), want)
		}
	}
	tm.CountdownTick()
	if tm.Status() != StatusRunning || tm.ShowCountdown() {
		t.Errorf("after countdown = %s/%v, want running/false", tm.Status(), tm.ShowCountdown())
	}
	if tm.TimeRemaining() != 30 || tm.TotalElapsed() != 0 {
		t.Errorf("after countdown remaining/elapsed = %d/%d, want 30/0", tm.TimeRemaining(), tm.TotalElapsed())
	}
	if tm.CountdownTick() {
		t.Error("CountdownTick() while running = true, want no-op")
	}
}

// TestStartCountdownEmptyTimeline verifies an empty timeline cannot start.
func TestStartCountdownEmptyTimeline(t *testing.T) {
	tm := New()
	tm.Initialize(nil, models.WorkoutSession{ID: "s"})
	if tm.StartCountdown() {
		t.Error("StartCountdown() on empty timeline = true, want false")
	}
	if tm.Status() != StatusIdle {
		t.Errorf("status = %s, want idle", tm.Status())
	}
}

// TestTickMonotonic verifies that each tick takes exactly one second off the
// item and adds one to the total, and that the boundary advances by one item.
func TestTickMonotonic(t *testing.T) {
	tm, flat := newTimer(t, powerWorkout())

	for i := 1; i < 30; i++ {
		tm.Tick()
		if tm.TimeRemaining() != 30-i || tm.TotalElapsed() != i || tm.CurrentIndex() != 0 {
			t.Fatalf("tick %d: remaining/elapsed/index = %d/%d/%d", i, tm.TimeRemaining(), tm.TotalElapsed(), tm.CurrentIndex())
		}
	}
	if tm.JustCompletedItem() {
		t.Error("JustCompletedItem() before boundary")
	}

	tm.Tick()
	if tm.CurrentIndex() != 1 || tm.TimeRemaining() != flat.Items[1].Duration || tm.TotalElapsed() != 30 {
		t.Errorf("after boundary index/remaining/elapsed = %d/%d/%d, want 1/10/30",
			tm.CurrentIndex(), tm.TimeRemaining(), tm.TotalElapsed())
	}
	if !tm.JustCompletedItem() {
		t.Error("JustCompletedItem() = false after natural completion")
	}
	tm.ClearJustCompleted()
	if tm.JustCompletedItem() {
		t.Error("JustCompletedItem() still set after clear")
	}
}

// TestRunToCompletion drives the seven item example to the end and checks
// that it takes exactly the total duration in ticks.
func TestRunToCompletion(t *testing.T) {
	w := powerWorkout()
	tm, flat := newTimer(t, w)

	ticks := 0
	for tm.Status() == StatusRunning {
		tm.Tick()
		ticks++
		if ticks > 1000 {
			t.Fatal("timer never completed")
		}
	}

	if ticks != 185 || flat.TotalDuration != 185 {
		t.Errorf("ticks = %d (total %d), want 185", ticks, flat.TotalDuration)
	}
	if tm.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", tm.Status())
	}
	s, _ := tm.Session()
	if s.Status != models.StatusCompleted {
		t.Errorf("session status = %s, want completed", s.Status)
	}
	if s.CompletedItems != 7 || s.PercentComplete != 100 {
		t.Errorf("completed/percent = %d/%d, want 7/100", s.CompletedItems, s.PercentComplete)
	}
	if s.ActualDurationWorked != 185 {
		t.Errorf("ActualDurationWorked = %d, want 185", s.ActualDurationWorked)
	}
	if s.EstimatedCaloriesBurned != 70 {
		t.Errorf("calories = %d, want 70", s.EstimatedCaloriesBurned)
	}
	if s.CompletedAt == nil || !s.CompletedAt.Equal(fixedNow) {
		t.Errorf("CompletedAt = %v, want %v", s.CompletedAt, fixedNow)
	}
	if tm.Tick() {
		t.Error("Tick() after completion = true, want no-op")
	}
}

// TestPauseResume verifies pause freezes state and only valid transitions
// are accepted.
func TestPauseResume(t *testing.T) {
	tm, _ := newTimer(t, powerWorkout())
	tm.Tick()

	if tm.Resume() {
		t.Error("Resume() while running = true")
	}
	if !tm.Pause() {
		t.Fatal("Pause() = false")
	}
	if tm.Pause() {
		t.Error("second Pause() = true")
	}
	if tm.Tick() {
		t.Error("Tick() while paused = true")
	}
	if tm.TimeRemaining() != 29 || tm.TotalElapsed() != 1 {
		t.Errorf("paused remaining/elapsed = %d/%d, want 29/1", tm.TimeRemaining(), tm.TotalElapsed())
	}
	if !tm.Resume() || tm.Status() != StatusRunning {
		t.Errorf("Resume() status = %s, want running", tm.Status())
	}
}

// TestSkipToNext verifies skip adds duration minus remaining to the elapsed
// total on top of the seconds already ticked, leaves the completion flag
// alone and keeps a paused timer paused.
func TestSkipToNext(t *testing.T) {
	tm, _ := newTimer(t, powerWorkout())
	for range 12 {
		tm.Tick()
	}

	if !tm.SkipToNext() {
		t.Fatal("SkipToNext() = false")
	}
	if tm.CurrentIndex() != 1 || tm.TimeRemaining() != 10 || tm.TotalElapsed() != 24 {
		t.Errorf("after skip index/remaining/elapsed = %d/%d/%d, want 1/10/24",
			tm.CurrentIndex(), tm.TimeRemaining(), tm.TotalElapsed())
	}
	if tm.JustCompletedItem() {
		t.Error("skip set JustCompletedItem")
	}

	tm.Pause()
	if !tm.SkipToNext() {
		t.Fatal("SkipToNext() while paused = false")
	}
	if tm.Status() != StatusPaused || tm.CurrentIndex() != 2 {
		t.Errorf("status/index = %s/%d, want paused/2", tm.Status(), tm.CurrentIndex())
	}
	// Skipping a rest that was never started credits nothing.
	if tm.TotalElapsed() != 24 {
		t.Errorf("elapsed = %d, want 24", tm.TotalElapsed())
	}
}

// TestSkipLastItemCompletes verifies skipping the final item completes the
// workout.
func TestSkipLastItemCompletes(t *testing.T) {
	tm, _ := newTimer(t, powerWorkout())
	for range 6 {
		tm.SkipToNext()
	}
	if tm.CurrentIndex() != 6 {
		t.Fatalf("index = %d, want 6", tm.CurrentIndex())
	}
	for range 5 {
		tm.Tick()
	}
	tm.SkipToNext()
	if tm.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", tm.Status())
	}
	s, _ := tm.Session()
	if s.ActualDurationWorked != 10 || s.PercentComplete != 100 || s.CompletedItems != 7 {
		t.Errorf("session = %d s / %d%% / %d items, want 10/100/7", s.ActualDurationWorked, s.PercentComplete, s.CompletedItems)
	}
	if tm.SkipToNext() {
		t.Error("SkipToNext() after completion = true")
	}
}

// TestGoToPrevious verifies going back restarts the previous item and leaves
// the elapsed total alone.
func TestGoToPrevious(t *testing.T) {
	tm, _ := newTimer(t, powerWorkout())
	if tm.GoToPrevious() {
		t.Error("GoToPrevious() at index 0 = true")
	}

	for range 35 {
		tm.Tick()
	}
	// 30s item done, 5s into the 10s rest.
	if tm.CurrentIndex() != 1 || tm.TimeRemaining() != 5 {
		t.Fatalf("index/remaining = %d/%d, want 1/5", tm.CurrentIndex(), tm.TimeRemaining())
	}
	if !tm.GoToPrevious() {
		t.Fatal("GoToPrevious() = false")
	}
	if tm.CurrentIndex() != 0 || tm.TimeRemaining() != 30 || tm.TotalElapsed() != 35 {
		t.Errorf("index/remaining/elapsed = %d/%d/%d, want 0/30/35",
			tm.CurrentIndex(), tm.TimeRemaining(), tm.TotalElapsed())
	}
}

// TestStopProration verifies the stopped_early record after finishing k of
// N items.
func TestStopProration(t *testing.T) {
	cases := []struct {
		name        string
		ticks       int
		wantItems   int
		wantPercent int
		wantCals    int
	}{
		{"first item", 10, 0, 0, 0},
		{"after one item", 30, 1, 14, 10},  // 100*1/7 = 14.28, 70*1/7 = 10
		{"after two items", 40, 2, 29, 20}, // 28.57, 20
		{"mid round rest", 100, 3, 43, 30}, // 42.86, 30
		{"last item", 160, 6, 86, 60},      // 85.71, 60
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tm, _ := newTimer(t, powerWorkout())
			for range tc.ticks {
				tm.Tick()
			}
			s, ok := tm.Stop()
			if !ok {
				t.Fatal("Stop() = false")
			}
			if tm.Status() != StatusIdle {
				t.Errorf("status = %s, want idle", tm.Status())
			}
			if s.Status != models.StatusStoppedEarly {
				t.Errorf("session status = %s, want stopped_early", s.Status)
			}
			if s.CompletedItems != tc.wantItems || s.PercentComplete != tc.wantPercent || s.EstimatedCaloriesBurned != tc.wantCals {
				t.Errorf("items/percent/cals = %d/%d/%d, want %d/%d/%d",
					s.CompletedItems, s.PercentComplete, s.EstimatedCaloriesBurned, tc.wantItems, tc.wantPercent, tc.wantCals)
			}
			if s.ActualDurationWorked != tc.ticks {
				t.Errorf("ActualDurationWorked = %d, want %d", s.ActualDurationWorked, tc.ticks)
			}
			if s.StoppedAt == nil || !s.StoppedAt.Equal(fixedNow) {
				t.Errorf("StoppedAt = %v, want %v", s.StoppedAt, fixedNow)
			}
			if s.StoppedAtItem == nil {
				t.Fatal("StoppedAtItem = nil")
			}
		})
	}
}

// TestStopAtItemCoordinates verifies the stopped-at item carries the current
// item's name and coordinates.
func TestStopAtItemCoordinates(t *testing.T) {
	tm, _ := newTimer(t, powerWorkout())
	for range 80 { // inside the round rest
		tm.Tick()
	}
	s, _ := tm.Stop()
	at := s.StoppedAtItem
	if at.ItemName != "Round 1 Complete" {
		t.Errorf("ItemName = %q, want Round 1 Complete", at.ItemName)
	}
	if at.CircuitIndex == nil || *at.CircuitIndex != 0 || at.RoundIndex == nil || *at.RoundIndex != 0 {
		t.Errorf("coordinates = %v/%v, want 0/0", at.CircuitIndex, at.RoundIndex)
	}
	if at.ExerciseIndex != nil {
		t.Errorf("ExerciseIndex = %d, want nil for a rest", *at.ExerciseIndex)
	}
}

// TestStopInvalidStates verifies stop is ignored when nothing is running.
func TestStopInvalidStates(t *testing.T) {
	tm := New()
	if _, ok := tm.Stop(); ok {
		t.Error("Stop() on pristine timer = true")
	}

	tm, _ = newTimer(t, powerWorkout())
	for tm.Status() == StatusRunning {
		tm.Tick()
	}
	if _, ok := tm.Stop(); ok {
		t.Error("Stop() after completion = true")
	}
	s, _ := tm.Session()
	if s.Status != models.StatusCompleted {
		t.Errorf("session status = %s, want completed", s.Status)
	}
}

// TestStopDuringCountdown verifies a stop before the first tick records zero
// progress.
func TestStopDuringCountdown(t *testing.T) {
	w := powerWorkout()
	flat := workout.Flatten(w)
	tm := New()
	tm.Initialize(flat.Items, models.NewSession("s1", w, flat, fixedNow))
	tm.StartCountdown()

	s, ok := tm.Stop()
	if !ok {
		t.Fatal("Stop() during countdown = false")
	}
	if s.PercentComplete != 0 || s.CompletedItems != 0 || s.StoppedAtItem.ItemName != "Squat Jump" {
		t.Errorf("session = %d%%/%d/%q, want 0/0/Squat Jump", s.PercentComplete, s.CompletedItems, s.StoppedAtItem.ItemName)
	}
	if tm.ShowCountdown() {
		t.Error("countdown flag still shown after stop")
	}
}

// TestRestartAfterStopRefused verifies a stopped run cannot be counted down
// again and its session keeps the stopped_early record.
func TestRestartAfterStopRefused(t *testing.T) {
	tm, _ := newTimer(t, powerWorkout())
	for range 35 {
		tm.Tick()
	}
	stopped, ok := tm.Stop()
	if !ok {
		t.Fatal("Stop() = false")
	}

	if tm.StartCountdown() {
		t.Fatal("StartCountdown() after stop = true, want false")
	}
	if tm.Status() != StatusIdle {
		t.Errorf("status = %s, want idle", tm.Status())
	}
	for range 200 {
		tm.Tick()
	}
	s, _ := tm.Session()
	if s.Status != models.StatusStoppedEarly || s.CompletedAt != nil {
		t.Errorf("session = %s completedAt=%v, want stopped_early without completedAt", s.Status, s.CompletedAt)
	}
	if s.ActualDurationWorked != stopped.ActualDurationWorked {
		t.Errorf("ActualDurationWorked = %d, want %d", s.ActualDurationWorked, stopped.ActualDurationWorked)
	}

	// A fresh Initialize makes the timer usable again.
	flat := workout.Flatten(powerWorkout())
	tm.Initialize(flat.Items, models.NewSession("s2", powerWorkout(), flat, fixedNow))
	if !tm.StartCountdown() {
		t.Error("StartCountdown() after Initialize = false")
	}
}

// TestReset verifies reset discards the timeline and session.
func TestReset(t *testing.T) {
	tm, _ := newTimer(t, powerWorkout())
	tm.Tick()
	tm.Reset()
	if tm.Status() != StatusIdle || tm.TimeRemaining() != 0 || tm.TotalElapsed() != 0 || len(tm.Items()) != 0 {
		t.Errorf("after reset = %s/%d/%d/%d", tm.Status(), tm.TimeRemaining(), tm.TotalElapsed(), len(tm.Items()))
	}
	if _, ok := tm.Session(); ok {
		t.Error("session still present after reset")
	}
	if tm.CountdownValue() != CountdownStart {
		t.Errorf("countdown value = %d, want %d", tm.CountdownValue(), CountdownStart)
	}
}

// TestInitializeReplacesState verifies that a second Initialize starts over.
func TestInitializeReplacesState(t *testing.T) {
	tm, flat := newTimer(t, powerWorkout())
	for range 50 {
		tm.Tick()
	}
	tm.Initialize(flat.Items, models.WorkoutSession{ID: "s2"})
	if tm.Status() != StatusIdle || tm.CurrentIndex() != 0 || tm.TotalElapsed() != 0 || tm.TimeRemaining() != 30 {
		t.Errorf("after re-init = %s/%d/%d/%d", tm.Status(), tm.CurrentIndex(), tm.TotalElapsed(), tm.TimeRemaining())
	}
	s, _ := tm.Session()
	if s.ID != "s2" {
		t.Errorf("session id = %q, want s2", s.ID)
	}
}

// TestEndingCountdown verifies the last three seconds of an item are flagged.
func TestEndingCountdown(t *testing.T) {
	tm, _ := newTimer(t, powerWorkout())
	var flagged []int
	for range 30 {
		if tm.InEndingCountdown() && tm.CurrentIndex() == 0 {
			flagged = append(flagged, tm.TimeRemaining())
		}
		tm.Tick()
	}
	if len(flagged) != 3 || flagged[0] != 3 || flagged[2] != 1 {
		t.Errorf("ending countdown values = %v, want [3 2 1]", flagged)
	}
	tm.Pause()
	if tm.InEndingCountdown() {
		t.Error("InEndingCountdown() while paused")
	}
}
