// Package timer implements the workout execution state machine.
//
// A Timer is driven from outside: the owner calls CountdownTick once per
// second during the start countdown and Tick once per second while running.
// The Timer has no goroutines and must be used from a single goroutine.
// Calls that do not apply to the current status are ignored and report false.
//
// Item changes happen without a separate transition state: the last three
// seconds of every item are exposed as an ending countdown (InEndingCountdown)
// for the driver to cue.
package timer

import (
	"math"
	"time"

	"github.com/claude/circuitrunner/internal/models"
)

// Status is the timer's current state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusCountdown Status = "countdown"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// CountdownStart is the first value of the 3-2-1 start countdown.
const CountdownStart = 3

// EndingCountdown is how many trailing seconds of an item are cued.
const EndingCountdown = 3

// Timer runs a flattened workout one second at a time.
type Timer struct {
	status         Status
	items          []models.TimerItem
	index          int
	remaining      int
	elapsed        int
	session        *models.WorkoutSession
	countdownValue int
	showCountdown  bool
	justCompleted  bool

	now func() time.Time
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock sets the clock used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// New returns an idle timer with an empty timeline.
func New(opts ...Option) *Timer {
	t := &Timer{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.Reset()
	return t
}

// Initialize loads a timeline and its draft session, replacing any previous
// state. items must be the flattened form of session.Workout.
func (t *Timer) Initialize(items []models.TimerItem, session models.WorkoutSession) {
	t.items = append([]models.TimerItem(nil), items...)
	t.session = &session
	t.status = StatusIdle
	t.index = 0
	t.remaining = 0
	if len(t.items) > 0 {
		t.remaining = t.items[0].Duration
	}
	t.elapsed = 0
	t.countdownValue = CountdownStart
	t.showCountdown = false
	t.justCompleted = false
}

// StartCountdown moves idle to countdown. It is ignored when no timeline or
// session is loaded, and after the session has ended; a new run needs
// Initialize.
func (t *Timer) StartCountdown() bool {
	if t.status != StatusIdle || len(t.items) == 0 || t.session == nil {
		return false
	}
	if t.session.Status.Terminal() {
		return false
	}
	t.status = StatusCountdown
	t.countdownValue = CountdownStart
	t.showCountdown = true
	return true
}

// CountdownTick advances the start countdown by one second. When the value
// reaches zero the timer starts running.
func (t *Timer) CountdownTick() bool {
	if t.status != StatusCountdown {
		return false
	}
	if t.countdownValue > 0 {
		t.countdownValue--
	}
	if t.countdownValue == 0 {
		t.status = StatusRunning
		t.showCountdown = false
	}
	return true
}

// Tick consumes one second of the current item. The last second of an item
// sets the just-completed flag and advances to the next item, or completes
// the workout.
func (t *Timer) Tick() bool {
	if t.status != StatusRunning {
		return false
	}
	t.elapsed++
	if t.remaining > 1 {
		t.remaining--
		return true
	}
	t.justCompleted = true
	t.advance()
	return true
}

// Pause freezes a running timer.
func (t *Timer) Pause() bool {
	if t.status != StatusRunning {
		return false
	}
	t.status = StatusPaused
	return true
}

// Resume restarts a paused timer.
func (t *Timer) Resume() bool {
	if t.status != StatusPaused {
		return false
	}
	t.status = StatusRunning
	return true
}

// SkipToNext abandons the rest of the current item. The seconds already spent
// on it count toward the elapsed total. Skipping does not set the
// just-completed flag, and a paused timer stays paused.
func (t *Timer) SkipToNext() bool {
	if t.status != StatusRunning && t.status != StatusPaused {
		return false
	}
	t.elapsed += t.items[t.index].Duration - t.remaining
	t.advance()
	return true
}

// GoToPrevious restarts the previous item from its full duration. The
// elapsed total is left unchanged.
func (t *Timer) GoToPrevious() bool {
	if t.status != StatusRunning && t.status != StatusPaused {
		return false
	}
	if t.index == 0 {
		return false
	}
	t.index--
	t.remaining = t.items[t.index].Duration
	return true
}

// Stop abandons the workout and returns the stopped_early session. Progress
// and calories are prorated by the number of items finished.
func (t *Timer) Stop() (models.WorkoutSession, bool) {
	switch t.status {
	case StatusCountdown, StatusRunning, StatusPaused:
	default:
		return models.WorkoutSession{}, false
	}
	if t.session == nil {
		return models.WorkoutSession{}, false
	}

	now := t.now()
	n := len(t.items)
	s := t.session
	s.Status = models.StatusStoppedEarly
	s.StoppedAt = &now
	s.CompletedItems = t.index
	s.TotalItems = n
	s.ActualDurationWorked = t.elapsed
	s.PercentComplete = prorate(100, t.index, n)
	s.EstimatedCaloriesBurned = prorate(s.Workout.EstimatedCalories, t.index, n)

	cur := t.items[t.index]
	s.StoppedAtItem = &models.StoppedAt{
		CircuitIndex:  cur.Position.CircuitIndex,
		RoundIndex:    cur.Position.RoundIndex,
		ExerciseIndex: cur.Position.ExerciseIndex,
		ItemName:      cur.Name,
	}

	t.status = StatusIdle
	t.showCountdown = false
	return *s, true
}

// Reset returns the timer to a pristine idle state with no timeline or
// session.
func (t *Timer) Reset() {
	t.status = StatusIdle
	t.items = nil
	t.index = 0
	t.remaining = 0
	t.elapsed = 0
	t.session = nil
	t.countdownValue = CountdownStart
	t.showCountdown = false
	t.justCompleted = false
}

// ClearJustCompleted consumes the one-shot item completion flag.
func (t *Timer) ClearJustCompleted() { t.justCompleted = false }

func (t *Timer) advance() {
	next := t.index + 1
	if next >= len(t.items) {
		t.complete()
		return
	}
	t.index = next
	t.remaining = t.items[next].Duration
}

func (t *Timer) complete() {
	t.status = StatusCompleted
	t.remaining = 0
	if t.session == nil {
		return
	}
	now := t.now()
	s := t.session
	s.Status = models.StatusCompleted
	s.CompletedAt = &now
	s.CompletedItems = len(t.items)
	s.TotalItems = len(t.items)
	s.PercentComplete = 100
	s.ActualDurationWorked = t.elapsed
	s.EstimatedCaloriesBurned = s.Workout.EstimatedCalories
}

func prorate(total, done, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(total) * float64(done) / float64(n)))
}

// Status returns the current state.
func (t *Timer) Status() Status { return t.status }

// CurrentIndex returns the index of the active item.
func (t *Timer) CurrentIndex() int { return t.index }

// TimeRemaining returns the seconds left in the active item.
func (t *Timer) TimeRemaining() int { return t.remaining }

// TotalElapsed returns the seconds consumed across the whole timeline.
func (t *Timer) TotalElapsed() int { return t.elapsed }

// CountdownValue returns the current start countdown number.
func (t *Timer) CountdownValue() int { return t.countdownValue }

// ShowCountdown reports whether the start countdown is on screen.
func (t *Timer) ShowCountdown() bool { return t.showCountdown }

// JustCompletedItem reports whether an item finished naturally since the flag
// was last cleared.
func (t *Timer) JustCompletedItem() bool { return t.justCompleted }

// Items returns the loaded timeline.
func (t *Timer) Items() []models.TimerItem { return t.items }

// CurrentItem returns the active item.
func (t *Timer) CurrentItem() (models.TimerItem, bool) {
	if t.index < 0 || t.index >= len(t.items) {
		return models.TimerItem{}, false
	}
	return t.items[t.index], true
}

// Session returns a copy of the session draft or terminal record.
func (t *Timer) Session() (models.WorkoutSession, bool) {
	if t.session == nil {
		return models.WorkoutSession{}, false
	}
	return *t.session, true
}

// InEndingCountdown reports whether a running item is in its last three
// seconds.
func (t *Timer) InEndingCountdown() bool {
	return t.status == StatusRunning && t.remaining >= 1 && t.remaining <= EndingCountdown
}
