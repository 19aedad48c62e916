package timer

import "github.com/claude/circuitrunner/internal/models"

// Side is the active side of a unilateral exercise.
type Side string

const (
	SideLeft  Side = "LEFT"
	SideRight Side = "RIGHT"
)

// Midpoint is the remaining-time boundary between the two halves of an item.
func Midpoint(duration int) int { return duration / 2 }

// SideFor returns the active side for item with remaining seconds left. The
// second result is false unless item is an exercise with SwitchSides set.
func SideFor(item models.TimerItem, remaining int) (Side, bool) {
	ex, ok := item.Exercise()
	if !ok || !ex.SwitchSides {
		return "", false
	}
	if remaining > Midpoint(item.Duration) {
		return SideLeft, true
	}
	return SideRight, true
}

// Side returns the active side of the current item.
func (t *Timer) Side() (Side, bool) {
	item, ok := t.CurrentItem()
	if !ok {
		return "", false
	}
	return SideFor(item, t.remaining)
}

// SideSwitched reports whether the remaining time moved from above the
// midpoint (prevRemaining) to exactly the midpoint on the current item.
func (t *Timer) SideSwitched(prevRemaining int) bool {
	if t.status != StatusRunning {
		return false
	}
	item, ok := t.CurrentItem()
	if !ok {
		return false
	}
	if _, ok := SideFor(item, t.remaining); !ok {
		return false
	}
	mid := Midpoint(item.Duration)
	return prevRemaining > mid && t.remaining == mid && t.remaining > 0
}

// AtHalfway reports whether a running work item has just reached its
// midpoint. Items whose midpoint falls inside the ending countdown never
// report halfway.
func (t *Timer) AtHalfway() bool {
	if t.status != StatusRunning {
		return false
	}
	item, ok := t.CurrentItem()
	if !ok || item.IsRest() {
		return false
	}
	mid := Midpoint(item.Duration)
	return mid > EndingCountdown && t.remaining == mid
}

// State is a read-only snapshot of the timer for rendering.
type State struct {
	Status            Status            `json:"status"`
	CurrentIndex      int               `json:"current_item_index"`
	TotalItems        int               `json:"total_items"`
	TimeRemaining     int               `json:"time_remaining"`
	TotalElapsed      int               `json:"total_elapsed"`
	CountdownValue    int               `json:"countdown_value"`
	ShowCountdown     bool              `json:"show_countdown"`
	JustCompletedItem bool              `json:"just_completed_item"`
	EndingCountdown   bool              `json:"ending_countdown"`
	Item              *models.TimerItem `json:"item,omitempty"`
	Next              *models.TimerItem `json:"next,omitempty"`
	Side              Side              `json:"side,omitempty"`
}

// Snapshot captures the current state.
func (t *Timer) Snapshot() State {
	st := State{
		Status:            t.status,
		CurrentIndex:      t.index,
		TotalItems:        len(t.items),
		TimeRemaining:     t.remaining,
		TotalElapsed:      t.elapsed,
		CountdownValue:    t.countdownValue,
		ShowCountdown:     t.showCountdown,
		JustCompletedItem: t.justCompleted,
		EndingCountdown:   t.InEndingCountdown(),
	}
	if item, ok := t.CurrentItem(); ok {
		st.Item = &item
	}
	if t.index+1 < len(t.items) {
		next := t.items[t.index+1]
		st.Next = &next
	}
	if side, ok := t.Side(); ok {
		st.Side = side
	}
	return st
}
