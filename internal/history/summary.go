package history

import (
	"math"
	"sort"
	"time"

	"github.com/claude/circuitrunner/internal/models"
)

// Streak counts consecutive calendar days with a completed workout.
type Streak struct {
	Current         int        `json:"current"`
	Longest         int        `json:"longest"`
	LastWorkoutDate *time.Time `json:"last_workout_date,omitempty"`
}

// Summary holds lifetime totals across all recorded sessions.
type Summary struct {
	TotalSessions          int    `json:"total_sessions"`
	TotalWorkoutsCompleted int    `json:"total_workouts_completed"`
	TotalMinutesWorked     int    `json:"total_minutes_worked"`
	TotalCaloriesBurned    int    `json:"total_calories_burned"`
	Streak                 Streak `json:"streak"`
}

// Summarize computes totals over sessions. Only completed sessions count as
// workouts, but every session adds its minutes and calories.
func Summarize(sessions []models.WorkoutSession, now time.Time) Summary {
	var sum Summary
	for _, s := range sessions {
		if !s.Status.Terminal() {
			continue
		}
		sum.TotalSessions++
		if s.Status == models.StatusCompleted {
			sum.TotalWorkoutsCompleted++
		}
		sum.TotalMinutesWorked += int(math.Round(float64(s.ActualDurationWorked) / 60))
		sum.TotalCaloriesBurned += s.EstimatedCaloriesBurned
	}
	sum.Streak = CalculateStreak(sessions, now)
	return sum
}

// CalculateStreak walks completed sessions newest first, comparing local
// calendar days. The streak is broken (both counts zero) when the newest
// workout is more than a day before today.
func CalculateStreak(sessions []models.WorkoutSession, now time.Time) Streak {
	var days []time.Time
	for _, s := range sessions {
		if s.Status == models.StatusCompleted && s.CompletedAt != nil {
			days = append(days, *s.CompletedAt)
		}
	}
	if len(days) == 0 {
		return Streak{}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	last := days[0]
	sinceLast := dayDiff(now, last)
	if sinceLast > 1 {
		return Streak{LastWorkoutDate: &last}
	}

	current, longest, run := 1, 1, 1
	currentOpen := true
	for i := 1; i < len(days); i++ {
		switch gap := dayDiff(days[i-1], days[i]); {
		case gap == 1:
			run++
			if currentOpen {
				current = run
			}
		case gap > 1:
			longest = max(longest, run)
			run = 1
			currentOpen = false
		}
	}
	longest = max(longest, run)

	return Streak{Current: current, Longest: longest, LastWorkoutDate: &last}
}

// dayDiff returns the number of calendar days from b to a in a's location.
func dayDiff(a, b time.Time) int {
	b = b.In(a.Location())
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(da.Sub(db).Hours() / 24)
}
