package models

import (
	"encoding/json"
	"fmt"
)

// ItemKind tags a TimerItem.
type ItemKind string

const (
	KindWarmUpExercise   ItemKind = "warmup_exercise"
	KindCircuitExercise  ItemKind = "circuit_exercise"
	KindCoolDownExercise ItemKind = "cooldown_exercise"
	KindExerciseRest     ItemKind = "exercise_rest"
	KindRoundRest        ItemKind = "round_rest"
	KindCircuitRest      ItemKind = "circuit_rest"
)

// IsWork reports whether k is one of the three exercise kinds.
func (k ItemKind) IsWork() bool {
	switch k {
	case KindWarmUpExercise, KindCircuitExercise, KindCoolDownExercise:
		return true
	}
	return false
}

// IsRest reports whether k is one of the three rest kinds.
func (k ItemKind) IsRest() bool {
	switch k {
	case KindExerciseRest, KindRoundRest, KindCircuitRest:
		return true
	}
	return false
}

// Position locates a TimerItem in the nested workout. Unset coordinates are nil.
type Position struct {
	CircuitIndex  *int `json:"circuitIndex,omitempty"`
	RoundIndex    *int `json:"roundIndex,omitempty"`
	ExerciseIndex *int `json:"exerciseIndex,omitempty"`
}

// Index returns a pointer to i for use in a Position.
func Index(i int) *int { return &i }

// TimerItem is one timed step in a flattened workout. Work items carry their
// source exercise; rest items never do. Build items with NewWorkItem or
// NewRestItem.
type TimerItem struct {
	ID       string
	Kind     ItemKind
	Name     string
	Duration int
	Position Position

	exercise *Exercise
}

// NewWorkItem builds an exercise item. The name and duration come from ex.
func NewWorkItem(id string, kind ItemKind, ex Exercise, pos Position) (TimerItem, error) {
	if !kind.IsWork() {
		return TimerItem{}, fmt.Errorf("kind %q is not an exercise kind", kind)
	}
	return TimerItem{
		ID:       id,
		Kind:     kind,
		Name:     ex.Name,
		Duration: ex.Duration,
		Position: pos,
		exercise: &ex,
	}, nil
}

// NewRestItem builds a rest item.
func NewRestItem(id string, kind ItemKind, name string, duration int, pos Position) (TimerItem, error) {
	if !kind.IsRest() {
		return TimerItem{}, fmt.Errorf("kind %q is not a rest kind", kind)
	}
	return TimerItem{
		ID:       id,
		Kind:     kind,
		Name:     name,
		Duration: duration,
		Position: pos,
	}, nil
}

// Exercise returns the source exercise of a work item.
func (it TimerItem) Exercise() (Exercise, bool) {
	if it.exercise == nil {
		return Exercise{}, false
	}
	return *it.exercise, true
}

// IsRest reports whether the item is a rest interval.
func (it TimerItem) IsRest() bool { return it.Kind.IsRest() }

type timerItemJSON struct {
	ID       string    `json:"id"`
	Type     ItemKind  `json:"type"`
	Name     string    `json:"name"`
	Duration int       `json:"duration"`
	Exercise *Exercise `json:"exercise,omitempty"`
	Position
}

func (it TimerItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(timerItemJSON{
		ID:       it.ID,
		Type:     it.Kind,
		Name:     it.Name,
		Duration: it.Duration,
		Exercise: it.exercise,
		Position: it.Position,
	})
}

func (it *TimerItem) UnmarshalJSON(data []byte) error {
	var raw timerItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var (
		item TimerItem
		err  error
	)
	switch {
	case raw.Type.IsWork():
		if raw.Exercise == nil {
			return fmt.Errorf("timer item %s: %s without exercise", raw.ID, raw.Type)
		}
		item, err = NewWorkItem(raw.ID, raw.Type, *raw.Exercise, raw.Position)
		item.Name = raw.Name
		item.Duration = raw.Duration
	case raw.Type.IsRest():
		if raw.Exercise != nil {
			return fmt.Errorf("timer item %s: %s carries an exercise", raw.ID, raw.Type)
		}
		item, err = NewRestItem(raw.ID, raw.Type, raw.Name, raw.Duration, raw.Position)
	default:
		return fmt.Errorf("timer item %s: unknown type %q", raw.ID, raw.Type)
	}
	if err != nil {
		return err
	}
	*it = item
	return nil
}

// FlattenedWorkout is the ordered timeline of a workout.
type FlattenedWorkout struct {
	WorkoutID     string      `json:"workoutId"`
	Items         []TimerItem `json:"items"`
	TotalDuration int         `json:"totalDuration"`
	TotalItems    int         `json:"totalItems"`
}
