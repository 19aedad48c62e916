package workout

import (
	"errors"
	"fmt"

	"github.com/claude/circuitrunner/internal/models"
)

// ErrEmptyTimeline is returned when a workout flattens to no items.
var ErrEmptyTimeline = errors.New("workout has no timed items")

// ComputeDurations fills in the section, circuit and workout totals from the
// exercise durations and rests.
func ComputeDurations(w *models.GeneratedWorkout) {
	w.WarmUp.TotalDuration = sectionDuration(w.WarmUp)
	w.CoolDown.TotalDuration = sectionDuration(w.CoolDown)

	total := w.WarmUp.TotalDuration + w.CoolDown.TotalDuration
	for i := range w.Circuits {
		w.Circuits[i].TotalDuration = w.Circuits[i].ComputeTotalDuration()
		total += w.Circuits[i].TotalDuration
	}
	if n := len(w.Circuits); n > 1 && w.RestBetweenCircuits > 0 {
		total += w.RestBetweenCircuits * (n - 1)
	}
	w.ActualDuration = total
}

func sectionDuration(s models.Section) int {
	total := 0
	for _, ex := range s.Exercises {
		total += ex.Duration
	}
	return total
}

// Validate reports structural problems that would make the timeline
// meaningless. It does not correct anything.
func Validate(w models.GeneratedWorkout) error {
	var errs []error

	if w.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if !w.Difficulty.Valid() {
		errs = append(errs, fmt.Errorf("unknown difficulty %q", w.Difficulty))
	}
	if w.RestBetweenCircuits < 0 {
		errs = append(errs, fmt.Errorf("restBetweenCircuits %d is negative", w.RestBetweenCircuits))
	}

	checkExercises := func(where string, exs []models.Exercise) {
		for i, ex := range exs {
			if ex.Duration <= 0 {
				errs = append(errs, fmt.Errorf("%s exercise %d (%s): duration %d must be positive", where, i, ex.Name, ex.Duration))
			}
		}
	}
	checkExercises("warm-up", w.WarmUp.Exercises)
	checkExercises("cool-down", w.CoolDown.Exercises)

	for i, c := range w.Circuits {
		where := fmt.Sprintf("circuit %d (%s)", i, c.Name)
		if c.Rounds < 1 {
			errs = append(errs, fmt.Errorf("%s: rounds %d must be at least 1", where, c.Rounds))
		}
		if len(c.Exercises) == 0 {
			errs = append(errs, fmt.Errorf("%s: no exercises", where))
		}
		if c.RestBetweenExercises < 0 || c.RestBetweenRounds < 0 {
			errs = append(errs, fmt.Errorf("%s: negative rest", where))
		}
		checkExercises(where, c.Exercises)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	flat := Flatten(w)
	if flat.TotalItems == 0 && !w.IsManual {
		return ErrEmptyTimeline
	}
	if !w.IsManual && w.ActualDuration != flat.TotalDuration {
		return fmt.Errorf("actualDuration %d does not match timeline total %d", w.ActualDuration, flat.TotalDuration)
	}
	return nil
}
