package workout

import (
	"fmt"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/google/uuid"
)

// Flatten turns the nested workout into one ordered timeline:
// warm-up, then each circuit's rounds with their rests, then cool-down.
// Rests of zero seconds are left out.
func Flatten(w models.GeneratedWorkout) models.FlattenedWorkout {
	var items []models.TimerItem

	for i, ex := range w.WarmUp.Exercises {
		items = append(items, work(models.KindWarmUpExercise, ex, models.Position{ExerciseIndex: models.Index(i)}))
	}

	for ci, c := range w.Circuits {
		if ci > 0 && w.RestBetweenCircuits > 0 {
			items = append(items, rest(models.KindCircuitRest,
				fmt.Sprintf("Circuit %d Complete", ci),
				w.RestBetweenCircuits,
				models.Position{CircuitIndex: models.Index(ci - 1)}))
		}

		for round := 0; round < c.Rounds; round++ {
			for ei, ex := range c.Exercises {
				items = append(items, work(models.KindCircuitExercise, ex, models.Position{
					CircuitIndex:  models.Index(ci),
					RoundIndex:    models.Index(round),
					ExerciseIndex: models.Index(ei),
				}))

				if ei < len(c.Exercises)-1 && c.RestBetweenExercises > 0 {
					items = append(items, rest(models.KindExerciseRest, "Rest", c.RestBetweenExercises,
						models.Position{CircuitIndex: models.Index(ci), RoundIndex: models.Index(round)}))
				}
			}

			if round < c.Rounds-1 && c.RestBetweenRounds > 0 {
				items = append(items, rest(models.KindRoundRest,
					fmt.Sprintf("Round %d Complete", round+1),
					c.RestBetweenRounds,
					models.Position{CircuitIndex: models.Index(ci), RoundIndex: models.Index(round)}))
			}
		}
	}

	for i, ex := range w.CoolDown.Exercises {
		items = append(items, work(models.KindCoolDownExercise, ex, models.Position{ExerciseIndex: models.Index(i)}))
	}

	total := 0
	for _, it := range items {
		total += it.Duration
	}

	return models.FlattenedWorkout{
		WorkoutID:     w.ID,
		Items:         items,
		TotalDuration: total,
		TotalItems:    len(items),
	}
}

// The kinds passed below are constants of the right family, so the
// constructors cannot fail.
func work(kind models.ItemKind, ex models.Exercise, pos models.Position) models.TimerItem {
	it, _ := models.NewWorkItem(uuid.NewString(), kind, ex, pos)
	return it
}

func rest(kind models.ItemKind, name string, duration int, pos models.Position) models.TimerItem {
	it, _ := models.NewRestItem(uuid.NewString(), kind, name, duration, pos)
	return it
}

// ItemTypeLabel returns the short display label for an item kind.
func ItemTypeLabel(kind models.ItemKind) string {
	switch kind {
	case models.KindWarmUpExercise:
		return "WARM UP"
	case models.KindCircuitExercise:
		return "WORK"
	case models.KindCoolDownExercise:
		return "COOL DOWN"
	case models.KindExerciseRest:
		return "REST"
	case models.KindRoundRest:
		return "ROUND REST"
	case models.KindCircuitRest:
		return "CIRCUIT REST"
	default:
		return ""
	}
}

// IsRest reports whether kind is a rest interval.
func IsRest(kind models.ItemKind) bool { return kind.IsRest() }
