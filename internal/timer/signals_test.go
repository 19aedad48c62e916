package timer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/workout"
)

func sideWorkout() models.GeneratedWorkout {
	w := models.GeneratedWorkout{
		ID:         "w-side",
		Difficulty: models.Beginner,
		Circuits: []models.Circuit{{
			Name: "Unilateral", Rounds: 1, RestBetweenExercises: 10,
			Exercises: []models.Exercise{
				{ID: "lunge", Name: "Side Lunge", Duration: 40, SwitchSides: true},
				{ID: "plank", Name: "Plank", Duration: 6},
			},
		}},
		EstimatedCalories: 20,
	}
	workout.ComputeDurations(&w)
	return w
}

// TestSideFor verifies LEFT while remaining is above the midpoint and RIGHT
// from the midpoint down.
func TestSideFor(t *testing.T) {
	item, _ := models.NewWorkItem("i", models.KindCircuitExercise,
		models.Exercise{Name: "Side Lunge", Duration: 40, SwitchSides: true}, models.Position{})

	for remaining := 40; remaining >= 1; remaining-- {
		side, ok := SideFor(item, remaining)
		if !ok {
			t.Fatalf("SideFor(%d) ok = false", remaining)
		}
		want := SideRight
		if remaining > 20 {
			want = SideLeft
		}
		if side != want {
			t.Errorf("SideFor(%d) = %s, want %s", remaining, side, want)
		}
	}

	plain, _ := models.NewWorkItem("p", models.KindCircuitExercise, models.Exercise{Name: "Plank", Duration: 40}, models.Position{})
	if _, ok := SideFor(plain, 30); ok {
		t.Error("SideFor(non-switching) ok = true")
	}
	rest, _ := models.NewRestItem("r", models.KindExerciseRest, "Rest", 40, models.Position{})
	if _, ok := SideFor(rest, 30); ok {
		t.Error("SideFor(rest) ok = true")
	}
}

// TestSideSwitchedFiresOnce verifies the switch signal fires exactly on the
// tick that reaches the midpoint.
func TestSideSwitchedFiresOnce(t *testing.T) {
	tm, _ := newTimer(t, sideWorkout())

	var fired []int
	for tm.CurrentIndex() == 0 && tm.Status() == StatusRunning {
		prev := tm.TimeRemaining()
		tm.Tick()
		if tm.SideSwitched(prev) {
			fired = append(fired, tm.TimeRemaining())
		}
	}
	if len(fired) != 1 || fired[0] != 20 {
		t.Errorf("side switch fired at %v, want [20]", fired)
	}
}

// TestAtHalfway verifies the halfway signal only applies to work items whose
// midpoint is past the ending countdown.
func TestAtHalfway(t *testing.T) {
	tm, _ := newTimer(t, sideWorkout())

	halfway := map[int]int{}
	for tm.Status() == StatusRunning {
		tm.Tick()
		if tm.AtHalfway() {
			halfway[tm.CurrentIndex()]++
		}
	}
	// Lunge (40s) reaches 20; the 10s rest is not work; the 6s plank's
	// midpoint of 3 overlaps the ending countdown.
	if halfway[0] != 1 || len(halfway) != 1 {
		t.Errorf("halfway per item = %v, want map[0:1]", halfway)
	}
}

// TestSnapshot verifies the rendered state and its JSON field names.
func TestSnapshot(t *testing.T) {
	tm, flat := newTimer(t, sideWorkout())
	for range 25 {
		tm.Tick()
	}

	st := tm.Snapshot()
	if st.Status != StatusRunning || st.TimeRemaining != 15 || st.TotalElapsed != 25 {
		t.Errorf("snapshot = %s/%d/%d, want running/15/25", st.Status, st.TimeRemaining, st.TotalElapsed)
	}
	if st.Side != SideRight {
		t.Errorf("side = %s, want RIGHT", st.Side)
	}
	if st.Item == nil || st.Item.ID != flat.Items[0].ID {
		t.Errorf("item = %v, want first item", st.Item)
	}
	if st.Next == nil || st.Next.Kind != models.KindExerciseRest {
		t.Errorf("next = %v, want exercise rest", st.Next)
	}

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"time_remaining":15`, `"side":"RIGHT"`, `"current_item_index":0`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("snapshot JSON missing %s: %s", key, data)
		}
	}
}
