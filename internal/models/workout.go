package models

import "time"

// Difficulty is the tier a workout was generated for.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case Beginner, Intermediate, Advanced:
		return true
	}
	return false
}

// Modifications holds easier/harder variants of an exercise.
type Modifications struct {
	Easier string `json:"easier,omitempty" yaml:"easier,omitempty"`
	Harder string `json:"harder,omitempty" yaml:"harder,omitempty"`
}

// Exercise is a single timed movement.
type Exercise struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Duration     int      `json:"duration" yaml:"duration"` // seconds
	TargetReps   *int     `json:"targetReps,omitempty" yaml:"targetReps,omitempty"`
	RepRange     string   `json:"repRange,omitempty" yaml:"repRange,omitempty"`
	Description  string   `json:"description" yaml:"description"`
	MuscleGroups []string `json:"muscleGroups" yaml:"muscleGroups"`
	Equipment    []string `json:"equipment,omitempty" yaml:"equipment,omitempty"`
	// SwitchSides splits the duration into a LEFT half and a RIGHT half.
	SwitchSides   bool           `json:"switchSides,omitempty" yaml:"switchSides,omitempty"`
	Modifications *Modifications `json:"modifications,omitempty" yaml:"modifications,omitempty"`
}

// SectionType distinguishes warm-up from cool-down sections.
type SectionType string

const (
	SectionWarmUp   SectionType = "warmup"
	SectionCoolDown SectionType = "cooldown"
)

// Section is a warm-up or cool-down block. It may be empty.
type Section struct {
	Type          SectionType `json:"type" yaml:"type"`
	Exercises     []Exercise  `json:"exercises" yaml:"exercises"`
	TotalDuration int         `json:"totalDuration" yaml:"totalDuration"`
}

// Circuit is a group of exercises repeated for a number of rounds.
type Circuit struct {
	ID                   string     `json:"id" yaml:"id"`
	Name                 string     `json:"name" yaml:"name"`
	Rounds               int        `json:"rounds" yaml:"rounds"`
	RestBetweenRounds    int        `json:"restBetweenRounds" yaml:"restBetweenRounds"`
	RestBetweenExercises int        `json:"restBetweenExercises" yaml:"restBetweenExercises"`
	Exercises            []Exercise `json:"exercises" yaml:"exercises"`
	TotalDuration        int        `json:"totalDuration" yaml:"totalDuration"`
}

// ComputeTotalDuration returns the circuit length in seconds: every round's
// exercises and inner rests, plus the rests between rounds.
func (c Circuit) ComputeTotalDuration() int {
	if len(c.Exercises) == 0 || c.Rounds <= 0 {
		return 0
	}
	perRound := 0
	for _, ex := range c.Exercises {
		perRound += ex.Duration
	}
	perRound += c.RestBetweenExercises * (len(c.Exercises) - 1)
	return perRound*c.Rounds + c.RestBetweenRounds*(c.Rounds-1)
}

// CalorieRange is the low/high bound of a calorie estimate.
type CalorieRange struct {
	Low  int `json:"low" yaml:"low"`
	High int `json:"high" yaml:"high"`
}

// GeneratedWorkout is the full workout document. It is read, never mutated,
// by the timer.
type GeneratedWorkout struct {
	ID                   string       `json:"id" yaml:"id"`
	CreatedAt            time.Time    `json:"createdAt" yaml:"createdAt"`
	Name                 string       `json:"name" yaml:"name"`
	Description          string       `json:"description" yaml:"description"`
	Difficulty           Difficulty   `json:"difficulty" yaml:"difficulty"`
	TargetDuration       int          `json:"targetDuration" yaml:"targetDuration"`
	ActualDuration       int          `json:"actualDuration" yaml:"actualDuration"`
	EquipmentSetUsed     string       `json:"equipmentSetUsed" yaml:"equipmentSetUsed"`
	EquipmentRequired    []string     `json:"equipmentRequired" yaml:"equipmentRequired"`
	WarmUp               Section      `json:"warmUp" yaml:"warmUp"`
	Circuits             []Circuit    `json:"circuits" yaml:"circuits"`
	CoolDown             Section      `json:"coolDown" yaml:"coolDown"`
	RestBetweenCircuits  int          `json:"restBetweenCircuits" yaml:"restBetweenCircuits"`
	EstimatedCalories    int          `json:"estimatedCalories" yaml:"estimatedCalories"`
	CalorieRange         CalorieRange `json:"calorieRange" yaml:"calorieRange"`
	FocusAreas           []string     `json:"focusAreas" yaml:"focusAreas"`
	MuscleGroupsTargeted []string     `json:"muscleGroupsTargeted" yaml:"muscleGroupsTargeted"`
	IsManual             bool         `json:"isManual,omitempty" yaml:"isManual,omitempty"`
}
