package workout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/circuitrunner/internal/models"
	"gopkg.in/yaml.v3"
)

// Decode parses a workout document. YAML is used when format is "yaml" or
// "yml"; anything else is treated as JSON.
func Decode(data []byte, format string) (models.GeneratedWorkout, error) {
	var w models.GeneratedWorkout
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &w); err != nil {
			return w, fmt.Errorf("parsing workout yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &w); err != nil {
			return w, fmt.Errorf("parsing workout json: %w", err)
		}
	}
	return w, nil
}

// LoadFile reads a workout from disk, fills in missing totals and validates it.
func LoadFile(path string) (models.GeneratedWorkout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.GeneratedWorkout{}, fmt.Errorf("reading workout file: %w", err)
	}
	w, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return w, err
	}
	if w.ActualDuration == 0 {
		ComputeDurations(&w)
	}
	if err := Validate(w); err != nil {
		return w, fmt.Errorf("invalid workout %s: %w", path, err)
	}
	return w, nil
}
