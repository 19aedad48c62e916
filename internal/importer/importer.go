// Package importer loads workouts and session history from exported files
// into the database.
package importer

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/storage"
	"github.com/claude/circuitrunner/internal/workout"
)

// Stats tracks import progress.
type Stats struct {
	FilesSeen      int
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	WorkoutsReceived   int
	WorkoutsInserted   int
	WorkoutsDuplicated int
	WorkoutsInvalid    int

	SessionsReceived   int
	SessionsInserted   int
	SessionsDuplicated int
	SessionsSkipped    int
}

// Store is the subset of *storage.DB the importer writes to.
type Store interface {
	InsertWorkout(ctx context.Context, w models.GeneratedWorkout, userID int) (bool, error)
	InsertSession(ctx context.Context, s models.WorkoutSession, userID int) (bool, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
}

var _ Store = (*storage.DB)(nil)

// Kind is the detected shape of an import document.
type Kind string

const (
	KindWorkout Kind = "workout"
	KindSession Kind = "session"
	KindHistory Kind = "history"
	KindUnknown Kind = "unknown"
)

// historyExport is a bulk export of a user's sessions.
type historyExport struct {
	Workouts []models.GeneratedWorkout `json:"workouts"`
	Sessions []models.WorkoutSession   `json:"sessions"`
}

// Importer reads workout and session files and inserts them for one user.
type Importer struct {
	db     Store
	userID int
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// New creates a new Importer.
func New(db Store, userID int, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{db: db, userID: userID, log: log, dryRun: dryRun}
}

// Import processes every supported file under dir. Unreadable files are
// counted and skipped; database errors abort the import.
func (imp *Importer) Import(ctx context.Context, dir string) (*Stats, error) {
	start := time.Now()
	var logID int64
	if !imp.dryRun {
		id, err := imp.db.InsertImportLog(ctx, storage.ImportLog{UserID: imp.userID, Source: "file", Status: "running"})
		if err != nil {
			return &imp.stats, err
		}
		logID = id
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || formatOf(path) == "" {
			return nil
		}
		return imp.importFile(ctx, path)
	})

	if !imp.dryRun {
		imp.finishLog(logID, start, err)
	}
	return &imp.stats, err
}

func (imp *Importer) importFile(ctx context.Context, path string) error {
	imp.stats.FilesSeen++

	raw, err := readFile(path)
	if err != nil {
		imp.log.Warn("read failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}
	doc, err := normalize(raw, formatOf(path))
	if err != nil {
		imp.log.Warn("parse failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}

	kind, err := Classify(doc)
	if err != nil {
		imp.log.Warn("parse failed", "file", path, "error", err)
		imp.stats.FilesErrored++
		return nil
	}

	switch kind {
	case KindWorkout:
		var w models.GeneratedWorkout
		if err := json.Unmarshal(doc, &w); err != nil {
			imp.log.Warn("decode workout failed", "file", path, "error", err)
			imp.stats.FilesErrored++
			return nil
		}
		imp.stats.FilesProcessed++
		return imp.importWorkout(ctx, path, w)

	case KindSession:
		var s models.WorkoutSession
		if err := json.Unmarshal(doc, &s); err != nil {
			imp.log.Warn("decode session failed", "file", path, "error", err)
			imp.stats.FilesErrored++
			return nil
		}
		imp.stats.FilesProcessed++
		return imp.importSession(ctx, path, s)

	case KindHistory:
		var h historyExport
		if err := json.Unmarshal(doc, &h); err != nil {
			imp.log.Warn("decode history failed", "file", path, "error", err)
			imp.stats.FilesErrored++
			return nil
		}
		imp.stats.FilesProcessed++
		for _, w := range h.Workouts {
			if err := imp.importWorkout(ctx, path, w); err != nil {
				return err
			}
		}
		for _, s := range h.Sessions {
			if err := imp.importSession(ctx, path, s); err != nil {
				return err
			}
		}
		return nil
	}

	imp.log.Info("skipping unrecognised document", "file", path)
	imp.stats.FilesSkipped++
	return nil
}

func (imp *Importer) importWorkout(ctx context.Context, path string, w models.GeneratedWorkout) error {
	imp.stats.WorkoutsReceived++
	if w.ActualDuration == 0 {
		workout.ComputeDurations(&w)
	}
	if err := workout.Validate(w); err != nil {
		imp.log.Warn("invalid workout", "file", path, "workout", w.ID, "error", err)
		imp.stats.WorkoutsInvalid++
		return nil
	}
	if imp.dryRun {
		imp.stats.WorkoutsInserted++
		return nil
	}

	inserted, err := imp.db.InsertWorkout(ctx, w, imp.userID)
	if err != nil {
		return fmt.Errorf("inserting workout %s from %s: %w", w.ID, filepath.Base(path), err)
	}
	if inserted {
		imp.stats.WorkoutsInserted++
	} else {
		imp.stats.WorkoutsDuplicated++
	}
	return nil
}

func (imp *Importer) importSession(ctx context.Context, path string, s models.WorkoutSession) error {
	imp.stats.SessionsReceived++
	if s.ID == "" || !s.Status.Terminal() {
		imp.log.Warn("skipping unfinished session", "file", path, "session", s.ID, "status", s.Status)
		imp.stats.SessionsSkipped++
		return nil
	}
	if imp.dryRun {
		imp.stats.SessionsInserted++
		return nil
	}

	inserted, err := imp.db.InsertSession(ctx, s, imp.userID)
	if err != nil {
		return fmt.Errorf("inserting session %s from %s: %w", s.ID, filepath.Base(path), err)
	}
	if inserted {
		imp.stats.SessionsInserted++
	} else {
		imp.stats.SessionsDuplicated++
	}
	return nil
}

// finishLog records the outcome. It uses its own context so a cancelled
// import is still logged.
func (imp *Importer) finishLog(id int64, start time.Time, importErr error) {
	status := "success"
	var errMsg *string
	if importErr != nil {
		status = "error"
		msg := importErr.Error()
		errMsg = &msg
	}
	durationMs := int(time.Since(start).Milliseconds())

	entry := storage.ImportLog{
		UserID:           imp.userID,
		Source:           "file",
		Status:           status,
		FilesSeen:        imp.stats.FilesSeen,
		WorkoutsReceived: imp.stats.WorkoutsReceived,
		WorkoutsInserted: imp.stats.WorkoutsInserted,
		SessionsReceived: imp.stats.SessionsReceived,
		SessionsInserted: imp.stats.SessionsInserted,
		DurationMs:       &durationMs,
		ErrorMessage:     errMsg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := imp.db.UpdateImportLog(ctx, id, entry); err != nil {
		imp.log.Error("failed to log import", "error", err)
	}
}

// Classify detects the document kind from its top-level keys.
func Classify(doc []byte) (Kind, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(doc, &keys); err != nil {
		return KindUnknown, err
	}
	_, hasSessions := keys["sessions"]
	_, hasCircuits := keys["circuits"]
	_, hasWorkout := keys["workout"]
	_, hasStatus := keys["status"]

	switch {
	case hasSessions:
		return KindHistory, nil
	case hasCircuits:
		return KindWorkout, nil
	case hasWorkout && hasStatus:
		return KindSession, nil
	}
	return KindUnknown, nil
}

// formatOf returns "json" or "yaml" for supported files, or "".
func formatOf(path string) string {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	switch filepath.Ext(name) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

// normalize converts YAML documents to JSON so every kind decodes through
// the JSON tags of the models.
func normalize(data []byte, format string) ([]byte, error) {
	if format != "yaml" {
		return bytes.TrimSpace(data), nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
