package mcp

import (
	"context"
	"time"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QuerySessions(ctx context.Context, start, end time.Time, userID, limit int) ([]models.WorkoutSession, error)
	GetSession(ctx context.Context, id string, userID int) (*models.WorkoutSession, error)
	QueryWorkouts(ctx context.Context, start, end time.Time, userID, limit int) ([]storage.WorkoutSummary, error)
	GetWorkout(ctx context.Context, id string, userID int) (*models.GeneratedWorkout, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
