// Package upload queues finished sessions locally and sends them to the
// server when it is reachable.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/circuitrunner/internal/models"
)

// Stats tracks upload progress.
type Stats struct {
	Pending  int
	Uploaded int
	Failed   int
	Rejected int
}

// Sender delivers one session. *Client satisfies it.
type Sender interface {
	SendSession(ctx context.Context, s models.WorkoutSession) error
}

// Queue stores sessions in the StateDB and flushes them through a Sender.
// It satisfies runner.SessionHandler.
type Queue struct {
	sender Sender
	state  *StateDB
	log    *slog.Logger
}

// NewQueue creates a new Queue.
func NewQueue(sender Sender, state *StateDB, log *slog.Logger) *Queue {
	return &Queue{sender: sender, state: state, log: log}
}

// HandleSession enqueues s and tries to upload everything pending. Upload
// failures leave the session queued and are not returned.
func (q *Queue) HandleSession(ctx context.Context, s models.WorkoutSession) error {
	if err := q.state.Enqueue(ctx, s); err != nil {
		return fmt.Errorf("queueing session %s: %w", s.ID, err)
	}
	stats, err := q.Flush(ctx)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		q.log.Warn("sessions kept for later upload", "pending", stats.Failed)
	}
	return nil
}

// Flush sends every pending session. Rejected sessions are marked uploaded so
// they are not retried forever; their error is kept in the state DB.
func (q *Queue) Flush(ctx context.Context) (*Stats, error) {
	pending, err := q.state.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pending sessions: %w", err)
	}

	stats := &Stats{Pending: len(pending)}
	for _, s := range pending {
		err := q.sender.SendSession(ctx, s)
		switch {
		case err == nil:
			stats.Uploaded++
			if err := q.state.MarkUploaded(ctx, s.ID); err != nil {
				return stats, fmt.Errorf("marking %s uploaded: %w", s.ID, err)
			}
			q.log.Info("session uploaded", "session_id", s.ID, "status", s.Status)

		case errors.Is(err, ErrRejected):
			stats.Rejected++
			q.log.Error("session rejected", "session_id", s.ID, "error", err)
			if err := q.state.MarkUploaded(ctx, s.ID); err != nil {
				return stats, err
			}
			if err := q.state.RecordFailure(ctx, s.ID, err); err != nil {
				return stats, err
			}

		case ctx.Err() != nil:
			return stats, ctx.Err()

		default:
			stats.Failed++
			q.log.Warn("session upload failed", "session_id", s.ID, "error", err)
			if err := q.state.RecordFailure(ctx, s.ID, err); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}
