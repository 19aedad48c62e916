package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/circuitrunner/internal/history"
	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/workout"
)

// sessionLookback is how far back session queries reach without a start.
const sessionLookback = 30

// defaultTimeRange resolves the optional start/end arguments of session
// tools. A date-only end covers that whole day.
func defaultTimeRange(startStr, endStr string) (start, end time.Time, err error) {
	end = time.Now()
	if endStr != "" {
		if end, err = parseFlexTime(endStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
		if isDateOnly(endStr) {
			end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}

	start = end.AddDate(0, 0, -sessionLookback)
	if startStr != "" {
		if start, err = parseFlexTime(startStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, errors.New("start is after end")
	}
	return start, end, nil
}

func isDateOnly(s string) bool { return len(s) == len(time.DateOnly) }

func parseFlexTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// --- Tool definitions ---

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("List workout sessions in a time range, newest first. Each session includes status (completed or stopped_early), percent complete, seconds worked, estimated calories and any RPE/notes feedback."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("status", mcp.Description("Only return sessions with this status."), mcp.Enum("completed", "stopped_early")),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return. Defaults to 50.")),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Retrieve one workout session by ID, including the workout snapshot it ran and where it stopped."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
)

var toolGetHistorySummary = mcp.NewTool("get_history_summary",
	mcp.WithDescription("Lifetime totals across all sessions: completed workouts, minutes worked, calories burned, and the current and longest streak of consecutive training days."),
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Weekly or monthly session totals: sessions, completed, stopped early, minutes, calories and average RPE per period."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 6 months ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to '1 month'."), mcp.Enum("1 week", "1 month")),
)

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List stored circuit workouts with difficulty, total duration and estimated calories."),
	mcp.WithString("start", mcp.Description("Created after this date. Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("Created before this date. Defaults to now.")),
)

var toolGetWorkoutTimeline = mcp.NewTool("get_workout_timeline",
	mcp.WithDescription("Flatten a stored workout into the ordered list of timed items the timer runs: warm-up, every circuit exercise per round, the rests between them, and cool-down."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout ID")),
)

// --- Tool handlers ---

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	limit := req.GetInt("limit", 50)
	status := models.SessionStatus(req.GetString("status", ""))

	uid := UserIDFromContext(ctx)
	sessions, err := h.ds.QuerySessions(ctx, start, end, uid, 0)
	if err != nil {
		h.log.Error("mcp get_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	sessions = history.RecentFinished(sessions, 0)
	filtered := sessions[:0]
	for _, s := range sessions {
		if status == "" || s.Status == status {
			filtered = append(filtered, s)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return jsonResult(filtered)
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	s, err := h.ds.GetSession(ctx, id, UserIDFromContext(ctx))
	if errors.Is(err, models.ErrNotFound) {
		return mcp.NewToolResultError("session not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(s)
}

func (h *handlers) getHistorySummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := h.summary(ctx)
	if err != nil {
		h.log.Error("mcp get_history_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(sum)
}

func (h *handlers) getTrainingSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	endStr := req.GetString("end", "")
	startStr := req.GetString("start", "")
	end := time.Now()
	if endStr != "" {
		var err error
		if end, err = parseFlexTime(endStr); err != nil {
			return mcp.NewToolResultError("invalid end date: " + err.Error()), nil
		}
	}
	start := end.AddDate(0, -6, 0)
	if startStr != "" {
		var err error
		if start, err = parseFlexTime(startStr); err != nil {
			return mcp.NewToolResultError("invalid start date: " + err.Error()), nil
		}
	}
	bucket := req.GetString("bucket", "1 month")

	periods, err := h.ds.GetTrainingSummary(ctx, start, end, bucket, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_training_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(periods)
}

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid time range: " + err.Error()), nil
	}

	workouts, err := h.ds.QueryWorkouts(ctx, start, end, UserIDFromContext(ctx), 0)
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(workouts)
}

func (h *handlers) getWorkoutTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	w, err := h.ds.GetWorkout(ctx, id, UserIDFromContext(ctx))
	if errors.Is(err, models.ErrNotFound) {
		return mcp.NewToolResultError("workout not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_workout_timeline", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	flat := workout.Flatten(*w)
	type row struct {
		Index    int    `json:"index"`
		Type     string `json:"type"`
		Label    string `json:"label"`
		Name     string `json:"name"`
		Duration int    `json:"duration"`
	}
	rows := make([]row, len(flat.Items))
	for i, item := range flat.Items {
		rows[i] = row{Index: i, Type: string(item.Kind), Label: workout.ItemTypeLabel(item.Kind), Name: item.Name, Duration: item.Duration}
	}
	return jsonResult(map[string]any{
		"workout_id":     flat.WorkoutID,
		"name":           w.Name,
		"total_duration": flat.TotalDuration,
		"total_items":    flat.TotalItems,
		"items":          rows,
	})
}

func (h *handlers) summary(ctx context.Context) (history.Summary, error) {
	now := time.Now()
	sessions, err := h.ds.QuerySessions(ctx, time.Time{}, now.Add(24*time.Hour), UserIDFromContext(ctx), 0)
	if err != nil {
		return history.Summary{}, err
	}
	return history.Summarize(sessions, now), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
