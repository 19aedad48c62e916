package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/circuitrunner/internal/history"
)

func (h *handlers) recentSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)
	end := time.Now().Add(24 * time.Hour)

	sessions, err := h.ds.QuerySessions(ctx, time.Time{}, end, uid, 0)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, history.RecentFinished(sessions, 10))
}

func (h *handlers) historySummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sum, err := h.summary(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, sum)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
