package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/circuitrunner/internal/config"
	"github.com/claude/circuitrunner/internal/mcp"
)

var Version = "dev"

func main() {
	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(log); err != nil {
		log.Error("mcp bridge failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if cfg.ServerURL == "" {
		return fmt.Errorf("CIRCUITRUNNER_SERVER_URL is required")
	}

	s := mcp.New(mcp.NewHTTPClient(cfg.ServerURL), Version, log)
	log.Info("serving MCP over stdio", "server", cfg.ServerURL, "user_id", cfg.UserID)

	return server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return mcp.WithUserID(ctx, cfg.UserID)
	}))
}
