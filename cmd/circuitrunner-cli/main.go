package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/claude/circuitrunner/internal/config"
	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/upload"
)

var Version = "dev"

var (
	cfg *config.Client
	log *slog.Logger

	flagServer   string
	flagAPIKey   string
	flagStateDir string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "circuitrunner",
	Short: "Run circuit workouts in the terminal",
	Long: `Run generated circuit workouts with a countdown timer and keep a
local queue of finished sessions that syncs to a circuitrunner server.

Settings come from CIRCUITRUNNER_* environment variables; flags override them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadClient()
		if err != nil {
			return err
		}
		if flagServer != "" {
			c.ServerURL = flagServer
		}
		if flagAPIKey != "" {
			c.APIKey = flagAPIKey
		}
		if flagStateDir != "" {
			c.StateDir = flagStateDir
		}
		if flagLogLevel != "" {
			c.LogLevel = flagLogLevel
		}
		cfg = c

		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return fmt.Errorf("invalid log level %q", cfg.LogLevel)
		}
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "server URL (env CIRCUITRUNNER_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key (env CIRCUITRUNNER_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "directory for the offline queue (env CIRCUITRUNNER_STATE_DIR)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(runCmd, flattenCmd, syncCmd, logCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// sessionSink stores finished sessions in the offline queue. With a server
// configured it also uploads everything pending.
type sessionSink struct {
	state *upload.StateDB
	queue *upload.Queue
}

func openSink() (*sessionSink, error) {
	state, err := upload.OpenStateDB(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	sink := &sessionSink{state: state}
	if cfg.ServerURL != "" {
		sink.queue = upload.NewQueue(upload.NewClient(cfg.ServerURL, cfg.APIKey), state, log)
	}
	return sink, nil
}

func (s *sessionSink) HandleSession(ctx context.Context, ws models.WorkoutSession) error {
	if s.queue != nil {
		return s.queue.HandleSession(ctx, ws)
	}
	if err := s.state.Enqueue(ctx, ws); err != nil {
		return err
	}
	log.Info("no server configured, session saved locally", "session_id", ws.ID)
	return nil
}

func (s *sessionSink) Close() error { return s.state.Close() }
