package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/circuitrunner/internal/history"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload queued sessions to the server",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var (
	logName        string
	logDescription string
	logMinutes     int
	logCalories    int
	logDifficulty  string
	logDate        string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record a workout done without the timer",
	Long: `Record a manual workout session.

Examples:
  circuitrunner log --name "Morning run" --minutes 30 --calories 280
  circuitrunner log --name Yoga --minutes 45 --date 2026-10-18T07:30:00Z`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVar(&logName, "name", "", "workout name (required)")
	logCmd.Flags().StringVar(&logDescription, "description", "", "notes about the workout")
	logCmd.Flags().IntVar(&logMinutes, "minutes", 0, "duration in minutes (required)")
	logCmd.Flags().IntVar(&logCalories, "calories", 0, "calories burned")
	logCmd.Flags().StringVar(&logDifficulty, "difficulty", "", "beginner, intermediate or advanced")
	logCmd.Flags().StringVar(&logDate, "date", "", "completion time as RFC 3339 (default now)")
	_ = logCmd.MarkFlagRequired("name")
	_ = logCmd.MarkFlagRequired("minutes")
}

func runSync(cmd *cobra.Command, args []string) error {
	if cfg.ServerURL == "" {
		return errors.New("no server configured: set CIRCUITRUNNER_SERVER_URL or --server")
	}
	sink, err := openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	stats, err := sink.queue.Flush(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d pending, %d uploaded, %d failed, %d rejected\n",
		stats.Pending, stats.Uploaded, stats.Failed, stats.Rejected)
	return nil
}

func runLog(cmd *cobra.Command, args []string) error {
	if logMinutes <= 0 {
		return errors.New("--minutes must be positive")
	}
	entry := history.ManualEntry{
		Name:            logName,
		Description:     logDescription,
		DurationMinutes: logMinutes,
		Calories:        logCalories,
		Difficulty:      logDifficulty,
	}
	if logDate != "" {
		t, err := time.Parse(time.RFC3339, logDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		entry.CompletedAt = t
	}

	sink, err := openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	s := history.NewManualSession(entry, time.Now())
	if err := sink.HandleSession(cmd.Context(), s); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged %s (%d min, %d kcal) as %s\n", logName, logMinutes, logCalories, s.ID)
	return nil
}
