package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/runner"
	"github.com/claude/circuitrunner/internal/workout"
)

var runCmd = &cobra.Command{
	Use:   "run <workout-file>",
	Short: "Run a workout with the countdown timer",
	Long: `Run a workout file (JSON or YAML) in the terminal.

Type a key and press Enter while the workout runs:
  p  pause
  r  resume
  n  skip to the next item
  b  go back to the previous item
  q  stop early and save the session`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkout,
}

var flattenJSON bool

var flattenCmd = &cobra.Command{
	Use:   "flatten <workout-file>",
	Short: "Print the timed items of a workout",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlatten,
}

func init() {
	flattenCmd.Flags().BoolVar(&flattenJSON, "json", false, "print the timeline as JSON")
}

var keyCommands = map[string]runner.Command{
	"p": runner.CmdPause,
	"r": runner.CmdResume,
	"n": runner.CmdSkip,
	"b": runner.CmdPrevious,
	"q": runner.CmdStop,
}

func runWorkout(cmd *cobra.Command, args []string) error {
	w, err := workout.LoadFile(args[0])
	if err != nil {
		return err
	}
	flat := workout.Flatten(w)
	if flat.TotalItems == 0 {
		return workout.ErrEmptyTimeline
	}

	sink, err := openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s, %d items, %s)\n", w.Name, w.Difficulty, flat.TotalItems, minutes(flat.TotalDuration))

	driver := runner.New(flat, models.NewSession(uuid.NewString(), w, flat, time.Now()),
		runner.WithSink(runner.NewRenderer(out)),
		runner.WithHandler(sink),
		runner.WithLogger(log),
	)

	keys := readKeys(cmd.InOrStdin(), driver.Done())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := driver.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		for {
			select {
			case <-driver.Done():
				return nil
			case <-gctx.Done():
				return nil
			case key, ok := <-keys:
				if !ok {
					keys = nil
					continue
				}
				c, known := keyCommands[key]
				if !known {
					continue
				}
				if _, err := driver.Send(gctx, c); err != nil && !errors.Is(err, runner.ErrFinished) {
					return err
				}
			}
		}
	})
	return g.Wait()
}

// readKeys forwards trimmed input lines until r ends or done is closed. A
// reader blocked in Scan exits after the next line.
func readKeys(r io.Reader, done <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case <-done:
				return
			default:
			}
			select {
			case ch <- strings.ToLower(strings.TrimSpace(sc.Text())):
			case <-done:
				return
			}
		}
	}()
	return ch
}

func runFlatten(cmd *cobra.Command, args []string) error {
	w, err := workout.LoadFile(args[0])
	if err != nil {
		return err
	}
	flat := workout.Flatten(w)
	out := cmd.OutOrStdout()

	if flattenJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(flat)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tNAME\tSECONDS")
	for i, item := range flat.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", i+1, workout.ItemTypeLabel(item.Kind), item.Name, item.Duration)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d items, %s total\n", flat.TotalItems, minutes(flat.TotalDuration))
	return nil
}

func minutes(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
