package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/timer"
	"github.com/claude/circuitrunner/internal/workout"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Emit(ev Event) {
	attrs := []any{
		"cue", ev.Cue,
		"status", ev.State.Status,
		"item", ev.State.CurrentIndex,
		"remaining", ev.State.TimeRemaining,
		"elapsed", ev.State.TotalElapsed,
	}
	if ev.Value != 0 {
		attrs = append(attrs, "value", ev.Value)
	}
	if ev.Session != nil {
		attrs = append(attrs, "session_id", ev.Session.ID, "percent", ev.Session.PercentComplete)
	}
	s.Log.Debug("run event", attrs...)
}

// HandlerFunc adapts a function to SessionHandler.
type HandlerFunc func(ctx context.Context, s models.WorkoutSession) error

func (f HandlerFunc) HandleSession(ctx context.Context, s models.WorkoutSession) error {
	return f(ctx, s)
}

var (
	colorWork  = lipgloss.Color("#22C55E")
	colorRest  = lipgloss.Color("#3B82F6")
	colorWarn  = lipgloss.Color("#F59E0B")
	colorDim   = lipgloss.Color("#6B7280")
	colorTitle = lipgloss.Color("#A855F7")
)

// Renderer prints cues to a terminal using lipgloss styles.
type Renderer struct {
	w io.Writer

	title   lipgloss.Style
	work    lipgloss.Style
	rest    lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{
		w:       w,
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorTitle),
		work:    lipgloss.NewStyle().Bold(true).Foreground(colorWork),
		rest:    lipgloss.NewStyle().Foreground(colorRest),
		warn:    lipgloss.NewStyle().Bold(true).Foreground(colorWarn),
		dim:     lipgloss.NewStyle().Foreground(colorDim),
		success: lipgloss.NewStyle().Bold(true).Foreground(colorWork).Padding(0, 1).Border(lipgloss.RoundedBorder()),
	}
}

func (r *Renderer) Emit(ev Event) {
	if line := r.line(ev); line != "" {
		fmt.Fprintln(r.w, line)
	}
}

func (r *Renderer) line(ev Event) string {
	st := ev.State
	switch ev.Cue {
	case CueCountdown:
		return r.warn.Render(fmt.Sprintf("Starting in %d...", ev.Value))
	case CueGo:
		return r.title.Render("GO!") + "  " + r.item(st.Item, st.TimeRemaining)
	case CueItemChanged:
		return r.progress(st) + " " + r.item(st.Item, st.TimeRemaining) + r.upNext(st.Next)
	case CueEndingCountdown:
		return r.warn.Render(fmt.Sprintf("  %d", ev.Value))
	case CueHalfway:
		return r.dim.Render(fmt.Sprintf("  halfway, %s left", clock(st.TimeRemaining)))
	case CueSideSwitch:
		return r.warn.Render("  SWITCH SIDES → " + string(st.Side))
	case CuePaused:
		return r.dim.Render("  paused (r to resume)")
	case CueResumed:
		return r.dim.Render("  resumed")
	case CueWorkoutComplete:
		return r.success.Render(r.summary("Workout complete", ev.Session))
	case CueStopped:
		return r.warn.Render(r.summary("Stopped early", ev.Session))
	}
	return ""
}

func (r *Renderer) item(item *models.TimerItem, remaining int) string {
	if item == nil {
		return ""
	}
	label := fmt.Sprintf("%s · %s (%s)", workout.ItemTypeLabel(item.Kind), item.Name, clock(remaining))
	if item.IsRest() {
		return r.rest.Render(label)
	}
	return r.work.Render(label)
}

func (r *Renderer) upNext(next *models.TimerItem) string {
	if next == nil {
		return ""
	}
	return r.dim.Render("  next: " + next.Name)
}

func (r *Renderer) progress(st timer.State) string {
	return r.dim.Render(fmt.Sprintf("[%d/%d]", st.CurrentIndex+1, st.TotalItems))
}

func (r *Renderer) summary(head string, s *models.WorkoutSession) string {
	if s == nil {
		return head
	}
	var b strings.Builder
	b.WriteString(head)
	fmt.Fprintf(&b, "\n%d%% · %s · ~%d kcal", s.PercentComplete, clock(s.ActualDurationWorked), s.EstimatedCaloriesBurned)
	if s.StoppedAtItem != nil {
		fmt.Fprintf(&b, "\nstopped at %s", s.StoppedAtItem.ItemName)
	}
	return b.String()
}

func clock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
