// Package runner drives a timer.Timer in real time and turns its state
// changes into cue events.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/timer"
)

var (
	ErrNotStarted = errors.New("workout could not be started")
	ErrFinished   = errors.New("run has finished")
)

// Cue names a moment worth announcing to the user.
type Cue string

const (
	CueCountdown       Cue = "countdown"
	CueGo              Cue = "go"
	CueEndingCountdown Cue = "ending_countdown"
	CueHalfway         Cue = "halfway"
	CueSideSwitch      Cue = "side_switch"
	CueItemComplete    Cue = "item_complete"
	CueItemChanged     Cue = "item_changed"
	CuePaused          Cue = "paused"
	CueResumed         Cue = "resumed"
	CueWorkoutComplete Cue = "workout_complete"
	CueStopped         Cue = "stopped"
)

// Event is a cue with the timer state at the moment it fired.
type Event struct {
	Cue     Cue                    `json:"cue"`
	Value   int                    `json:"value,omitempty"`
	State   timer.State            `json:"state"`
	Session *models.WorkoutSession `json:"session,omitempty"`
	At      time.Time              `json:"at"`
}

// EventSink receives events from the driver goroutine. Emit must not block.
type EventSink interface {
	Emit(Event)
}

// SessionHandler receives the terminal session when a run ends.
type SessionHandler interface {
	HandleSession(ctx context.Context, s models.WorkoutSession) error
}

// Command is a user action applied between ticks.
type Command string

const (
	CmdPause    Command = "pause"
	CmdResume   Command = "resume"
	CmdSkip     Command = "skip"
	CmdPrevious Command = "previous"
	CmdStop     Command = "stop"
)

// ParseCommand maps a command name to a Command.
func ParseCommand(s string) (Command, error) {
	switch c := Command(s); c {
	case CmdPause, CmdResume, CmdSkip, CmdPrevious, CmdStop:
		return c, nil
	}
	return "", fmt.Errorf("unknown command %q", s)
}

type request struct {
	cmd   Command
	reply chan bool
}

// Driver owns a Timer and is the only goroutine that touches it.
type Driver struct {
	timer    *timer.Timer
	sinks    []EventSink
	handlers []SessionHandler
	log      *slog.Logger
	interval time.Duration
	ticks    <-chan time.Time
	now      func() time.Time

	cmds chan request
	done chan struct{}

	mu    sync.RWMutex
	state timer.State
}

// Option configures a Driver.
type Option func(*Driver)

// WithInterval sets the tick period. The default is one second.
func WithInterval(d time.Duration) Option { return func(dr *Driver) { dr.interval = d } }

// WithTicks replaces the internal ticker with an external tick source.
func WithTicks(ch <-chan time.Time) Option { return func(dr *Driver) { dr.ticks = ch } }

// WithSink adds an event sink.
func WithSink(s EventSink) Option { return func(dr *Driver) { dr.sinks = append(dr.sinks, s) } }

// WithHandler adds a handler for the finished session.
func WithHandler(h SessionHandler) Option {
	return func(dr *Driver) { dr.handlers = append(dr.handlers, h) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(dr *Driver) { dr.log = l } }

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option { return func(dr *Driver) { dr.now = now } }

// New prepares a driver for the given timeline and draft session.
func New(flat models.FlattenedWorkout, session models.WorkoutSession, opts ...Option) *Driver {
	d := &Driver{
		log:      slog.Default(),
		interval: time.Second,
		now:      time.Now,
		cmds:     make(chan request),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.timer = timer.New(timer.WithClock(d.now))
	d.timer.Initialize(flat.Items, session)
	d.state = d.timer.Snapshot()
	return d
}

// State returns the most recent snapshot. Safe for concurrent use.
func (d *Driver) State() timer.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Done is closed when Run returns.
func (d *Driver) Done() <-chan struct{} { return d.done }

// Send applies a command on the driver goroutine and reports whether the
// timer accepted it.
func (d *Driver) Send(ctx context.Context, cmd Command) (bool, error) {
	req := request{cmd: cmd, reply: make(chan bool, 1)}
	select {
	case d.cmds <- req:
	case <-d.done:
		return false, ErrFinished
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-req.reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Run starts the countdown and drives the timer until the workout completes
// or is stopped. Cancelling ctx stops the workout early. The terminal session
// is passed to every handler before Run returns.
func (d *Driver) Run(ctx context.Context) (models.WorkoutSession, error) {
	defer close(d.done)

	if !d.timer.StartCountdown() {
		return models.WorkoutSession{}, ErrNotStarted
	}
	d.emit(CueCountdown, d.timer.CountdownValue())

	ticks := d.ticks
	if ticks == nil {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s, ok := d.timer.Stop()
			if !ok {
				return models.WorkoutSession{}, ctx.Err()
			}
			d.emitSession(CueStopped, s)
			d.finish(context.WithoutCancel(ctx), s)
			return s, ctx.Err()

		case req := <-d.cmds:
			ok, s, ended := d.apply(req.cmd)
			req.reply <- ok
			if ended {
				d.finish(ctx, s)
				return s, nil
			}

		case <-ticks:
			if s, ended := d.step(); ended {
				d.finish(ctx, s)
				return s, nil
			}
		}
	}
}

func (d *Driver) step() (models.WorkoutSession, bool) {
	t := d.timer
	switch t.Status() {
	case timer.StatusCountdown:
		t.CountdownTick()
		if t.Status() == timer.StatusRunning {
			d.emit(CueGo, 0)
			d.cueEnding()
		} else {
			d.emit(CueCountdown, t.CountdownValue())
		}

	case timer.StatusRunning:
		prev := t.TimeRemaining()
		t.Tick()
		if t.Status() == timer.StatusCompleted {
			d.emit(CueItemComplete, 0)
			s, _ := t.Session()
			d.emitSession(CueWorkoutComplete, s)
			return s, true
		}
		if t.JustCompletedItem() {
			d.emit(CueItemComplete, 0)
			t.ClearJustCompleted()
			d.emit(CueItemChanged, t.CurrentIndex())
			d.cueEnding()
			return models.WorkoutSession{}, false
		}
		if t.SideSwitched(prev) {
			d.emit(CueSideSwitch, t.TimeRemaining())
		}
		if t.AtHalfway() {
			d.emit(CueHalfway, t.TimeRemaining())
		}
		d.cueEnding()
	}
	return models.WorkoutSession{}, false
}

func (d *Driver) apply(cmd Command) (bool, models.WorkoutSession, bool) {
	t := d.timer
	switch cmd {
	case CmdPause:
		if t.Pause() {
			d.emit(CuePaused, 0)
			return true, models.WorkoutSession{}, false
		}
	case CmdResume:
		if t.Resume() {
			d.emit(CueResumed, 0)
			return true, models.WorkoutSession{}, false
		}
	case CmdSkip:
		if t.SkipToNext() {
			if t.Status() == timer.StatusCompleted {
				s, _ := t.Session()
				d.emitSession(CueWorkoutComplete, s)
				return true, s, true
			}
			d.emit(CueItemChanged, t.CurrentIndex())
			d.cueEnding()
			return true, models.WorkoutSession{}, false
		}
	case CmdPrevious:
		if t.GoToPrevious() {
			d.emit(CueItemChanged, t.CurrentIndex())
			d.cueEnding()
			return true, models.WorkoutSession{}, false
		}
	case CmdStop:
		if s, ok := t.Stop(); ok {
			d.emitSession(CueStopped, s)
			return true, s, true
		}
	}
	d.log.Debug("command ignored", "command", cmd, "status", t.Status())
	return false, models.WorkoutSession{}, false
}

// cueEnding announces the last seconds of the current item, including items
// that start inside the window.
func (d *Driver) cueEnding() {
	if d.timer.InEndingCountdown() {
		d.emit(CueEndingCountdown, d.timer.TimeRemaining())
	}
}

func (d *Driver) finish(ctx context.Context, s models.WorkoutSession) {
	for _, h := range d.handlers {
		if err := h.HandleSession(ctx, s); err != nil {
			d.log.Error("handling finished session", "session_id", s.ID, "error", err)
		}
	}
	d.timer.ClearJustCompleted()
	d.timer.Reset()
	d.publish()
}

func (d *Driver) emit(cue Cue, value int) {
	d.send(Event{Cue: cue, Value: value, State: d.publish(), At: d.now()})
}

func (d *Driver) emitSession(cue Cue, s models.WorkoutSession) {
	d.send(Event{Cue: cue, State: d.publish(), Session: &s, At: d.now()})
}

func (d *Driver) send(ev Event) {
	for _, s := range d.sinks {
		s.Emit(ev)
	}
}

func (d *Driver) publish() timer.State {
	st := d.timer.Snapshot()
	d.mu.Lock()
	d.state = st
	d.mu.Unlock()
	return st
}
