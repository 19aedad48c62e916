package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/runner"
	"github.com/claude/circuitrunner/internal/timer"
	"github.com/claude/circuitrunner/internal/workout"
)

// sseEvent is a single server-sent event.
type sseEvent struct {
	Event string
	Data  string
}

// liveRun is a workout being driven on the server. It fans driver events out
// to SSE subscribers.
type liveRun struct {
	ID        string    `json:"id"`
	WorkoutID string    `json:"workout_id"`
	UserID    int       `json:"-"`
	StartedAt time.Time `json:"started_at"`

	driver *runner.Driver
	cancel context.CancelFunc

	mu      sync.Mutex
	subs    map[chan sseEvent]struct{}
	ended   bool
	session *models.WorkoutSession
}

func newLiveRun(workoutID string, userID int) *liveRun {
	return &liveRun{
		ID:        uuid.NewString(),
		WorkoutID: workoutID,
		UserID:    userID,
		StartedAt: time.Now(),
		subs:      make(map[chan sseEvent]struct{}),
	}
}

// Emit implements runner.EventSink. Slow subscribers miss events.
func (lr *liveRun) Emit(ev runner.Event) {
	msg := sseEvent{Event: string(ev.Cue), Data: mustJSON(ev)}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	for ch := range lr.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	if ev.Cue == runner.CueWorkoutComplete || ev.Cue == runner.CueStopped {
		lr.ended = true
		lr.session = ev.Session
		for ch := range lr.subs {
			close(ch)
			delete(lr.subs, ch)
		}
	}
}

// subscribe returns a channel of events. The channel is closed when the run
// ends; ok is false if it already has.
func (lr *liveRun) subscribe() (ch chan sseEvent, ok bool) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if lr.ended {
		return nil, false
	}
	ch = make(chan sseEvent, 32)
	lr.subs[ch] = struct{}{}
	return ch, true
}

func (lr *liveRun) unsubscribe(ch chan sseEvent) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if _, ok := lr.subs[ch]; ok {
		delete(lr.subs, ch)
		close(ch)
	}
}

type runView struct {
	*liveRun
	State   timer.State            `json:"state"`
	Ended   bool                   `json:"ended"`
	Session *models.WorkoutSession `json:"session,omitempty"`
}

func (lr *liveRun) view() runView {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return runView{liveRun: lr, State: lr.driver.State(), Ended: lr.ended, Session: lr.session}
}

// runManager holds the single active run of the server.
type runManager struct {
	mu     sync.Mutex
	active *liveRun
}

func newRunManager() *runManager { return &runManager{} }

// current returns the latest run, which may have ended, for userID.
func (m *runManager) current(userID int) *liveRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.UserID != userID {
		return nil
	}
	return m.active
}

// claim installs lr unless a run is still in progress.
func (m *runManager) claim(lr *liveRun) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		select {
		case <-m.active.driver.Done():
		default:
			return false
		}
	}
	m.active = lr
	return true
}

func (m *runManager) cancelActive() {
	m.mu.Lock()
	lr := m.active
	m.mu.Unlock()
	if lr == nil {
		return
	}
	lr.cancel()
	<-lr.driver.Done()
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkoutID string `json:"workout_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.WorkoutID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "workout_id required"})
		return
	}
	uid := userIDFromContext(r)

	wk, err := s.store.GetWorkout(r.Context(), body.WorkoutID, uid)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	flat := workout.Flatten(*wk)
	if flat.TotalItems == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": workout.ErrEmptyTimeline.Error()})
		return
	}

	lr := newLiveRun(wk.ID, uid)
	rec := s.recorder(uid)
	opts := append([]runner.Option{
		runner.WithSink(lr),
		runner.WithSink(runner.LogSink{Log: s.log}),
		runner.WithHandler(runner.HandlerFunc(rec.Record)),
		runner.WithLogger(s.log),
	}, s.runOpts...)
	lr.driver = runner.New(flat, models.NewSession(uuid.NewString(), *wk, flat, time.Now()), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	lr.cancel = cancel
	if !s.runs.claim(lr) {
		cancel()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a workout is already running"})
		return
	}

	go func() {
		defer cancel()
		if _, err := lr.driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("live run", "run_id", lr.ID, "error", err)
		}
	}()

	s.log.Info("run started", "run_id", lr.ID, "workout", wk.Name, "items", flat.TotalItems)
	writeJSON(w, http.StatusCreated, lr.view())
}

func (s *Server) handleActiveRun(w http.ResponseWriter, r *http.Request) {
	lr := s.runs.current(userIDFromContext(r))
	if lr == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active run"})
		return
	}
	writeJSON(w, http.StatusOK, lr.view())
}

func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := runner.ParseCommand(chi.URLParam(r, "action"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	lr := s.runs.current(userIDFromContext(r))
	if lr == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active run"})
		return
	}

	accepted, err := lr.driver.Send(r.Context(), cmd)
	if errors.Is(err, runner.ErrFinished) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run has ended"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"state":    lr.driver.State(),
	})
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	lr := s.runs.current(userIDFromContext(r))
	if lr == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active run"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch, live := lr.subscribe()
	fmt.Fprintf(w, "event: state\ndata: %s\n\n", mustJSON(lr.view()))
	flusher.Flush()
	if !live {
		return
	}
	defer lr.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, ev.Data)
			flusher.Flush()
		}
	}
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
