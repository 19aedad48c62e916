package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/runner"
	"github.com/claude/circuitrunner/internal/timer"
)

func newRunServer(t *testing.T) (*Server, *stubStore, chan time.Time) {
	t.Helper()
	store := newStubStore()
	if _, err := store.InsertWorkout(context.Background(), sampleWorkout(), 1); err != nil {
		t.Fatal(err)
	}
	ticks := make(chan time.Time)
	srv := New(store, "", discardLogger(), WithRunOptions(runner.WithTicks(ticks)))
	t.Cleanup(srv.Close)
	return srv, store, ticks
}

func tick(ticks chan<- time.Time, n int) {
	for range n {
		ticks <- time.Now()
	}
}

func waitRunDone(t *testing.T, srv *Server) {
	t.Helper()
	lr := srv.runs.current(1)
	if lr == nil {
		t.Fatal("no run")
	}
	select {
	case <-lr.driver.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
}

// TestRunCommands drives a live run through pause and stop and checks the
// stopped session is recorded.
func TestRunCommands(t *testing.T) {
	srv, store, ticks := newRunServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/runs", map[string]string{"workout_id": "w-short"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: status = %d, want 201: %s", rec.Code, rec.Body)
	}
	rec = do(t, srv, http.MethodPost, "/api/v1/runs", map[string]string{"workout_id": "w-short"})
	if rec.Code != http.StatusConflict {
		t.Errorf("second start: status = %d, want 409", rec.Code)
	}

	tick(ticks, timer.CountdownStart+2)

	rec = do(t, srv, http.MethodPost, "/api/v1/runs/active/pause", nil)
	var resp struct {
		Accepted bool        `json:"accepted"`
		State    timer.State `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Accepted || resp.State.Status != timer.StatusPaused {
		t.Errorf("pause = %v/%s, want accepted/paused", resp.Accepted, resp.State.Status)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/runs/active/pause", nil)
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Accepted {
		t.Error("second pause accepted, want ignored")
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/runs/active/jump", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action: status = %d, want 400", rec.Code)
	}

	do(t, srv, http.MethodPost, "/api/v1/runs/active/stop", nil)
	waitRunDone(t, srv)

	sessions, _ := store.QuerySessions(context.Background(), time.Time{}, time.Now().Add(time.Hour), 1, 0)
	if len(sessions) != 1 {
		t.Fatalf("recorded %d sessions, want 1", len(sessions))
	}
	if s := sessions[0]; s.Status != models.StatusStoppedEarly || s.ActualDurationWorked != 2 {
		t.Errorf("session = %s/%ds, want stopped_early/2s", s.Status, s.ActualDurationWorked)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/runs/active", nil)
	var view struct {
		Ended   bool                   `json:"ended"`
		Session *models.WorkoutSession `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if !view.Ended || view.Session == nil {
		t.Errorf("view = ended %v session %v, want ended with session", view.Ended, view.Session)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/runs/active/resume", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("command after end: status = %d, want 409", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/runs", map[string]string{"workout_id": "w-short"})
	if rec.Code != http.StatusCreated {
		t.Errorf("restart after end: status = %d, want 201", rec.Code)
	}
}

// TestRunNotFound verifies missing workouts and runs give 404.
func TestRunNotFound(t *testing.T) {
	srv, _, _ := newRunServer(t)

	if rec := do(t, srv, http.MethodGet, "/api/v1/runs/active", nil); rec.Code != http.StatusNotFound {
		t.Errorf("active: status = %d, want 404", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/runs/active/pause", nil); rec.Code != http.StatusNotFound {
		t.Errorf("command: status = %d, want 404", rec.Code)
	}
	rec := do(t, srv, http.MethodPost, "/api/v1/runs", map[string]string{"workout_id": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("start: status = %d, want 404", rec.Code)
	}
}

// TestCloseRecordsActiveRun verifies shutting the server down stops the run
// and records it.
func TestCloseRecordsActiveRun(t *testing.T) {
	srv, store, ticks := newRunServer(t)
	do(t, srv, http.MethodPost, "/api/v1/runs", map[string]string{"workout_id": "w-short"})
	tick(ticks, timer.CountdownStart+4)

	srv.Close()

	s, err := store.QuerySessions(context.Background(), time.Time{}, time.Now().Add(time.Hour), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 1 || s[0].ActualDurationWorked != 4 {
		t.Errorf("sessions = %+v, want one stopped at 4s", s)
	}
}

// TestRunEventsStream reads the SSE stream from start to stop.
func TestRunEventsStream(t *testing.T) {
	srv, _, ticks := newRunServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", strings.NewReader(`{"workout_id":"w-short"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	stream, err := http.Get(ts.URL + "/api/v1/runs/active/events")
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()
	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}

	sc := bufio.NewScanner(stream.Body)
	next := func() string {
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				return name
			}
		}
		return ""
	}

	if got := next(); got != "state" {
		t.Fatalf("first event = %q, want state", got)
	}

	tick(ticks, 1)
	if got := next(); got != string(runner.CueCountdown) {
		t.Errorf("after tick = %q, want countdown", got)
	}

	resp, err = http.Post(ts.URL+"/api/v1/runs/active/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := next(); got != string(runner.CueStopped) {
		t.Errorf("after stop = %q, want stopped", got)
	}
	if got := next(); got != "" {
		t.Errorf("stream continued with %q, want end", got)
	}
}
