package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/claude/circuitrunner/internal/history"
	appmcp "github.com/claude/circuitrunner/internal/mcp"
	"github.com/claude/circuitrunner/internal/models"
	"github.com/claude/circuitrunner/internal/runner"
	"github.com/claude/circuitrunner/internal/storage"
)

// Store is the data layer the HTTP handlers need. *storage.DB satisfies it.
type Store interface {
	history.Store
	InsertWorkout(ctx context.Context, w models.GeneratedWorkout, userID int) (bool, error)
	GetWorkout(ctx context.Context, id string, userID int) (*models.GeneratedWorkout, error)
	QueryWorkouts(ctx context.Context, start, end time.Time, userID, limit int) ([]storage.WorkoutSummary, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    Store
	log      *slog.Logger
	apiKey   string
	hooks    []history.Hook
	runOpts  []runner.Option
	identity func(http.Handler) http.Handler
	runs     *runManager
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithHooks registers hooks called after every recorded session.
func WithHooks(hooks ...history.Hook) Option {
	return func(s *Server) { s.hooks = append(s.hooks, hooks...) }
}

// WithRunOptions adds options applied to every live run driver.
func WithRunOptions(opts ...runner.Option) Option {
	return func(s *Server) { s.runOpts = append(s.runOpts, opts...) }
}

// WithTailscale resolves callers through the tailnet instead of the dev user.
func WithTailscale(whois WhoIser) Option {
	return func(s *Server) { s.identity = TailscaleIdentity(whois, s.store, s.log) }
}

// New creates a new Server with all routes configured.
func New(store Store, apiKey string, log *slog.Logger, opts ...Option) *Server {
	s := &Server{
		store:    store,
		log:      log,
		apiKey:   apiKey,
		identity: DevIdentity,
		runs:     newRunManager(),
		router:   chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the active run, if any, so its session is recorded.
func (s *Server) Close() {
	s.runs.cancelActive()
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)
		r.Get("/stats", s.handleStats)
		r.Get("/imports", s.handleImportLogs)

		r.Get("/workouts", s.handleQueryWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)
		r.Get("/workouts/{id}/timeline", s.handleWorkoutTimeline)

		r.Get("/sessions", s.handleQuerySessions)
		r.Get("/sessions/{id}", s.handleGetSession)

		r.Get("/history/summary", s.handleHistorySummary)
		r.Get("/training/summary", s.handleTrainingSummary)

		r.Get("/runs/active", s.handleActiveRun)
		r.Get("/runs/active/events", s.handleRunEvents)

		// Everything that changes data or a live run needs the API key.
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))

			r.Post("/workouts", s.handleCreateWorkout)

			r.Post("/sessions", s.handleCreateSession)
			r.Post("/sessions/manual", s.handleManualSession)
			r.Patch("/sessions/{id}/feedback", s.handleSessionFeedback)
			r.Delete("/sessions/{id}", s.handleDeleteSession)

			r.Post("/runs", s.handleStartRun)
			r.Post("/runs/active/{action}", s.handleRunCommand)
		})
	})
}

// SetMCP mounts the streamable-HTTP MCP endpoint at /mcp. Tool calls run as
// the user resolved by the identity middleware.
func (s *Server) SetMCP(m *mcpserver.MCPServer) {
	h := mcpserver.NewStreamableHTTPServer(m,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return appmcp.WithUserID(ctx, userIDFromContext(r))
		}),
	)
	s.router.Handle("/mcp", h)
}

// recorder returns a Recorder acting for uid.
func (s *Server) recorder(uid int) *history.Recorder {
	return history.NewRecorder(s.store, uid, s.log, s.hooks...)
}
