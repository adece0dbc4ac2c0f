// Package api serves the fleet readiness HTTP API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/fleetready/internal/adapters/auth"
	"github.com/okian/fleetready/internal/domain/dependency"
	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/internal/domain/types"
	"github.com/okian/fleetready/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatusDependencies
	FleetDependencies
	IssuesDependencies
	IngestDependencies
	ScoresDependencies
	QuarantineDependencies
	PartsDependencies
}

// Entry mirrors the read shape of the readiness board.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	statusHandler     *StatusHandler
	fleetHandler      *FleetHandler
	issuesHandler     *IssuesHandler
	ingestHandler     *IngestHandler
	scoresHandler     *ScoresHandler
	quarantineHandler *QuarantineHandler
	partsHandler      *PartsHandler

	validator auth.Validator
	log       logger.Logger
	maxLimit  int
	maxBody   int64
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		log:      logger.Nop(),
		maxLimit: 1_000,
		maxBody:  32 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.statusHandler = NewStatusHandler(deps, s.log)
	s.fleetHandler = NewFleetHandler(deps, s.maxLimit, s.log)
	s.issuesHandler = NewIssuesHandler(deps, s.log)
	s.ingestHandler = NewIngestHandler(deps, s.maxBody, s.log)
	s.scoresHandler = NewScoresHandler(deps, s.log)
	s.quarantineHandler = NewQuarantineHandler(deps, s.log)
	s.partsHandler = NewPartsHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to r. Write routes require a bearer
// token when the server has a validator.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Get("/status", MetricsMiddleware(s.statusHandler.HandleGetStatus, "status"))
	r.Get("/fleet/summary", MetricsMiddleware(s.fleetHandler.HandleGetSummary, "fleet_summary"))
	r.Get("/compliance/issues", MetricsMiddleware(s.issuesHandler.HandleGetIssues, "compliance_issues"))
	r.Get("/quarantine", MetricsMiddleware(s.quarantineHandler.HandleList, "quarantine"))
	r.Get("/parts/{part}/dependencies", MetricsMiddleware(s.partsHandler.HandleGetDependencies, "part_dependencies"))

	r.Group(func(r chi.Router) {
		if s.validator != nil {
			r.Use(BearerAuth(s.validator, s.log))
		}
		r.Post("/ingest", MetricsMiddleware(s.ingestHandler.HandlePostIngest, "ingest"))
		r.Post("/scores/recompute", MetricsMiddleware(s.scoresHandler.HandleRecompute, "scores_recompute"))
		r.Post("/quarantine/{record_id}/resolve", MetricsMiddleware(s.quarantineHandler.HandleResolve, "quarantine_resolve"))
		r.Post("/parts/{part}/dependencies", MetricsMiddleware(s.partsHandler.HandleAddDependency, "part_dependencies_add"))
	})
}

// NewRouter returns a chi router with the standard middleware stack and
// every API route registered.
func (s *Server) NewRouter(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err with the status of its kind. Internal errors are
// logged and their detail is not exposed.
func writeError(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.Int("status", status), logger.Error(err))
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// intParam parses an optional non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// StatusDependencies reads one ship.
type StatusDependencies interface {
	Status(ctx context.Context, shipID string) (types.ShipStatus, error)
}

// FleetDependencies reads the fleet summary.
type FleetDependencies interface {
	FleetSummary(ctx context.Context, limit int) (types.FleetSummary, error)
}

// IssuesDependencies reads open compliance issues.
type IssuesDependencies interface {
	Issues(ctx context.Context, minSeverity string) ([]types.IssueView, error)
}

// IngestDependencies queues uploaded batches.
type IngestDependencies interface {
	Submit(ctx context.Context, b model.Batch) (string, error)
}

// ScoresDependencies recomputes scores on demand.
type ScoresDependencies interface {
	Recompute(ctx context.Context, shipID string) (types.Score, bool, error)
	RecomputeAll(ctx context.Context) (int, error)
}

// QuarantineDependencies lists and resolves quarantined records.
type QuarantineDependencies interface {
	Quarantine(ctx context.Context) ([]model.QuarantineEntry, error)
	ResolveQuarantine(ctx context.Context, recordID string, action model.ResolveAction) error
}

// PartsDependencies maintains and traces part dependencies.
type PartsDependencies interface {
	AddDependency(ctx context.Context, part, dependsOn string) error
	Dependencies(ctx context.Context, part string, depth int) []dependency.Hop
}
