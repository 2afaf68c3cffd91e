// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/pacer/internal/adapters/mq/queue"
	service "github.com/okian/pacer/internal/app"
	"github.com/okian/pacer/internal/domain/leaderboard"
	"github.com/okian/pacer/internal/domain/types"
)

// DefaultMaxLimit caps the limit query parameter.
const DefaultMaxLimit = 1000

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Leaderboards() []types.Summary
	Leaderboard(ctx context.Context, id string) (Board, error)
	Teams(ctx context.Context, id string) ([]leaderboard.TeamEntry, error)
	MergedLeaderboard(ctx context.Context, id, owner string) (Board, error)
	FastLeaderboard(ctx context.Context, id string) (Board, error)

	// Join registers owner in the background. An error means the request
	// was not accepted.
	Join(ctx context.Context, id, owner string) error
}

// Board mirrors the read shape returned by leaderboard queries.
type Board = types.Board

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	joinHandler        *JoinHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = DefaultMaxLimit
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		joinHandler:        NewJoinHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /leaderboards", MetricsMiddleware(s.leaderboardHandler.HandleList, "leaderboards"))
	mux.HandleFunc("GET /leaderboards/{id}", MetricsMiddleware(s.leaderboardHandler.HandleGet, "leaderboard"))
	mux.HandleFunc("GET /leaderboards/{id}/teams", MetricsMiddleware(s.leaderboardHandler.HandleTeams, "teams"))
	mux.HandleFunc("GET /leaderboards/{id}/merged", MetricsMiddleware(s.leaderboardHandler.HandleMerged, "merged"))
	mux.HandleFunc("GET /leaderboards/{id}/fast", MetricsMiddleware(s.leaderboardHandler.HandleFast, "fast"))
	mux.HandleFunc("POST /leaderboards/{id}/join", MetricsMiddleware(s.joinHandler.HandleJoin, "join"))
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

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service errors to statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownLeaderboard):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrInvalidOwner), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", errors.Join(ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
