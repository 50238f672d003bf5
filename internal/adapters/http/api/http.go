// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/evalboard/internal/app"
	"github.com/okian/evalboard/internal/domain/syncer"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Keys lists the configured sources; the first is the default.
	Keys() []string

	// Read operations expose leaderboard data.
	Leaderboard(ctx context.Context, key string) (View, error)
	GetStats(ctx context.Context) ([]SourceStats, error)

	// Sync operations trigger an incremental or forced run.
	Sync(ctx context.Context, key string, force bool) (syncer.Report, error)
	SyncAll(ctx context.Context, force bool) (map[string]syncer.Report, error)
}

// View mirrors the read shape returned by leaderboard queries.
type View = service.View

// SourceStats mirrors the read shape returned by stats queries.
type SourceStats = service.SourceStats

// allSources selects every source in POST /sync.
const allSources = "all"

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	syncHandler        *SyncHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		syncHandler:        NewSyncHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/summary", MetricsMiddleware(s.leaderboardHandler.HandleGetSummary, "summary"))
	mux.HandleFunc("/sync", MetricsMiddleware(s.syncHandler.HandlePostSync, "sync"))
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

// writeFailure maps err onto a status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnknownSource), errors.Is(err, service.ErrUnknownSource):
		return http.StatusNotFound, "unknown_source"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, syncer.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, syncer.ErrSourceUnreachable):
		return http.StatusBadGateway, "source_unreachable"
	case errors.Is(err, syncer.ErrAborted):
		return http.StatusServiceUnavailable, "aborted"
	case errors.Is(err, syncer.ErrLoadFailure):
		return http.StatusInternalServerError, "load_failed"
	case errors.Is(err, syncer.ErrPersistFailure):
		return http.StatusInternalServerError, "persist_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// sourceParam returns the source query parameter, defaulting to the first
// configured source.
func sourceParam(r *http.Request, keys []string) string {
	if key := r.URL.Query().Get("source"); key != "" {
		return key
	}
	if len(keys) > 0 {
		return keys[0]
	}
	return ""
}
