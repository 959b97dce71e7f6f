// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/arbiter/internal/domain/model"
	"github.com/okian/arbiter/internal/domain/types"
)

// Dependencies required by the HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// Judge processes one reviewer verdict.
	Judge(ctx context.Context, j model.Judgment) (types.Outcome, error)

	// GetAction returns an action by id.
	GetAction(ctx context.Context, id string) (model.Action, error)

	// ListEvaluations returns the evaluation records for an action.
	ListEvaluations(ctx context.Context, actionID string) ([]model.EvaluationRecord, error)
}

// Server wires HTTP routes for the evaluation API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	judgmentsHandler *JudgmentsHandler
	actionsHandler   *ActionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		judgmentsHandler: NewJudgmentsHandler(deps),
		actionsHandler:   NewActionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/judgments", MetricsMiddleware(s.judgmentsHandler.HandlePostJudgment, "judgments"))
	mux.HandleFunc("/actions/", MetricsMiddleware(s.actionsHandler.HandleGetAction, "actions"))
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
