// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/consensus"
	"github.com/okian/tally/internal/domain/gate"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/internal/domain/validate"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Write operations.
	SeedUnits(ctx context.Context, caller model.Caller, units []model.Unit) error
	SubmitScore(ctx context.Context, caller model.Caller, sub validate.Submission) (types.SubmitAck, error)

	// Read operations.
	UnitResult(ctx context.Context, unitID string) (types.UnitResult, error)
	Standings(ctx context.Context, caller model.Caller, stage model.Stage, includeFrozen bool) ([]types.StandingRow, error)

	// Round visibility. Admin only.
	FreezeRound(ctx context.Context, caller model.Caller, stage model.Stage, round int) (model.RoundVisibility, error)
	UnfreezeRound(ctx context.Context, caller model.Caller, stage model.Stage, round int) (model.RoundVisibility, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	unitsHandler     *UnitsHandler
	scoresHandler    *ScoresHandler
	resultsHandler   *ResultsHandler
	standingsHandler *StandingsHandler
	roundsHandler    *RoundsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxStandingsLimit int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		unitsHandler:     NewUnitsHandler(deps),
		scoresHandler:    NewScoresHandler(deps),
		resultsHandler:   NewResultsHandler(deps),
		standingsHandler: NewStandingsHandler(deps, maxStandingsLimit),
		roundsHandler:    NewRoundsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/units", MetricsMiddleware(s.unitsHandler.HandleSeedUnits, "units"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
	mux.HandleFunc("/results/", MetricsMiddleware(s.resultsHandler.HandleGetResult, "results"))
	mux.HandleFunc("/standings", MetricsMiddleware(s.standingsHandler.HandleGetStandings, "standings"))
	mux.HandleFunc("/rounds/freeze", MetricsMiddleware(s.roundsHandler.HandleFreeze, "rounds_freeze"))
	mux.HandleFunc("/rounds/unfreeze", MetricsMiddleware(s.roundsHandler.HandleUnfreeze, "rounds_unfreeze"))
}

// callerFrom extracts the acting caller from trusted gateway headers. An
// absent or unknown role downgrades to public; the API never guesses up.
func callerFrom(r *http.Request) model.Caller {
	c := model.Caller{
		UserID: r.Header.Get("X-User-ID"),
		Role:   model.RolePublic,
	}
	switch model.Role(r.Header.Get("X-Role")) {
	case model.RoleJudge:
		c.Role = model.RoleJudge
	case model.RoleAdmin:
		c.Role = model.RoleAdmin
	}
	return c
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

// writeDomainError translates sentinel kinds from the domain and storage
// layers into HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gate.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, validate.ErrNotAssigned):
		writeError(w, http.StatusForbidden, "not_assigned", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrImmutable):
		writeError(w, http.StatusConflict, "immutable", err)
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, consensus.ErrInvariant):
		writeError(w, http.StatusInternalServerError, "invariant_violation", err)
	default:
		if _, ok := validate.AsError(err); ok {
			writeError(w, http.StatusUnprocessableEntity, "validation", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
