// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// StandingsDependencies defines the interface for standings queries.
type StandingsDependencies interface {
	Standings(ctx context.Context, caller model.Caller, stage model.Stage, includeFrozen bool) ([]types.StandingRow, error)
}

// StandingsHandler handles standings requests.
type StandingsHandler struct {
	deps     StandingsDependencies
	maxLimit int
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies, maxLimit int) *StandingsHandler {
	return &StandingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetStandings handles GET /standings?stage=S&include_frozen=B&limit=N
// requests. include_frozen only takes effect for privileged callers; public
// requests silently get the visible view.
func (h *StandingsHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standings"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	stage := model.Stage(q.Get("stage"))
	if !stage.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	includeFrozen := false
	if v := q.Get("include_frozen"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		includeFrozen = parsed
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	rows, err := h.deps.Standings(r.Context(), callerFrom(r), stage, includeFrozen)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	writeJSON(w, http.StatusOK, rows)
}
