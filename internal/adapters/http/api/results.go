// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/tally/internal/domain/types"
)

// ResultDependencies defines the interface for unit result lookups.
type ResultDependencies interface {
	UnitResult(ctx context.Context, unitID string) (types.UnitResult, error)
}

// ResultsHandler handles unit result requests.
type ResultsHandler struct {
	deps ResultDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// HandleGetResult handles GET /results/{unit_id} requests.
func (h *ResultsHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_result"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /results/
	unitID := strings.TrimPrefix(r.URL.Path, "/results/")
	if unitID == "" || strings.Contains(unitID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	result, err := h.deps.UnitResult(r.Context(), unitID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
