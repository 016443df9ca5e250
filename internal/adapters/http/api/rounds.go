// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/tally/internal/domain/model"
)

// RoundDependencies defines the interface for round visibility changes.
type RoundDependencies interface {
	FreezeRound(ctx context.Context, caller model.Caller, stage model.Stage, round int) (model.RoundVisibility, error)
	UnfreezeRound(ctx context.Context, caller model.Caller, stage model.Stage, round int) (model.RoundVisibility, error)
}

// RoundsHandler handles round visibility requests.
type RoundsHandler struct {
	deps RoundDependencies
}

// NewRoundsHandler creates a new rounds handler.
func NewRoundsHandler(deps RoundDependencies) *RoundsHandler {
	return &RoundsHandler{deps: deps}
}

// roundRequest mirrors the OpenAPI schema for POST /rounds/freeze and
// POST /rounds/unfreeze.
type roundRequest struct {
	Stage string `json:"stage"`
	Round int    `json:"round"`
}

func (r roundRequest) validate() error {
	switch {
	case !model.Stage(r.Stage).Valid():
		return errors.New("unknown stage")
	case r.Round < 1:
		return errors.New("round must be positive")
	}
	return nil
}

// HandleFreeze handles POST /rounds/freeze requests.
func (h *RoundsHandler) HandleFreeze(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "api.freeze_round", h.deps.FreezeRound)
}

// HandleUnfreeze handles POST /rounds/unfreeze requests.
func (h *RoundsHandler) HandleUnfreeze(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "api.unfreeze_round", h.deps.UnfreezeRound)
}

func (h *RoundsHandler) handle(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	action func(context.Context, model.Caller, model.Stage, int) (model.RoundVisibility, error),
) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req roundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	vis, err := action(r.Context(), callerFrom(r), model.Stage(req.Stage), req.Round)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vis)
}
