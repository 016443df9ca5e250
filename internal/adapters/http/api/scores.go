// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/internal/domain/validate"
)

// ScoreDependencies defines the interface for score submission.
type ScoreDependencies interface {
	SubmitScore(ctx context.Context, caller model.Caller, sub validate.Submission) (types.SubmitAck, error)
}

// ScoresHandler handles score submissions.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePostScore handles POST /scores requests. Resolution is synchronous:
// the ack already reflects whether this submission finalized the unit.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var sub validate.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ack, err := h.deps.SubmitScore(r.Context(), callerFrom(r), sub)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}
