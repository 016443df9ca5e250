// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/tally/internal/domain/model"
)

// UnitDependencies defines the interface for assignment seeding.
type UnitDependencies interface {
	SeedUnits(ctx context.Context, caller model.Caller, units []model.Unit) error
}

// UnitsHandler handles assignment snapshot uploads.
type UnitsHandler struct {
	deps UnitDependencies
}

// NewUnitsHandler creates a new units handler.
func NewUnitsHandler(deps UnitDependencies) *UnitsHandler {
	return &UnitsHandler{deps: deps}
}

// unitRequest mirrors the OpenAPI schema for one unit in POST /units.
type unitRequest struct {
	UnitID         string        `json:"unit_id"`
	Kind           string        `json:"kind"`
	Stage          string        `json:"stage"`
	Round          int           `json:"round"`
	RequiredJudges int           `json:"required_judges"`
	Panel          []string      `json:"panel"`
	Teams          []teamRequest `json:"teams,omitempty"`
	Competitor     string        `json:"competitor,omitempty"`
}

type teamRequest struct {
	TeamID   string   `json:"team_id"`
	Position string   `json:"position"`
	Speakers []string `json:"speakers"`
}

func (u unitRequest) validate() error {
	switch {
	case strings.TrimSpace(u.UnitID) == "":
		return errors.New("missing unit_id")
	case u.Kind != string(model.KindDebate) && u.Kind != string(model.KindJuried):
		return fmt.Errorf("unknown kind %q", u.Kind)
	case !model.Stage(u.Stage).Valid():
		return fmt.Errorf("unknown stage %q", u.Stage)
	case u.Round < 1:
		return errors.New("round must be positive")
	case len(u.Panel) == 0:
		return errors.New("missing panel")
	case u.RequiredJudges != 1 && u.RequiredJudges != 3:
		return errors.New("required_judges must be 1 or 3")
	case len(u.Panel) < u.RequiredJudges:
		return errors.New("panel smaller than required_judges")
	}
	if u.Kind == string(model.KindJuried) && strings.TrimSpace(u.Competitor) == "" {
		return errors.New("juried unit needs a competitor")
	}
	if u.Kind == string(model.KindDebate) && len(u.Teams) == 0 {
		return errors.New("debate unit needs teams")
	}
	for _, t := range u.Teams {
		if model.PositionOrder(model.Position(t.Position)) > 3 {
			return fmt.Errorf("unknown position %q", t.Position)
		}
	}
	return nil
}

func (u unitRequest) toModel() model.Unit {
	unit := model.Unit{
		ID:             u.UnitID,
		Kind:           model.UnitKind(u.Kind),
		Stage:          model.Stage(u.Stage),
		Round:          u.Round,
		RequiredJudges: u.RequiredJudges,
		Panel:          u.Panel,
		Competitor:     u.Competitor,
	}
	for _, t := range u.Teams {
		unit.Teams = append(unit.Teams, model.TeamAssignment{
			TeamID:   t.TeamID,
			Position: model.Position(t.Position),
			Speakers: t.Speakers,
		})
	}
	return unit
}

type seedResponse struct {
	Status string `json:"status"`
	Seeded int    `json:"seeded"`
}

// HandleSeedUnits handles POST /units requests. The payload is the pairing
// system's assignment snapshot; admin only.
func (h *UnitsHandler) HandleSeedUnits(w http.ResponseWriter, r *http.Request) {
	const op = "api.seed_units"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var reqs []unitRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(reqs) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	units := make([]model.Unit, 0, len(reqs))
	for _, req := range reqs {
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		units = append(units, req.toModel())
	}

	if err := h.deps.SeedUnits(r.Context(), callerFrom(r), units); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seedResponse{Status: "seeded", Seeded: len(units)})
}
