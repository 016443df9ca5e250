package rank

import (
	"fmt"
	"sort"

	"github.com/okian/tally/internal/domain/model"
)

// victoryPoints is the fixed per-rank point table. Rooms with fewer than four
// teams use only the leading entries.
var victoryPoints = [4]int{3, 2, 1, 0}

// DebateRanker ranks the teams of a debate room by the sum of their speakers'
// consolidated scores.
//
// Tie-break: teams with exactly equal totals keep their fixed position order
// (OG, OO, CG, CO). The upstream system left this case unspecified; position
// order is the deterministic rule adopted here.
type DebateRanker struct{}

// Rank implements Ranker.
func (DebateRanker) Rank(unit model.Unit, scores []Score) (model.Placement, error) {
	if len(scores) == 0 {
		return model.Placement{}, ErrNoScores
	}

	totals := make(map[string]float64, len(unit.Teams))
	for _, s := range scores {
		team, ok := unit.TeamOf(s.ParticipantID)
		if !ok {
			return model.Placement{}, fmt.Errorf("speaker %s: %w", s.ParticipantID, ErrUnknownSpeaker)
		}
		totals[team.TeamID] += s.Value
	}

	// Canonical input order is the fixed position order; a stable sort on
	// totals then realizes the documented tie-break.
	teams := make([]model.TeamAssignment, len(unit.Teams))
	copy(teams, unit.Teams)
	sort.SliceStable(teams, func(i, j int) bool {
		return model.PositionOrder(teams[i].Position) < model.PositionOrder(teams[j].Position)
	})
	sort.SliceStable(teams, func(i, j int) bool {
		return totals[teams[i].TeamID] > totals[teams[j].TeamID]
	})

	ranked := make([]model.PlacementRow, 0, len(teams))
	for i, t := range teams {
		points := 0
		if i < len(victoryPoints) {
			points = victoryPoints[i]
		}
		ranked = append(ranked, model.PlacementRow{
			CompetitorID: t.TeamID,
			Rank:         i + 1,
			Points:       points,
			Total:        totals[t.TeamID],
		})
	}
	return model.Placement{UnitID: unit.ID, Ranked: ranked}, nil
}
