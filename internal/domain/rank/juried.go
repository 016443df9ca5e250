package rank

import (
	"github.com/okian/tally/internal/domain/model"
)

// JuriedRanker totals a single competitor's per-category scores. No
// comparison happens at unit level; cross-competitor ranking is the standings
// aggregator's job.
type JuriedRanker struct{}

// Rank implements Ranker.
func (JuriedRanker) Rank(unit model.Unit, scores []Score) (model.Placement, error) {
	if len(scores) == 0 {
		return model.Placement{}, ErrNoScores
	}
	var total float64
	for _, s := range scores {
		total += s.Value
	}
	return model.Placement{
		UnitID: unit.ID,
		Ranked: []model.PlacementRow{{
			CompetitorID: unit.Competitor,
			Rank:         1,
			Points:       0,
			Total:        total,
		}},
	}, nil
}
