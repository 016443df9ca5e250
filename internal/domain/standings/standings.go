// Package standings derives per-competitor cumulative standings for a stage
// by recomputing from every finalized, visible unit. There is no incremental
// running-total table anywhere: recompute-from-source removes the lost-update
// class of bugs between concurrent finalizations.
package standings

import (
	"sort"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// tally is the per-competitor accumulator while scanning units.
type tally struct {
	competitorID string
	points       int
	total        float64
	played       int
	placements   map[int]int
	rankWeighted int // sum of (rank x occurrences), for average placement
}

// Compute replays the given finalized units into ordered stage standings.
// It is pure and re-runnable: identical inputs produce identical output.
// Frozen-round filtering happens upstream, in the store query that produced
// units. cutoff marks the top-K rows as advancing; zero or negative disables
// the flag.
func Compute(units []model.FinalizedUnit, cutoff int) []types.StandingRow {
	byCompetitor := make(map[string]*tally)
	for _, u := range units {
		for _, row := range u.Ranked {
			t, ok := byCompetitor[row.CompetitorID]
			if !ok {
				t = &tally{competitorID: row.CompetitorID, placements: make(map[int]int)}
				byCompetitor[row.CompetitorID] = t
			}
			t.points += row.Points
			t.total += row.Total
			t.played++
			t.placements[row.Rank]++
			t.rankWeighted += row.Rank
		}
	}

	rows := make([]types.StandingRow, 0, len(byCompetitor))
	for _, t := range byCompetitor {
		row := types.StandingRow{
			CompetitorID:    t.competitorID,
			Points:          t.points,
			Total:           t.total,
			Played:          t.played,
			PlacementCounts: t.placements,
		}
		if t.played > 0 {
			row.AvgScore = t.total / float64(t.played)
			row.AvgPlacement = float64(t.rankWeighted) / float64(t.played)
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return lessRow(rows[i], rows[j]) })
	assignDenseRanks(rows)
	if cutoff > 0 {
		for i := range rows {
			rows[i].Advancing = rows[i].Rank <= cutoff
		}
	}
	return rows
}

// lessRow is the fixed tie-break chain: primary points desc, raw total desc,
// average score desc, average placement asc. Competitor id ascending is the
// final deterministic fallback when every criterion is exactly equal.
func lessRow(a, b types.StandingRow) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Total != b.Total {
		return a.Total > b.Total
	}
	if a.AvgScore != b.AvgScore {
		return a.AvgScore > b.AvgScore
	}
	if a.AvgPlacement != b.AvgPlacement {
		return a.AvgPlacement < b.AvgPlacement
	}
	return a.CompetitorID < b.CompetitorID
}

// assignDenseRanks walks the sorted rows and gives rows that tie on the whole
// chain the same rank, without gaps after a tie.
func assignDenseRanks(rows []types.StandingRow) {
	rank := 0
	for i := range rows {
		if i == 0 || !tied(rows[i-1], rows[i]) {
			rank++
		}
		rows[i].Rank = rank
	}
}

func tied(a, b types.StandingRow) bool {
	return a.Points == b.Points &&
		a.Total == b.Total &&
		a.AvgScore == b.AvgScore &&
		a.AvgPlacement == b.AvgPlacement
}
