package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
)

// Victory points by debate placement index.
var victoryPoints = []int{3, 2, 1, 0}

// expectedRow is one locally recomputed placement row.
type expectedRow struct {
	CompetitorID string
	Points       int
	Total        float64
}

// expectedPlacement recomputes a unit's placement from its generated
// submissions: per-participant mean across the panel, team totals, ordered
// descending with the fixed position order breaking ties.
func expectedPlacement(unit unitPayload, subs []scorePayload) []expectedRow {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, sub := range subs {
		for _, e := range sub.Entries {
			key := e.ParticipantID + "/" + e.Category
			sums[key] += e.Value
			counts[key]++
		}
	}
	means := make(map[string]float64, len(sums))
	for key, sum := range sums {
		means[key] = sum / float64(counts[key])
	}

	if unit.Kind == "juried" {
		total := 0.0
		for _, category := range rubricCategories {
			total += means[unit.Competitor+"/"+category]
		}
		return []expectedRow{{CompetitorID: unit.Competitor, Points: 0, Total: total}}
	}

	rows := make([]expectedRow, 0, len(unit.Teams))
	order := make(map[string]int, len(unit.Teams))
	for pos, tm := range unit.Teams {
		total := 0.0
		for _, speaker := range tm.Speakers {
			total += means[speaker+"/"]
		}
		rows = append(rows, expectedRow{CompetitorID: tm.TeamID, Total: total})
		order[tm.TeamID] = pos
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return order[rows[i].CompetitorID] < order[rows[j].CompetitorID]
	})
	for i := range rows {
		if i < len(victoryPoints) {
			rows[i].Points = victoryPoints[i]
		}
	}
	return rows
}

// submissionsByUnit groups the generated submissions per unit.
func submissionsByUnit(tournament *Tournament) map[string][]scorePayload {
	byUnit := make(map[string][]scorePayload)
	for _, sub := range tournament.Submissions {
		byUnit[sub.UnitID] = append(byUnit[sub.UnitID], sub)
	}
	return byUnit
}

// verifyUnitResults fetches every unit result and compares it against the
// local recomputation.
func verifyUnitResults(ctx context.Context, config *Config, tournament *Tournament, stats *Stats) error {
	log.Printf("🔍 Verifying %d unit results...", len(tournament.Units))

	client := newHTTPClient(config.Timeout)
	byUnit := submissionsByUnit(tournament)

	for _, unit := range tournament.Units {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp, err := client.Get(config.BaseURL+"/results/"+unit.UnitID, adminUserID, "admin")
		if err != nil {
			return fmt.Errorf("failed to fetch result for %s: %w", unit.UnitID, err)
		}
		body, err := readResponseBody(resp)
		if err != nil {
			return fmt.Errorf("failed to read result for %s: %w", unit.UnitID, err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("result fetch for %s failed with status %d", unit.UnitID, resp.StatusCode)
		}

		var result resultResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("failed to parse result for %s: %w", unit.UnitID, err)
		}

		if result.Status != "finalized" || result.Placement == nil {
			stats.UnitsMismatched++
			log.Printf("⚠️  Unit %s not finalized: %d of %d judges reported",
				unit.UnitID, result.JudgesReported, result.JudgesRequired)
			continue
		}
		stats.UnitsFinalized++

		expected := expectedPlacement(unit, byUnit[unit.UnitID])
		if mismatch := comparePlacement(expected, &result); mismatch != "" {
			stats.UnitsMismatched++
			log.Printf("⚠️  Unit %s placement mismatch: %s", unit.UnitID, mismatch)
		} else if config.Verbose {
			log.Printf("✅ Unit %s finalized as expected (winner %s)", unit.UnitID, expected[0].CompetitorID)
		}
	}

	if stats.UnitsMismatched > 0 {
		return fmt.Errorf("%d of %d units mismatched", stats.UnitsMismatched, len(tournament.Units))
	}

	log.Printf("✅ All %d units finalized with expected placements", stats.UnitsFinalized)
	return nil
}

// comparePlacement reports the first difference between the expected and the
// served placement, or empty when they agree.
func comparePlacement(expected []expectedRow, result *resultResponse) string {
	if len(result.Placement.Ranked) != len(expected) {
		return fmt.Sprintf("got %d rows, expected %d", len(result.Placement.Ranked), len(expected))
	}
	for i, want := range expected {
		got := result.Placement.Ranked[i]
		if got.CompetitorID != want.CompetitorID {
			return fmt.Sprintf("row %d is %s, expected %s", i, got.CompetitorID, want.CompetitorID)
		}
		if got.Points != want.Points {
			return fmt.Sprintf("%s has %d points, expected %d", got.CompetitorID, got.Points, want.Points)
		}
	}
	return ""
}

// verifyStandings fetches the stage standings and checks points, played
// counts and rank ordering against the local recomputation.
func verifyStandings(ctx context.Context, config *Config, tournament *Tournament, stats *Stats) error {
	log.Println("🔍 Verifying standings...")

	wantPoints := make(map[string]int)
	wantPlayed := make(map[string]int)
	byUnit := submissionsByUnit(tournament)
	for _, unit := range tournament.Units {
		for _, row := range expectedPlacement(unit, byUnit[unit.UnitID]) {
			wantPoints[row.CompetitorID] += row.Points
			wantPlayed[row.CompetitorID]++
		}
	}

	client := newHTTPClient(config.Timeout)
	endpoint := config.BaseURL + "/standings?stage=" + url.QueryEscape("preliminary")

	resp, err := client.Get(endpoint, adminUserID, "admin")
	if err != nil {
		return fmt.Errorf("failed to fetch standings: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read standings: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("standings fetch failed with status %d", resp.StatusCode)
	}

	var rows []standingRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("failed to parse standings: %w", err)
	}
	stats.StandingsRows = len(rows)

	if len(rows) != len(wantPoints) {
		return fmt.Errorf("standings has %d rows, expected %d competitors", len(rows), len(wantPoints))
	}

	for i, row := range rows {
		if row.Points != wantPoints[row.CompetitorID] {
			return fmt.Errorf("%s has %d points, expected %d",
				row.CompetitorID, row.Points, wantPoints[row.CompetitorID])
		}
		if row.Played != wantPlayed[row.CompetitorID] {
			return fmt.Errorf("%s played %d, expected %d",
				row.CompetitorID, row.Played, wantPlayed[row.CompetitorID])
		}
		if i > 0 {
			if row.Rank < rows[i-1].Rank {
				return fmt.Errorf("standings rank order broken at row %d", i)
			}
			if row.Points > rows[i-1].Points {
				return fmt.Errorf("standings points order broken at row %d", i)
			}
		}
	}

	displayTopStandings(rows, config.Verbose)

	log.Println("✅ Standings verification completed")
	return nil
}

// displayTopStandings shows the head of the standings table.
func displayTopStandings(rows []standingRow, verbose bool) {
	topN := 10
	if len(rows) < topN {
		topN = len(rows)
	}

	log.Printf("🏆 Top %d standings:", topN)
	for i := 0; i < topN; i++ {
		row := rows[i]
		marker := " "
		if row.Advancing {
			marker = "↑"
		}
		log.Printf("   %d. %s %s - %d pts, total %.2f over %d rounds",
			row.Rank, marker, row.CompetitorID, row.Points, row.Total, row.Played)
	}

	if verbose && len(rows) > 0 {
		sum := 0.0
		for _, row := range rows {
			sum += row.AvgScore
		}
		log.Printf(`📊 Standings statistics:
   Competitors: %d
   Mean of average scores: %.2f
`, len(rows), sum/float64(len(rows)))
	}
}
