package sim

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"github.com/okian/tally/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	teamsPerRoom       = 4
	speakersPerTeam    = 2
)

// Constants for score generation ranges. Team strength drives the spread so
// placements are differentiated rather than coin flips.
const (
	strengthMin   = 60.0
	strengthRange = 25.0
	speechNoise   = 8.0
	rubricMin     = 40.0
	rubricRange   = 55.0
)

// Rubric categories for juried units. Must match the service's configured
// rubric.
var rubricCategories = []string{"content", "style", "strategy"}

// Debate positions in speaking order.
var positions = []string{"OG", "OO", "CG", "CO"}

// team is one generated competitor with its speakers and latent strength.
type team struct {
	ID       string
	Speakers []string
	Strength float64
}

// Tournament is a fully generated bracket: assignments plus every judge
// submission needed to finalize all units.
type Tournament struct {
	Judges      []string       `json:"judges"`
	Teams       []team         `json:"teams"`
	Units       []unitPayload  `json:"units"`
	Submissions []scorePayload `json:"submissions"`
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, n) using crypto/rand.
func getRandomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateTournament builds the full bracket for the configured run.
func generateTournament(ctx context.Context, config *Config) (*Tournament, error) {
	numTeams := config.Teams
	if numTeams < teamsPerRoom {
		numTeams = teamsPerRoom
	}
	if rem := numTeams % teamsPerRoom; rem != 0 {
		numTeams += teamsPerRoom - rem
	}
	rooms := numTeams / teamsPerRoom

	t := &Tournament{}

	for i := 0; i < rooms*config.PanelSize; i++ {
		t.Judges = append(t.Judges, "judge-"+uuid.New().String())
	}
	for i := 0; i < numTeams; i++ {
		tm := team{
			ID:       "team-" + uuid.New().String(),
			Strength: strengthMin + getRandomFloat()*strengthRange,
		}
		for s := 0; s < speakersPerTeam; s++ {
			tm.Speakers = append(tm.Speakers, "speaker-"+uuid.New().String())
		}
		t.Teams = append(t.Teams, tm)
	}

	for round := 1; round <= config.Rounds; round++ {
		order := shuffledTeams(t.Teams)
		for room := 0; room < rooms; room++ {
			unit := unitPayload{
				UnitID:         "unit-" + uuid.New().String(),
				Kind:           "debate",
				Stage:          "preliminary",
				Round:          round,
				RequiredJudges: config.PanelSize,
				Panel:          panelFor(t.Judges, room, config.PanelSize),
			}
			for pos, tm := range order[room*teamsPerRoom : (room+1)*teamsPerRoom] {
				unit.Teams = append(unit.Teams, teamPayload{
					TeamID:   tm.ID,
					Position: positions[pos],
					Speakers: tm.Speakers,
				})
			}
			t.Units = append(t.Units, unit)
			t.Submissions = append(t.Submissions, debateSubmissions(unit, order[room*teamsPerRoom:(room+1)*teamsPerRoom])...)
		}
	}

	for i := 0; i < config.Juried; i++ {
		unit := unitPayload{
			UnitID:         "unit-" + uuid.New().String(),
			Kind:           "juried",
			Stage:          "preliminary",
			Round:          config.Rounds + 1,
			RequiredJudges: config.PanelSize,
			Panel:          panelFor(t.Judges, i%rooms, config.PanelSize),
			Competitor:     "solo-" + uuid.New().String(),
		}
		t.Units = append(t.Units, unit)
		t.Submissions = append(t.Submissions, juriedSubmissions(unit)...)
	}

	logger.Get().Info(ctx, "generated tournament",
		logger.Int("teams", len(t.Teams)),
		logger.Int("judges", len(t.Judges)),
		logger.Int("units", len(t.Units)),
		logger.Int("submissions", len(t.Submissions)))

	return t, nil
}

// shuffledTeams returns a Fisher-Yates shuffled copy of the team list.
func shuffledTeams(teams []team) []team {
	order := make([]team, len(teams))
	copy(order, teams)
	for i := len(order) - 1; i > 0; i-- {
		j := getRandomInt(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// panelFor slices the judge pool for one room.
func panelFor(judges []string, room, size int) []string {
	panel := make([]string, size)
	copy(panel, judges[room*size:(room+1)*size])
	return panel
}

// debateSubmissions produces one submission per panel judge with speaker
// scores drawn around each team's latent strength.
func debateSubmissions(unit unitPayload, room []team) []scorePayload {
	subs := make([]scorePayload, 0, len(unit.Panel))
	for _, judgeID := range unit.Panel {
		sub := scorePayload{UnitID: unit.UnitID, JudgeID: judgeID}
		for _, tm := range room {
			for _, speaker := range tm.Speakers {
				value := tm.Strength + (getRandomFloat()-0.5)*speechNoise
				sub.Entries = append(sub.Entries, entryPayload{
					ParticipantID: speaker,
					Value:         clamp(value, 0, 100),
				})
			}
		}
		subs = append(subs, sub)
	}
	return subs
}

// juriedSubmissions produces one full-rubric submission per panel judge.
func juriedSubmissions(unit unitPayload) []scorePayload {
	subs := make([]scorePayload, 0, len(unit.Panel))
	for _, judgeID := range unit.Panel {
		sub := scorePayload{UnitID: unit.UnitID, JudgeID: judgeID}
		for _, category := range rubricCategories {
			sub.Entries = append(sub.Entries, entryPayload{
				ParticipantID: unit.Competitor,
				Category:      category,
				Value:         clamp(rubricMin+getRandomFloat()*rubricRange, 1, 100),
			})
		}
		subs = append(subs, sub)
	}
	return subs
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
