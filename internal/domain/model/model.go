// Package model contains domain models passed between layers.
package model

import "time"

// Stage identifies a competition phase with its own standings and cutoff.
type Stage string

// Competition stages.
const (
	StagePreliminary Stage = "preliminary"
	StageSemifinal   Stage = "semifinal"
	StageFinal       Stage = "final"
)

// Valid reports whether the stage is one of the known phases.
func (s Stage) Valid() bool {
	switch s {
	case StagePreliminary, StageSemifinal, StageFinal:
		return true
	}
	return false
}

// UnitKind selects the scoring rubric for a unit.
type UnitKind string

// Scoring unit kinds.
const (
	KindDebate UnitKind = "debate"
	KindJuried UnitKind = "juried"
)

// Position is one of the four fixed debate table positions.
type Position string

// Debate positions in speaking order.
const (
	OpeningGovernment Position = "OG"
	OpeningOpposition Position = "OO"
	ClosingGovernment Position = "CG"
	ClosingOpposition Position = "CO"
)

// PositionOrder returns the fixed speaking-order index of a position. Unknown
// positions sort last.
func PositionOrder(p Position) int {
	switch p {
	case OpeningGovernment:
		return 0
	case OpeningOpposition:
		return 1
	case ClosingGovernment:
		return 2
	case ClosingOpposition:
		return 3
	}
	return 4
}

// Role classifies a pre-authenticated caller.
type Role string

// Caller roles.
const (
	RoleJudge  Role = "judge"
	RoleAdmin  Role = "admin"
	RolePublic Role = "public"
)

// Caller arrives pre-authenticated from the identity collaborator.
type Caller struct {
	UserID string
	Role   Role
}

// Privileged reports whether the caller may see withheld results.
func (c Caller) Privileged() bool { return c.Role == RoleAdmin }

// TeamAssignment places a team at one of the four debate positions with its
// two speakers.
type TeamAssignment struct {
	TeamID   string
	Position Position
	Speakers []string
}

// Unit is one judged event: a debate room or a juried submission. Assignment
// data is supplied by the external pairing system and is immutable once the
// unit has a finalized score.
type Unit struct {
	ID             string
	Kind           UnitKind
	Stage          Stage
	Round          int
	RequiredJudges int
	Panel          []string // judge ids allowed to score this unit

	// Debate: up to four teams; fewer when a room is incomplete.
	Teams []TeamAssignment

	// Juried: the single competitor being scored.
	Competitor string

	FinalizedAt *time.Time
}

// HasJudge reports whether the judge is on the unit's panel.
func (u Unit) HasJudge(judgeID string) bool {
	for _, id := range u.Panel {
		if id == judgeID {
			return true
		}
	}
	return false
}

// TeamOf returns the team a speaker belongs to, or false if the speaker is
// not assigned to the unit.
func (u Unit) TeamOf(speakerID string) (TeamAssignment, bool) {
	for _, t := range u.Teams {
		for _, s := range t.Speakers {
			if s == speakerID {
				return t, true
			}
		}
	}
	return TeamAssignment{}, false
}

// ScoreEntry is one judge's numeric assessment for one participant on one
// unit. Debate entries use CategorySpeech with a single speaker score; juried
// entries carry one row per rubric category.
type ScoreEntry struct {
	UnitID        string
	JudgeID       string
	ParticipantID string
	Category      string
	Value         float64
}

// CategorySpeech is the single pseudo-category used for debate speaker scores.
const CategorySpeech = "speech"

// PlacementRow is one competitor's position within a finalized unit.
type PlacementRow struct {
	CompetitorID string  `json:"competitor_id"`
	Rank         int     `json:"rank"`
	Points       int     `json:"points"`
	Total        float64 `json:"total"`
}

// Placement is the canonical ordered result of a finalized unit. It is
// derived, deterministic given the same entries, and recomputed wholesale on
// every finalize.
type Placement struct {
	UnitID string         `json:"unit_id"`
	Ranked []PlacementRow `json:"ranked"`
}

// UnitState is the consensus state machine position of a unit.
type UnitState string

// Unit states. FINALIZED is terminal except for the explicit
// un-finalize/re-finalize transition on resubmission.
const (
	StateOpen      UnitState = "open"
	StateFinalized UnitState = "finalized"
)

// UnitStatus is the externally observable resolution state of a unit.
type UnitStatus struct {
	UnitID         string
	State          UnitState
	JudgesReported int
	JudgesRequired int
	Placement      *Placement
	FinalizedAt    *time.Time
}

// FinalizedUnit is the read shape the standings aggregator consumes: a
// finalized unit with its placement, already filtered by round visibility.
type FinalizedUnit struct {
	UnitID string
	Kind   UnitKind
	Stage  Stage
	Round  int
	Ranked []PlacementRow
}

// RoundVisibility is the per-round reveal gate with audit fields. It never
// affects stored scores, only whether the round's units contribute to public
// standings.
type RoundVisibility struct {
	Stage    Stage      `json:"stage"`
	Round    int        `json:"round"`
	Frozen   bool       `json:"frozen"`
	FrozenAt *time.Time `json:"frozen_at,omitempty"`
	FrozenBy string     `json:"frozen_by,omitempty"`
}

// UnitChange is the observational event emitted after a submission commits.
// Resolution itself happens inside the store transaction; the change feed is
// for audit logging and metrics only.
type UnitChange struct {
	UnitID         string
	Stage          Stage
	Round          int
	JudgeID        string
	JudgesReported int
	JudgesRequired int
	Finalized      bool
	Refinalized    bool
	At             time.Time
}
