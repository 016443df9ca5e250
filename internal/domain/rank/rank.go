// Package rank computes ordinal placement and points for a finalized unit.
// Two variants exist, selected by unit kind: debate victory points and juried
// rubric sums. Ranking is pure and deterministic given identical entries.
package rank

import (
	"errors"

	"github.com/okian/tally/internal/domain/model"
)

// Score is a judge-consolidated value for one participant and category: for
// multi-judge units the arithmetic mean across the panel, otherwise the single
// judge's value.
type Score struct {
	ParticipantID string
	Category      string
	Value         float64
}

// Ranker turns a unit's consolidated scores into a Placement.
type Ranker interface {
	Rank(unit model.Unit, scores []Score) (model.Placement, error)
}

// Sentinel kinds for ranking errors.
var (
	ErrUnknownKind    = errors.New("no ranker for unit kind")
	ErrUnknownSpeaker = errors.New("score for speaker not assigned to unit")
	ErrNoScores       = errors.New("no scores to rank")
)

// For returns the ranker for a unit kind.
func For(kind model.UnitKind) (Ranker, error) {
	switch kind {
	case model.KindDebate:
		return DebateRanker{}, nil
	case model.KindJuried:
		return JuriedRanker{}, nil
	}
	return nil, ErrUnknownKind
}
