// Package consensus decides when a scoring unit finalizes and consolidates
// the panel's entries into per-participant values.
//
// The state machine per unit is OPEN -> FINALIZED. Single-judge units
// finalize on first submission; three-judge units wait for the full panel and
// average. A resubmission on a finalized unit un-finalizes and re-finalizes
// from the updated entry set; the store runs Resolve inside the same
// transaction as the triggering write so the transition is atomic.
package consensus

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/rank"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Resolution is the outcome of evaluating a unit's live entry set.
type Resolution struct {
	Finalize       bool
	Refinalize     bool
	JudgesReported int
	JudgesRequired int
	Placement      model.Placement
}

// Resolver evaluates live entry sets. It is stateless; all state lives in the
// store snapshot it is handed.
type Resolver struct {
	log logger.Logger
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// New constructs a Resolver with configuration options.
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("consensus")
	}
	return r
}

// Resolve evaluates the unit's live entries and reports whether to finalize.
// live must be a consistent snapshot of all entries for the unit, read in the
// same transaction as the write that triggered evaluation. wasFinalized marks
// a resubmission on an already-finalized unit; the result is then a full
// recompute, never a patch.
func (r *Resolver) Resolve(ctx context.Context, unit model.Unit, live []model.ScoreEntry, wasFinalized bool) (Resolution, error) {
	judges := distinctJudges(live)
	res := Resolution{
		JudgesReported: len(judges),
		JudgesRequired: unit.RequiredJudges,
	}

	if len(judges) > unit.RequiredJudges {
		metrics.RecordInvariantFailure()
		r.log.Error(ctx, "more judges with live entries than the unit requires",
			logger.String("unit", unit.ID),
			logger.Int("reported", len(judges)),
			logger.Int("required", unit.RequiredJudges),
		)
		return Resolution{}, fmt.Errorf("unit %s: %d judges reported, %d required: %w",
			unit.ID, len(judges), unit.RequiredJudges, ErrInvariant)
	}
	if len(judges) < unit.RequiredJudges {
		// Not an error: "k of n submitted" is an observable status.
		return res, nil
	}

	ranker, err := rank.For(unit.Kind)
	if err != nil {
		return Resolution{}, fmt.Errorf("unit %s: %w", unit.ID, err)
	}
	placement, err := ranker.Rank(unit, Consolidate(live))
	if err != nil {
		return Resolution{}, fmt.Errorf("unit %s: rank: %w", unit.ID, err)
	}

	res.Finalize = true
	res.Refinalize = wasFinalized
	res.Placement = placement
	if wasFinalized {
		r.log.Info(ctx, "unit un-finalized and re-finalized after resubmission",
			logger.String("unit", unit.ID))
	}
	return res, nil
}

// Consolidate folds the panel's live entries into one value per
// (participant, category): the arithmetic mean across distinct judges. Output
// order is deterministic.
func Consolidate(live []model.ScoreEntry) []rank.Score {
	type acc struct {
		sum   float64
		count int
	}
	keys := make([]string, 0, len(live))
	byKey := make(map[string]*acc, len(live))
	meta := make(map[string]rank.Score, len(live))
	for _, e := range live {
		key := e.ParticipantID + "\x00" + e.Category
		a, ok := byKey[key]
		if !ok {
			byKey[key] = &acc{sum: e.Value, count: 1}
			meta[key] = rank.Score{ParticipantID: e.ParticipantID, Category: e.Category}
			keys = append(keys, key)
			continue
		}
		a.sum += e.Value
		a.count++
	}
	sort.Strings(keys)

	out := make([]rank.Score, 0, len(keys))
	for _, key := range keys {
		a := byKey[key]
		s := meta[key]
		s.Value = a.sum / float64(a.count)
		out = append(out, s)
	}
	return out
}

func distinctJudges(entries []model.ScoreEntry) map[string]struct{} {
	judges := make(map[string]struct{})
	for _, e := range entries {
		judges[e.JudgeID] = struct{}{}
	}
	return judges
}
