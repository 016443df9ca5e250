// Package repository provides durable, transactional storage of score
// entries, placements and round visibility.
package repository

import (
	"context"

	"github.com/okian/tally/internal/domain/consensus"
	"github.com/okian/tally/internal/domain/model"
)

// ResolveFunc evaluates a consistent snapshot of a unit's live entries. The
// store calls it inside the same transaction as the triggering write, so the
// finalize decision can never act on a partially applied state.
type ResolveFunc func(unit model.Unit, live []model.ScoreEntry, wasFinalized bool) (consensus.Resolution, error)

// SubmitOutcome reports what a committed submission did.
type SubmitOutcome struct {
	Finalized      bool
	Refinalized    bool
	JudgesReported int
	JudgesRequired int
}

// Store provides read/write access to tournament state.
type Store interface {
	// SeedUnits loads assignment snapshots from the external pairing
	// system. A unit that already has a finalized score is immutable and
	// re-seeding it fails with ErrImmutable.
	SeedUnits(ctx context.Context, units []model.Unit) error

	// Unit returns the assignment snapshot for a unit.
	// Returns ErrNotFound for unknown ids.
	Unit(ctx context.Context, id string) (model.Unit, error)

	// Submit atomically replaces the judge's live entries for the unit with
	// the given set, evaluates resolve on the resulting snapshot and, when
	// told to, replaces the placement and finalized-at marker. Either the
	// whole submission commits or none of it does.
	Submit(ctx context.Context, unitID, judgeID string, entries []model.ScoreEntry, resolve ResolveFunc) (SubmitOutcome, error)

	// UnitStatus returns the observable resolution state of a unit.
	UnitStatus(ctx context.Context, unitID string) (model.UnitStatus, error)

	// FinalizedUnits returns every finalized unit of the stage whose round
	// is not frozen, unless includeFrozen. The frozen filter is part of the
	// query, never applied after the fact.
	FinalizedUnits(ctx context.Context, stage model.Stage, includeFrozen bool) ([]model.FinalizedUnit, error)

	// SetFrozen flips the reveal gate for a round, recording who acted.
	SetFrozen(ctx context.Context, stage model.Stage, round int, frozen bool, by string) (model.RoundVisibility, error)

	// Visibility returns the gate state for a round. Rounds never frozen
	// report an unfrozen zero state.
	Visibility(ctx context.Context, stage model.Stage, round int) (model.RoundVisibility, error)

	// FrozenRoundCount returns the number of currently frozen rounds.
	FrozenRoundCount(ctx context.Context) (int, error)

	// UnitCounts returns the number of open and finalized units.
	UnitCounts(ctx context.Context) (open, finalized int, err error)

	Close() error
}
