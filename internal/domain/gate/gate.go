// Package gate controls whether a round's finalized results are visible to
// non-privileged callers. Freezing is a pure metadata flip with audit fields;
// stored scores and placements are never touched.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Sentinel kinds for gate errors.
var (
	ErrForbidden = errors.New("caller may not change round visibility")
)

// Store is the persistence the gate needs: round visibility rows only.
type Store interface {
	SetFrozen(ctx context.Context, stage model.Stage, round int, frozen bool, by string) (model.RoundVisibility, error)
	Visibility(ctx context.Context, stage model.Stage, round int) (model.RoundVisibility, error)
	FrozenRoundCount(ctx context.Context) (int, error)
}

// Gate mediates freeze/unfreeze actions and visibility decisions.
type Gate struct {
	store Store
	log   logger.Logger
}

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// New constructs a Gate over the given visibility store.
func New(store Store, opts ...Option) *Gate {
	g := &Gate{store: store}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get().Named("gate")
	}
	return g
}

// Freeze withholds a round's finalized results from public standings.
// Admin only; the acting user is recorded for audit.
func (g *Gate) Freeze(ctx context.Context, caller model.Caller, stage model.Stage, round int) (model.RoundVisibility, error) {
	return g.set(ctx, caller, stage, round, true)
}

// Unfreeze reveals a previously frozen round.
func (g *Gate) Unfreeze(ctx context.Context, caller model.Caller, stage model.Stage, round int) (model.RoundVisibility, error) {
	return g.set(ctx, caller, stage, round, false)
}

func (g *Gate) set(ctx context.Context, caller model.Caller, stage model.Stage, round int, frozen bool) (model.RoundVisibility, error) {
	if !caller.Privileged() {
		return model.RoundVisibility{}, fmt.Errorf("user %s role %s: %w", caller.UserID, caller.Role, ErrForbidden)
	}
	vis, err := g.store.SetFrozen(ctx, stage, round, frozen, caller.UserID)
	if err != nil {
		return model.RoundVisibility{}, err
	}
	g.log.Info(ctx, "round visibility changed",
		logger.String("stage", string(stage)),
		logger.Int("round", round),
		logger.Bool("frozen", frozen),
		logger.String("by", caller.UserID),
	)
	if n, err := g.store.FrozenRoundCount(ctx); err == nil {
		metrics.UpdateFrozenRounds(n)
	}
	return vis, nil
}

// IncludeFrozen decides whether a standings query may include frozen rounds.
// Public callers never see them, whatever they request.
func (g *Gate) IncludeFrozen(caller model.Caller, requested bool) bool {
	return requested && caller.Privileged()
}

// Visible reports whether the round's finalized units may be shown to the
// caller. Privileged callers always see everything.
func (g *Gate) Visible(ctx context.Context, caller model.Caller, stage model.Stage, round int) (bool, error) {
	if caller.Privileged() {
		return true, nil
	}
	vis, err := g.store.Visibility(ctx, stage, round)
	if err != nil {
		return false, err
	}
	return !vis.Frozen, nil
}
