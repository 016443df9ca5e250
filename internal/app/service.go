// Package service provides the core business service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tally/internal/adapters/feed"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/consensus"
	"github.com/okian/tally/internal/domain/gate"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/replay"
	"github.com/okian/tally/internal/domain/standings"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/internal/domain/validate"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// ErrForbidden rejects callers whose role does not permit an operation.
var ErrForbidden = gate.ErrForbidden

// Service implements the tabulation engine behind the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	validator *validate.Validator
	resolver  *consensus.Resolver
	gate      *gate.Gate
	changes   feed.Feed
	auditor   *feed.Auditor
	replays   replay.Cache

	// Configuration
	dbPath     string
	feedSize   int
	replaySize int
	speaker    validate.Bounds
	rubric     map[string]validate.Bounds
	cutoffs    map[model.Stage]int

	// State
	started bool
	cancel  context.CancelFunc

	log logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithDBPath sets the SQLite database file backing the score store.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithStore injects a prebuilt store, overriding WithDBPath.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFeedSize bounds the unit-change feed.
func WithFeedSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.feedSize = size
		}
	}
}

// WithReplaySize bounds the resubmission replay cache.
func WithReplaySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.replaySize = size
		}
	}
}

// WithSpeakerBounds sets the allowed debate speaker score range.
func WithSpeakerBounds(min, max float64) Option {
	return func(s *Service) {
		if max > min {
			s.speaker = validate.Bounds{Min: min, Max: max}
		}
	}
}

// WithRubric sets the juried rubric categories and bounds.
func WithRubric(rubric map[string]validate.Bounds) Option {
	return func(s *Service) {
		if len(rubric) > 0 {
			s.rubric = rubric
		}
	}
}

// WithCutoffs sets per-stage qualification cutoffs.
func WithCutoffs(cutoffs map[model.Stage]int) Option {
	return func(s *Service) {
		if len(cutoffs) > 0 {
			s.cutoffs = cutoffs
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:     "tally.db",
		feedSize:   4096,
		replaySize: 50_000,
		speaker:    validate.Bounds{Min: 0, Max: 100},
		rubric: map[string]validate.Bounds{
			"content":  {Min: 1, Max: 100},
			"style":    {Min: 1, Max: 100},
			"strategy": {Min: 1, Max: 100},
		},
		cutoffs: map[model.Stage]int{
			model.StagePreliminary: 8,
			model.StageSemifinal:   4,
			model.StageFinal:       1,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get().Named("app")
	}

	s.log.Info(ctx, "starting tabulation service")

	if s.store == nil {
		store, err := repository.NewSQLiteStore(ctx, s.dbPath, repository.WithLogger(s.log.Named("store")))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
	}
	s.validator = validate.New(
		validate.WithRubric(s.rubric),
		validate.WithSpeakerBounds(s.speaker),
		validate.WithLogger(s.log.Named("validate")),
	)
	s.resolver = consensus.New(consensus.WithLogger(s.log.Named("consensus")))
	s.gate = gate.New(s.store, gate.WithLogger(s.log.Named("gate")))
	s.changes = feed.NewInMemoryFeed(feed.WithCapacity(s.feedSize))
	s.replays = replay.NewInMemoryCache(replay.WithMaxSize(s.replaySize))

	auditCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.auditor = feed.NewAuditor(s.changes, feed.WithLogger(s.log.Named("audit")))
	go s.auditor.Run(auditCtx)

	s.started = true
	s.log.Info(ctx, "tabulation service started",
		logger.Int("feedSize", s.feedSize),
		logger.Int("replaySize", s.replaySize),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.log.Info(ctx, "stopping tabulation service")

	if s.changes != nil {
		_ = s.changes.Close()
	}
	if s.auditor != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = s.auditor.Shutdown(shutdownCtx)
		cancel()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.log.Info(ctx, "tabulation service stopped")
}

// SeedUnits loads assignment snapshots from the external pairing system.
// Admin only.
func (s *Service) SeedUnits(ctx context.Context, caller model.Caller, units []model.Unit) error {
	if !caller.Privileged() {
		return fmt.Errorf("user %s role %s: %w", caller.UserID, caller.Role, ErrForbidden)
	}
	return s.store.SeedUnits(ctx, units)
}

// SubmitScore validates and stores one judge's submission, resolving the
// unit inside the same store transaction. Resubmitting an identical payload
// is answered from the replay cache with the same result.
func (s *Service) SubmitScore(ctx context.Context, caller model.Caller, sub validate.Submission) (types.SubmitAck, error) {
	if caller.Role != model.RoleJudge && caller.Role != model.RoleAdmin {
		metrics.RecordSubmissionRejected("forbidden")
		return types.SubmitAck{}, fmt.Errorf("user %s role %s: %w", caller.UserID, caller.Role, ErrForbidden)
	}

	unit, err := s.store.Unit(ctx, sub.UnitID)
	if err != nil {
		metrics.RecordSubmissionRejected("unknown_unit")
		return types.SubmitAck{}, err
	}

	checked, err := s.validator.Check(ctx, unit, sub)
	if err != nil {
		if errors.Is(err, validate.ErrNotAssigned) {
			metrics.RecordSubmissionRejected("not_assigned")
			s.log.Warn(ctx, "submission from unassigned party",
				logger.String("unit", sub.UnitID),
				logger.String("judge", sub.JudgeID),
				logger.Error(err),
			)
		} else {
			metrics.RecordSubmissionRejected("validation")
		}
		return types.SubmitAck{}, err
	}

	key := replay.Key(unit.ID, sub.JudgeID)
	digest := replay.Digest(checked.Entries, sub.TeamRanks)
	if s.replays.Unchanged(ctx, key, digest) {
		metrics.RecordReplayHit()
		metrics.RecordSubmissionDuplicate()
		status, err := s.store.UnitStatus(ctx, unit.ID)
		if err != nil {
			return types.SubmitAck{}, err
		}
		metrics.UpdateReplayCacheSize(s.replays.Size())
		return types.SubmitAck{
			Accepted:       true,
			Duplicate:      true,
			Finalized:      status.State == model.StateFinalized,
			JudgesReported: status.JudgesReported,
			JudgesRequired: status.JudgesRequired,
			Warnings:       checked.Warnings,
		}, nil
	}

	outcome, err := s.store.Submit(ctx, unit.ID, sub.JudgeID, checked.Entries,
		func(u model.Unit, live []model.ScoreEntry, wasFinalized bool) (consensus.Resolution, error) {
			return s.resolver.Resolve(ctx, u, live, wasFinalized)
		})
	if err != nil {
		// The digest was recorded optimistically; a failed submission must
		// stay retryable.
		s.replays.Forget(ctx, key)
		switch {
		case errors.Is(err, repository.ErrConflict):
			metrics.RecordSubmissionRejected("conflict")
		case errors.Is(err, consensus.ErrInvariant):
			metrics.RecordSubmissionRejected("invariant")
		default:
			metrics.RecordSubmissionRejected("store")
		}
		return types.SubmitAck{}, err
	}

	metrics.RecordSubmissionAccepted()
	metrics.UpdateReplayCacheSize(s.replays.Size())
	s.refreshUnitGauges(ctx)

	s.changes.Publish(ctx, feed.Change{
		UnitID:         unit.ID,
		Stage:          unit.Stage,
		Round:          unit.Round,
		JudgeID:        sub.JudgeID,
		JudgesReported: outcome.JudgesReported,
		JudgesRequired: outcome.JudgesRequired,
		Finalized:      outcome.Finalized,
		Refinalized:    outcome.Refinalized,
		At:             time.Now().UTC(),
	})

	return types.SubmitAck{
		Accepted:       true,
		Finalized:      outcome.Finalized,
		Refinalized:    outcome.Refinalized,
		JudgesReported: outcome.JudgesReported,
		JudgesRequired: outcome.JudgesRequired,
		Warnings:       checked.Warnings,
	}, nil
}

// UnitResult returns the observable resolution state of a unit.
func (s *Service) UnitResult(ctx context.Context, unitID string) (types.UnitResult, error) {
	status, err := s.store.UnitStatus(ctx, unitID)
	if err != nil {
		return types.UnitResult{}, err
	}
	out := types.UnitResult{
		UnitID:         status.UnitID,
		Status:         types.StatusAwaitingJudges,
		JudgesReported: status.JudgesReported,
		JudgesRequired: status.JudgesRequired,
	}
	if status.State == model.StateFinalized {
		out.Status = types.StatusFinalized
		out.Placement = status.Placement
		out.FinalizedAt = status.FinalizedAt
	}
	return out, nil
}

// Standings recomputes stage standings from every finalized, visible unit.
// Frozen rounds are included only for privileged callers that ask for them.
func (s *Service) Standings(ctx context.Context, caller model.Caller, stage model.Stage, includeFrozen bool) ([]types.StandingRow, error) {
	if !stage.Valid() {
		return nil, validate.NewError("stage", fmt.Sprintf("unknown stage %q", stage))
	}
	include := s.gate.IncludeFrozen(caller, includeFrozen)

	units, err := s.store.FinalizedUnits(ctx, stage, include)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows := standings.Compute(units, s.cutoffs[stage])
	metrics.RecordStandingsRecompute(float64(time.Since(start).Milliseconds()))
	return rows, nil
}

// FreezeRound withholds a round's results from public standings. Admin only.
func (s *Service) FreezeRound(ctx context.Context, caller model.Caller, stage model.Stage, round int) (model.RoundVisibility, error) {
	return s.gate.Freeze(ctx, caller, stage, round)
}

// UnfreezeRound reveals a previously frozen round. Admin only.
func (s *Service) UnfreezeRound(ctx context.Context, caller model.Caller, stage model.Stage, round int) (model.RoundVisibility, error) {
	return s.gate.Unfreeze(ctx, caller, stage, round)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started": s.started,
	}
	if !s.started {
		return stats
	}

	if open, finalized, err := s.store.UnitCounts(ctx); err == nil {
		stats["openUnits"] = open
		stats["finalizedUnits"] = finalized
		metrics.UpdateOpenUnits(open)
		metrics.UpdateFinalizedUnits(finalized)
	}
	if frozen, err := s.store.FrozenRoundCount(ctx); err == nil {
		stats["frozenRounds"] = frozen
		metrics.UpdateFrozenRounds(frozen)
	}
	stats["feedDepth"] = s.changes.Len(ctx)
	stats["replayCacheSize"] = s.replays.Size()
	return stats
}

func (s *Service) refreshUnitGauges(ctx context.Context) {
	if open, finalized, err := s.store.UnitCounts(ctx); err == nil {
		metrics.UpdateOpenUnits(open)
		metrics.UpdateFinalizedUnits(finalized)
	}
}
