package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// SQLiteStore implements Store on a single SQLite database. SQLite's
// transaction isolation is the synchronization primitive: submissions for the
// same (unit, judge) pair serialize on the write lock, and the finalize
// decision always reads the snapshot produced by its own transaction.
type SQLiteStore struct {
	db          *sql.DB
	log         logger.Logger
	busyTimeout time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS units (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	stage           TEXT NOT NULL,
	round           INTEGER NOT NULL,
	required_judges INTEGER NOT NULL,
	competitor      TEXT NOT NULL DEFAULT '',
	finalized_at    INTEGER
);

CREATE TABLE IF NOT EXISTS unit_judges (
	unit_id  TEXT NOT NULL,
	judge_id TEXT NOT NULL,
	PRIMARY KEY (unit_id, judge_id)
);

CREATE TABLE IF NOT EXISTS unit_teams (
	unit_id  TEXT NOT NULL,
	team_id  TEXT NOT NULL,
	position TEXT NOT NULL,
	PRIMARY KEY (unit_id, team_id)
);

CREATE TABLE IF NOT EXISTS unit_speakers (
	unit_id    TEXT NOT NULL,
	team_id    TEXT NOT NULL,
	speaker_id TEXT NOT NULL,
	slot       INTEGER NOT NULL,
	PRIMARY KEY (unit_id, speaker_id)
);

CREATE TABLE IF NOT EXISTS entries (
	unit_id        TEXT NOT NULL,
	judge_id       TEXT NOT NULL,
	participant_id TEXT NOT NULL,
	category       TEXT NOT NULL,
	value          REAL NOT NULL,
	PRIMARY KEY (unit_id, judge_id, participant_id, category)
);

CREATE TABLE IF NOT EXISTS placements (
	unit_id       TEXT NOT NULL,
	competitor_id TEXT NOT NULL,
	place         INTEGER NOT NULL,
	points        INTEGER NOT NULL,
	total         REAL NOT NULL,
	PRIMARY KEY (unit_id, competitor_id)
);

CREATE TABLE IF NOT EXISTS round_visibility (
	stage     TEXT NOT NULL,
	round     INTEGER NOT NULL,
	frozen    INTEGER NOT NULL DEFAULT 0,
	frozen_at INTEGER,
	frozen_by TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (stage, round)
);

CREATE INDEX IF NOT EXISTS idx_units_stage ON units (stage, round);
CREATE INDEX IF NOT EXISTS idx_entries_unit ON entries (unit_id);
`

// NewSQLiteStore opens (creating if needed) the database at path. Use
// ":memory:" only for throwaway experiments; tests should point at a file so
// pooled connections share state.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("store")
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate",
		path, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	s.db = db
	return s, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SeedUnits implements Store.
func (s *SQLiteStore) SeedUnits(ctx context.Context, units []model.Unit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range units {
		var finalized sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT finalized_at FROM units WHERE id = ?`, u.ID).Scan(&finalized)
		switch {
		case err == nil && finalized.Valid:
			return fmt.Errorf("unit %s: %w", u.ID, ErrImmutable)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return mapSQLErr(err)
		}

		for _, q := range []string{
			`DELETE FROM units WHERE id = ?`,
			`DELETE FROM unit_judges WHERE unit_id = ?`,
			`DELETE FROM unit_teams WHERE unit_id = ?`,
			`DELETE FROM unit_speakers WHERE unit_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, u.ID); err != nil {
				return mapSQLErr(err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO units (id, kind, stage, round, required_judges, competitor) VALUES (?, ?, ?, ?, ?, ?)`,
			u.ID, string(u.Kind), string(u.Stage), u.Round, u.RequiredJudges, u.Competitor); err != nil {
			return mapSQLErr(err)
		}
		for _, j := range u.Panel {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO unit_judges (unit_id, judge_id) VALUES (?, ?)`, u.ID, j); err != nil {
				return mapSQLErr(err)
			}
		}
		for _, t := range u.Teams {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO unit_teams (unit_id, team_id, position) VALUES (?, ?, ?)`,
				u.ID, t.TeamID, string(t.Position)); err != nil {
				return mapSQLErr(err)
			}
			for slot, sp := range t.Speakers {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO unit_speakers (unit_id, team_id, speaker_id, slot) VALUES (?, ?, ?, ?)`,
					u.ID, t.TeamID, sp, slot); err != nil {
					return mapSQLErr(err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return mapSQLErr(err)
	}
	s.log.Info(ctx, "units seeded", logger.Int("count", len(units)))
	return nil
}

// Unit implements Store.
func (s *SQLiteStore) Unit(ctx context.Context, id string) (model.Unit, error) {
	return s.loadUnit(ctx, s.db, id)
}

func (s *SQLiteStore) loadUnit(ctx context.Context, q querier, id string) (model.Unit, error) {
	var u model.Unit
	var kind, stage string
	var finalized sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT id, kind, stage, round, required_judges, competitor, finalized_at FROM units WHERE id = ?`, id).
		Scan(&u.ID, &kind, &stage, &u.Round, &u.RequiredJudges, &u.Competitor, &finalized)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Unit{}, fmt.Errorf("unit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Unit{}, mapSQLErr(err)
	}
	u.Kind = model.UnitKind(kind)
	u.Stage = model.Stage(stage)
	if finalized.Valid {
		t := time.Unix(finalized.Int64, 0).UTC()
		u.FinalizedAt = &t
	}

	rows, err := q.QueryContext(ctx, `SELECT judge_id FROM unit_judges WHERE unit_id = ? ORDER BY judge_id`, id)
	if err != nil {
		return model.Unit{}, mapSQLErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var j string
		if err := rows.Scan(&j); err != nil {
			return model.Unit{}, mapSQLErr(err)
		}
		u.Panel = append(u.Panel, j)
	}
	if err := rows.Err(); err != nil {
		return model.Unit{}, mapSQLErr(err)
	}

	teamRows, err := q.QueryContext(ctx,
		`SELECT t.team_id, t.position, s.speaker_id
		 FROM unit_teams t LEFT JOIN unit_speakers s ON s.unit_id = t.unit_id AND s.team_id = t.team_id
		 WHERE t.unit_id = ? ORDER BY t.team_id, s.slot`, id)
	if err != nil {
		return model.Unit{}, mapSQLErr(err)
	}
	defer teamRows.Close()
	byTeam := map[string]int{}
	for teamRows.Next() {
		var teamID, position string
		var speaker sql.NullString
		if err := teamRows.Scan(&teamID, &position, &speaker); err != nil {
			return model.Unit{}, mapSQLErr(err)
		}
		idx, ok := byTeam[teamID]
		if !ok {
			u.Teams = append(u.Teams, model.TeamAssignment{TeamID: teamID, Position: model.Position(position)})
			idx = len(u.Teams) - 1
			byTeam[teamID] = idx
		}
		if speaker.Valid {
			u.Teams[idx].Speakers = append(u.Teams[idx].Speakers, speaker.String)
		}
	}
	if err := teamRows.Err(); err != nil {
		return model.Unit{}, mapSQLErr(err)
	}
	return u, nil
}

// Submit implements Store. The delete+insert of the judge's entry set, the
// resolve evaluation and the placement replacement all happen in one
// transaction.
func (s *SQLiteStore) Submit(ctx context.Context, unitID, judgeID string, entries []model.ScoreEntry, resolve ResolveFunc) (SubmitOutcome, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreTxDuration(float64(time.Since(start).Milliseconds()))
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SubmitOutcome{}, mapSQLErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	unit, err := s.loadUnit(ctx, tx, unitID)
	if err != nil {
		return SubmitOutcome{}, err
	}
	wasFinalized := unit.FinalizedAt != nil

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE unit_id = ? AND judge_id = ?`, unitID, judgeID); err != nil {
		return SubmitOutcome{}, mapSQLErr(err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries (unit_id, judge_id, participant_id, category, value) VALUES (?, ?, ?, ?, ?)`,
			unitID, judgeID, e.ParticipantID, e.Category, e.Value); err != nil {
			return SubmitOutcome{}, mapSQLErr(err)
		}
	}

	live, err := s.liveEntries(ctx, tx, unitID)
	if err != nil {
		return SubmitOutcome{}, err
	}

	res, err := resolve(unit, live, wasFinalized)
	if err != nil {
		return SubmitOutcome{}, err
	}

	if res.Finalize {
		if _, err := tx.ExecContext(ctx, `DELETE FROM placements WHERE unit_id = ?`, unitID); err != nil {
			return SubmitOutcome{}, mapSQLErr(err)
		}
		for _, row := range res.Placement.Ranked {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO placements (unit_id, competitor_id, place, points, total) VALUES (?, ?, ?, ?, ?)`,
				unitID, row.CompetitorID, row.Rank, row.Points, row.Total); err != nil {
				return SubmitOutcome{}, mapSQLErr(err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE units SET finalized_at = ? WHERE id = ?`, time.Now().Unix(), unitID); err != nil {
			return SubmitOutcome{}, mapSQLErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return SubmitOutcome{}, mapSQLErr(err)
	}
	return SubmitOutcome{
		Finalized:      res.Finalize,
		Refinalized:    res.Refinalize,
		JudgesReported: res.JudgesReported,
		JudgesRequired: res.JudgesRequired,
	}, nil
}

func (s *SQLiteStore) liveEntries(ctx context.Context, q querier, unitID string) ([]model.ScoreEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT judge_id, participant_id, category, value FROM entries
		 WHERE unit_id = ? ORDER BY judge_id, participant_id, category`, unitID)
	if err != nil {
		return nil, mapSQLErr(err)
	}
	defer rows.Close()
	var out []model.ScoreEntry
	for rows.Next() {
		e := model.ScoreEntry{UnitID: unitID}
		if err := rows.Scan(&e.JudgeID, &e.ParticipantID, &e.Category, &e.Value); err != nil {
			return nil, mapSQLErr(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLErr(err)
	}
	return out, nil
}

// UnitStatus implements Store.
func (s *SQLiteStore) UnitStatus(ctx context.Context, unitID string) (model.UnitStatus, error) {
	unit, err := s.loadUnit(ctx, s.db, unitID)
	if err != nil {
		return model.UnitStatus{}, err
	}

	var reported int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT judge_id) FROM entries WHERE unit_id = ?`, unitID).Scan(&reported); err != nil {
		return model.UnitStatus{}, mapSQLErr(err)
	}

	status := model.UnitStatus{
		UnitID:         unitID,
		State:          model.StateOpen,
		JudgesReported: reported,
		JudgesRequired: unit.RequiredJudges,
		FinalizedAt:    unit.FinalizedAt,
	}
	if unit.FinalizedAt == nil {
		return status, nil
	}

	placement, err := s.placement(ctx, unitID)
	if err != nil {
		return model.UnitStatus{}, err
	}
	status.State = model.StateFinalized
	status.Placement = &placement
	return status, nil
}

func (s *SQLiteStore) placement(ctx context.Context, unitID string) (model.Placement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT competitor_id, place, points, total FROM placements WHERE unit_id = ? ORDER BY place, competitor_id`, unitID)
	if err != nil {
		return model.Placement{}, mapSQLErr(err)
	}
	defer rows.Close()
	p := model.Placement{UnitID: unitID}
	for rows.Next() {
		var row model.PlacementRow
		if err := rows.Scan(&row.CompetitorID, &row.Rank, &row.Points, &row.Total); err != nil {
			return model.Placement{}, mapSQLErr(err)
		}
		p.Ranked = append(p.Ranked, row)
	}
	if err := rows.Err(); err != nil {
		return model.Placement{}, mapSQLErr(err)
	}
	return p, nil
}

// FinalizedUnits implements Store. Frozen rounds are excluded by the query
// itself so a partial result can never leak.
func (s *SQLiteStore) FinalizedUnits(ctx context.Context, stage model.Stage, includeFrozen bool) ([]model.FinalizedUnit, error) {
	include := 0
	if includeFrozen {
		include = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.kind, u.round, p.competitor_id, p.place, p.points, p.total
		 FROM units u
		 JOIN placements p ON p.unit_id = u.id
		 LEFT JOIN round_visibility rv ON rv.stage = u.stage AND rv.round = u.round
		 WHERE u.stage = ? AND u.finalized_at IS NOT NULL AND (? = 1 OR COALESCE(rv.frozen, 0) = 0)
		 ORDER BY u.round, u.id, p.place, p.competitor_id`,
		string(stage), include)
	if err != nil {
		return nil, mapSQLErr(err)
	}
	defer rows.Close()

	var out []model.FinalizedUnit
	idx := map[string]int{}
	for rows.Next() {
		var id, kind string
		var round int
		var row model.PlacementRow
		if err := rows.Scan(&id, &kind, &round, &row.CompetitorID, &row.Rank, &row.Points, &row.Total); err != nil {
			return nil, mapSQLErr(err)
		}
		i, ok := idx[id]
		if !ok {
			out = append(out, model.FinalizedUnit{
				UnitID: id,
				Kind:   model.UnitKind(kind),
				Stage:  stage,
				Round:  round,
			})
			i = len(out) - 1
			idx[id] = i
		}
		out[i].Ranked = append(out[i].Ranked, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLErr(err)
	}
	return out, nil
}

// SetFrozen implements Store.
func (s *SQLiteStore) SetFrozen(ctx context.Context, stage model.Stage, round int, frozen bool, by string) (model.RoundVisibility, error) {
	frozenInt := 0
	if frozen {
		frozenInt = 1
	}
	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO round_visibility (stage, round, frozen, frozen_at, frozen_by) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (stage, round) DO UPDATE SET frozen = excluded.frozen, frozen_at = excluded.frozen_at, frozen_by = excluded.frozen_by`,
		string(stage), round, frozenInt, now, by); err != nil {
		return model.RoundVisibility{}, mapSQLErr(err)
	}
	return s.Visibility(ctx, stage, round)
}

// Visibility implements Store.
func (s *SQLiteStore) Visibility(ctx context.Context, stage model.Stage, round int) (model.RoundVisibility, error) {
	vis := model.RoundVisibility{Stage: stage, Round: round}
	var frozenInt int
	var frozenAt sql.NullInt64
	var frozenBy string
	err := s.db.QueryRowContext(ctx,
		`SELECT frozen, frozen_at, frozen_by FROM round_visibility WHERE stage = ? AND round = ?`,
		string(stage), round).Scan(&frozenInt, &frozenAt, &frozenBy)
	if errors.Is(err, sql.ErrNoRows) {
		return vis, nil
	}
	if err != nil {
		return model.RoundVisibility{}, mapSQLErr(err)
	}
	vis.Frozen = frozenInt != 0
	vis.FrozenBy = frozenBy
	if frozenAt.Valid {
		t := time.Unix(frozenAt.Int64, 0).UTC()
		vis.FrozenAt = &t
	}
	return vis, nil
}

// FrozenRoundCount implements Store.
func (s *SQLiteStore) FrozenRoundCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM round_visibility WHERE frozen = 1`).Scan(&n); err != nil {
		return 0, mapSQLErr(err)
	}
	return n, nil
}

// UnitCounts implements Store.
func (s *SQLiteStore) UnitCounts(ctx context.Context) (open, finalized int, err error) {
	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM units WHERE finalized_at IS NULL`).Scan(&open); err != nil {
		return 0, 0, mapSQLErr(err)
	}
	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM units WHERE finalized_at IS NOT NULL`).Scan(&finalized); err != nil {
		return 0, 0, mapSQLErr(err)
	}
	return open, finalized, nil
}

// mapSQLErr folds driver-level lock errors into ErrConflict so callers can
// retry the whole submission.
func mapSQLErr(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		if serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked {
			metrics.RecordStoreTxConflict()
			return fmt.Errorf("%v: %w", err, ErrConflict)
		}
	}
	return err
}
