package repository_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/consensus"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func openStore(t *testing.T, ctx context.Context) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "tally.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func debateUnit(id string, round int) model.Unit {
	return model.Unit{
		ID:             id,
		Kind:           model.KindDebate,
		Stage:          model.StagePreliminary,
		Round:          round,
		RequiredJudges: 1,
		Panel:          []string{"judge-1", "judge-2"},
		Teams: []model.TeamAssignment{
			{TeamID: "t1", Position: model.OpeningGovernment, Speakers: []string{"s1", "s2"}},
			{TeamID: "t2", Position: model.OpeningOpposition, Speakers: []string{"s3", "s4"}},
			{TeamID: "t3", Position: model.ClosingGovernment, Speakers: []string{"s5", "s6"}},
			{TeamID: "t4", Position: model.ClosingOpposition, Speakers: []string{"s7", "s8"}},
		},
	}
}

func juriedUnit(id string) model.Unit {
	return model.Unit{
		ID:             id,
		Kind:           model.KindJuried,
		Stage:          model.StageFinal,
		Round:          1,
		RequiredJudges: 3,
		Panel:          []string{"j1", "j2", "j3"},
		Competitor:     "perf-1",
	}
}

func speechEntries(unitID, judgeID string, values map[string]float64) []model.ScoreEntry {
	out := make([]model.ScoreEntry, 0, len(values))
	for speaker, v := range values {
		out = append(out, model.ScoreEntry{
			UnitID:        unitID,
			JudgeID:       judgeID,
			ParticipantID: speaker,
			Category:      model.CategorySpeech,
			Value:         v,
		})
	}
	return out
}

// resolveWith runs the real resolver so store tests exercise the same
// in-transaction evaluation path the service uses.
func resolveWith(ctx context.Context, resolver *consensus.Resolver) repository.ResolveFunc {
	return func(unit model.Unit, live []model.ScoreEntry, wasFinalized bool) (consensus.Resolution, error) {
		return resolver.Resolve(ctx, unit, live, wasFinalized)
	}
}

func TestSQLiteStore_SeedAndLoad(t *testing.T) {
	Convey("Given a fresh store", t, func() {
		ctx := context.Background()
		store := openStore(t, ctx)

		Convey("When seeding a debate unit", func() {
			So(store.SeedUnits(ctx, []model.Unit{debateUnit("unit-1", 1)}), ShouldBeNil)

			Convey("Then the unit loads with its full assignment", func() {
				unit, err := store.Unit(ctx, "unit-1")
				So(err, ShouldBeNil)
				So(unit.Kind, ShouldEqual, model.KindDebate)
				So(unit.Panel, ShouldResemble, []string{"judge-1", "judge-2"})
				So(len(unit.Teams), ShouldEqual, 4)
				So(unit.Teams[0].Speakers, ShouldResemble, []string{"s1", "s2"})
				So(unit.FinalizedAt, ShouldBeNil)
			})

			Convey("And re-seeding an open unit replaces it", func() {
				updated := debateUnit("unit-1", 1)
				updated.Panel = []string{"judge-9"}
				So(store.SeedUnits(ctx, []model.Unit{updated}), ShouldBeNil)

				unit, err := store.Unit(ctx, "unit-1")
				So(err, ShouldBeNil)
				So(unit.Panel, ShouldResemble, []string{"judge-9"})
			})
		})

		Convey("When seeding a juried unit", func() {
			So(store.SeedUnits(ctx, []model.Unit{juriedUnit("unit-j")}), ShouldBeNil)

			unit, err := store.Unit(ctx, "unit-j")
			So(err, ShouldBeNil)
			So(unit.Competitor, ShouldEqual, "perf-1")
			So(unit.RequiredJudges, ShouldEqual, 3)
		})

		Convey("When loading an unknown unit", func() {
			_, err := store.Unit(ctx, "ghost")
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})
}

func TestSQLiteStore_Submit(t *testing.T) {
	Convey("Given a store with a single-judge debate unit", t, func() {
		ctx := context.Background()
		store := openStore(t, ctx)
		resolver := consensus.New()
		So(store.SeedUnits(ctx, []model.Unit{debateUnit("unit-1", 1)}), ShouldBeNil)

		scores := map[string]float64{
			"s1": 75, "s2": 75, "s3": 70, "s4": 70,
			"s5": 80, "s6": 80, "s7": 65, "s8": 65,
		}

		Convey("When the judge submits", func() {
			outcome, err := store.Submit(ctx, "unit-1", "judge-1",
				speechEntries("unit-1", "judge-1", scores), resolveWith(ctx, resolver))
			So(err, ShouldBeNil)

			Convey("Then the unit finalizes in the same transaction", func() {
				So(outcome.Finalized, ShouldBeTrue)
				So(outcome.Refinalized, ShouldBeFalse)
				So(outcome.JudgesReported, ShouldEqual, 1)

				status, err := store.UnitStatus(ctx, "unit-1")
				So(err, ShouldBeNil)
				So(status.State, ShouldEqual, model.StateFinalized)
				So(status.FinalizedAt, ShouldNotBeNil)
				So(status.Placement, ShouldNotBeNil)
				So(status.Placement.Ranked[0].CompetitorID, ShouldEqual, "t3")
				So(status.Placement.Ranked[0].Points, ShouldEqual, 3)
			})

			Convey("And re-seeding the finalized unit fails", func() {
				err := store.SeedUnits(ctx, []model.Unit{debateUnit("unit-1", 1)})
				So(err, ShouldWrap, repository.ErrImmutable)
			})

			Convey("And a resubmission re-finalizes from the new entries", func() {
				updated := map[string]float64{
					"s1": 90, "s2": 90, "s3": 70, "s4": 70,
					"s5": 80, "s6": 80, "s7": 65, "s8": 65,
				}
				outcome, err := store.Submit(ctx, "unit-1", "judge-1",
					speechEntries("unit-1", "judge-1", updated), resolveWith(ctx, resolver))
				So(err, ShouldBeNil)
				So(outcome.Finalized, ShouldBeTrue)
				So(outcome.Refinalized, ShouldBeTrue)

				status, err := store.UnitStatus(ctx, "unit-1")
				So(err, ShouldBeNil)
				So(status.Placement.Ranked[0].CompetitorID, ShouldEqual, "t1")
				So(status.Placement.Ranked[0].Total, ShouldEqual, 180)
			})

			Convey("And the placement is fully replaced, never patched", func() {
				status, err := store.UnitStatus(ctx, "unit-1")
				So(err, ShouldBeNil)
				So(len(status.Placement.Ranked), ShouldEqual, 4)
			})
		})

		Convey("When a resolve callback fails", func() {
			boom := func(model.Unit, []model.ScoreEntry, bool) (consensus.Resolution, error) {
				return consensus.Resolution{}, consensus.ErrInvariant
			}
			_, err := store.Submit(ctx, "unit-1", "judge-1",
				speechEntries("unit-1", "judge-1", scores), boom)
			So(err, ShouldWrap, consensus.ErrInvariant)

			Convey("Then nothing was written", func() {
				status, err := store.UnitStatus(ctx, "unit-1")
				So(err, ShouldBeNil)
				So(status.State, ShouldEqual, model.StateOpen)
				So(status.JudgesReported, ShouldEqual, 0)
			})
		})

		Convey("When submitting for an unknown unit", func() {
			_, err := store.Submit(ctx, "ghost", "judge-1", nil, resolveWith(ctx, resolver))
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})

	Convey("Given a store with a three-judge juried unit", t, func() {
		ctx := context.Background()
		store := openStore(t, ctx)
		resolver := consensus.New()
		So(store.SeedUnits(ctx, []model.Unit{juriedUnit("unit-j")}), ShouldBeNil)

		rubric := func(judge string, content float64) []model.ScoreEntry {
			return []model.ScoreEntry{
				{UnitID: "unit-j", JudgeID: judge, ParticipantID: "perf-1", Category: "content", Value: content},
			}
		}

		Convey("When judges report one by one", func() {
			outcome, err := store.Submit(ctx, "unit-j", "j1", rubric("j1", 70), resolveWith(ctx, resolver))
			So(err, ShouldBeNil)
			So(outcome.Finalized, ShouldBeFalse)
			So(outcome.JudgesReported, ShouldEqual, 1)

			outcome, err = store.Submit(ctx, "unit-j", "j2", rubric("j2", 72), resolveWith(ctx, resolver))
			So(err, ShouldBeNil)
			So(outcome.Finalized, ShouldBeFalse)
			So(outcome.JudgesReported, ShouldEqual, 2)

			Convey("Then the status is observable mid-flight", func() {
				status, err := store.UnitStatus(ctx, "unit-j")
				So(err, ShouldBeNil)
				So(status.State, ShouldEqual, model.StateOpen)
				So(status.JudgesReported, ShouldEqual, 2)
				So(status.JudgesRequired, ShouldEqual, 3)
				So(status.Placement, ShouldBeNil)
			})

			Convey("And the third report finalizes on the panel mean", func() {
				outcome, err := store.Submit(ctx, "unit-j", "j3", rubric("j3", 74), resolveWith(ctx, resolver))
				So(err, ShouldBeNil)
				So(outcome.Finalized, ShouldBeTrue)

				status, err := store.UnitStatus(ctx, "unit-j")
				So(err, ShouldBeNil)
				So(status.Placement.Ranked[0].Total, ShouldEqual, 72.0)
			})

			Convey("And a judge replacing their own entries does not double count", func() {
				outcome, err := store.Submit(ctx, "unit-j", "j2", rubric("j2", 80), resolveWith(ctx, resolver))
				So(err, ShouldBeNil)
				So(outcome.JudgesReported, ShouldEqual, 2)
			})
		})
	})
}

func TestSQLiteStore_Visibility(t *testing.T) {
	Convey("Given a store with finalized units in two rounds", t, func() {
		ctx := context.Background()
		store := openStore(t, ctx)
		resolver := consensus.New()

		So(store.SeedUnits(ctx, []model.Unit{debateUnit("unit-r1", 1), debateUnit("unit-r2", 2)}), ShouldBeNil)

		scores := map[string]float64{
			"s1": 75, "s2": 75, "s3": 70, "s4": 70,
			"s5": 80, "s6": 80, "s7": 65, "s8": 65,
		}
		for _, id := range []string{"unit-r1", "unit-r2"} {
			_, err := store.Submit(ctx, id, "judge-1", speechEntries(id, "judge-1", scores), resolveWith(ctx, resolver))
			So(err, ShouldBeNil)
		}

		Convey("When no round is frozen", func() {
			units, err := store.FinalizedUnits(ctx, model.StagePreliminary, false)
			So(err, ShouldBeNil)
			So(len(units), ShouldEqual, 2)
			So(len(units[0].Ranked), ShouldEqual, 4)
		})

		Convey("When round 2 is frozen", func() {
			vis, err := store.SetFrozen(ctx, model.StagePreliminary, 2, true, "admin-1")
			So(err, ShouldBeNil)
			So(vis.Frozen, ShouldBeTrue)
			So(vis.FrozenBy, ShouldEqual, "admin-1")
			So(vis.FrozenAt, ShouldNotBeNil)

			Convey("Then the public query excludes it inside SQL", func() {
				units, err := store.FinalizedUnits(ctx, model.StagePreliminary, false)
				So(err, ShouldBeNil)
				So(len(units), ShouldEqual, 1)
				So(units[0].UnitID, ShouldEqual, "unit-r1")
			})

			Convey("And includeFrozen returns everything", func() {
				units, err := store.FinalizedUnits(ctx, model.StagePreliminary, true)
				So(err, ShouldBeNil)
				So(len(units), ShouldEqual, 2)
			})

			Convey("And the frozen round count reflects it", func() {
				n, err := store.FrozenRoundCount(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("And unfreezing restores the public view", func() {
				vis, err := store.SetFrozen(ctx, model.StagePreliminary, 2, false, "admin-1")
				So(err, ShouldBeNil)
				So(vis.Frozen, ShouldBeFalse)

				units, err := store.FinalizedUnits(ctx, model.StagePreliminary, false)
				So(err, ShouldBeNil)
				So(len(units), ShouldEqual, 2)
			})
		})

		Convey("When asking visibility for a round never frozen", func() {
			vis, err := store.Visibility(ctx, model.StagePreliminary, 9)
			So(err, ShouldBeNil)
			So(vis.Frozen, ShouldBeFalse)
			So(vis.FrozenAt, ShouldBeNil)
		})

		Convey("When counting units", func() {
			open, finalized, err := store.UnitCounts(ctx)
			So(err, ShouldBeNil)
			So(open, ShouldEqual, 0)
			So(finalized, ShouldEqual, 2)
		})
	})
}
