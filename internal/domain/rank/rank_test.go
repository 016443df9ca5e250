package rank_test

import (
	"testing"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/rank"
	. "github.com/smartystreets/goconvey/convey"
)

func debateUnit() model.Unit {
	return model.Unit{
		ID:             "unit-1",
		Kind:           model.KindDebate,
		Stage:          model.StagePreliminary,
		Round:          1,
		RequiredJudges: 1,
		Panel:          []string{"judge-1"},
		Teams: []model.TeamAssignment{
			{TeamID: "t1", Position: model.OpeningGovernment, Speakers: []string{"s1"}},
			{TeamID: "t2", Position: model.OpeningOpposition, Speakers: []string{"s2"}},
			{TeamID: "t3", Position: model.ClosingGovernment, Speakers: []string{"s3"}},
			{TeamID: "t4", Position: model.ClosingOpposition, Speakers: []string{"s4"}},
		},
	}
}

func speech(speaker string, value float64) rank.Score {
	return rank.Score{ParticipantID: speaker, Category: model.CategorySpeech, Value: value}
}

func TestFor(t *testing.T) {
	Convey("Given the ranker registry", t, func() {
		Convey("When asking for the debate ranker", func() {
			r, err := rank.For(model.KindDebate)
			So(err, ShouldBeNil)
			So(r, ShouldHaveSameTypeAs, rank.DebateRanker{})
		})

		Convey("When asking for the juried ranker", func() {
			r, err := rank.For(model.KindJuried)
			So(err, ShouldBeNil)
			So(r, ShouldHaveSameTypeAs, rank.JuriedRanker{})
		})

		Convey("When asking for an unknown kind", func() {
			_, err := rank.For(model.UnitKind("chess"))
			So(err, ShouldEqual, rank.ErrUnknownKind)
		})
	})
}

func TestDebateRanker(t *testing.T) {
	Convey("Given a full debate room", t, func() {
		unit := debateUnit()
		ranker := rank.DebateRanker{}

		Convey("When team totals are 150, 140, 160, 130 in position order", func() {
			scores := []rank.Score{
				speech("s1", 150),
				speech("s2", 140),
				speech("s3", 160),
				speech("s4", 130),
			}
			placement, err := ranker.Rank(unit, scores)
			So(err, ShouldBeNil)

			Convey("Then teams are ordered by total with points 3, 2, 1, 0", func() {
				So(len(placement.Ranked), ShouldEqual, 4)
				So(placement.Ranked[0].CompetitorID, ShouldEqual, "t3")
				So(placement.Ranked[0].Points, ShouldEqual, 3)
				So(placement.Ranked[1].CompetitorID, ShouldEqual, "t1")
				So(placement.Ranked[1].Points, ShouldEqual, 2)
				So(placement.Ranked[2].CompetitorID, ShouldEqual, "t2")
				So(placement.Ranked[2].Points, ShouldEqual, 1)
				So(placement.Ranked[3].CompetitorID, ShouldEqual, "t4")
				So(placement.Ranked[3].Points, ShouldEqual, 0)
			})

			Convey("And ranks are dense from one", func() {
				for i, row := range placement.Ranked {
					So(row.Rank, ShouldEqual, i+1)
				}
			})
		})

		Convey("When two teams tie on total", func() {
			scores := []rank.Score{
				speech("s1", 150),
				speech("s2", 150),
				speech("s3", 140),
				speech("s4", 130),
			}
			placement, err := ranker.Rank(unit, scores)
			So(err, ShouldBeNil)

			Convey("Then position order breaks the tie", func() {
				So(placement.Ranked[0].CompetitorID, ShouldEqual, "t1")
				So(placement.Ranked[1].CompetitorID, ShouldEqual, "t2")
			})
		})

		Convey("When teams have multiple speakers", func() {
			unit.Teams = unit.Teams[:2]
			unit.Teams[0].Speakers = []string{"s1", "s1b"}
			unit.Teams[1].Speakers = []string{"s2", "s2b"}
			scores := []rank.Score{
				speech("s1", 70),
				speech("s1b", 75),
				speech("s2", 80),
				speech("s2b", 60),
			}
			placement, err := ranker.Rank(unit, scores)
			So(err, ShouldBeNil)

			Convey("Then team totals sum the speakers", func() {
				So(placement.Ranked[0].CompetitorID, ShouldEqual, "t1")
				So(placement.Ranked[0].Total, ShouldEqual, 145)
				So(placement.Ranked[1].Total, ShouldEqual, 140)
			})
		})

		Convey("When the room is incomplete", func() {
			unit.Teams = unit.Teams[:3]
			scores := []rank.Score{
				speech("s1", 150),
				speech("s2", 160),
				speech("s3", 140),
			}
			placement, err := ranker.Rank(unit, scores)
			So(err, ShouldBeNil)

			Convey("Then the point table is truncated", func() {
				So(len(placement.Ranked), ShouldEqual, 3)
				So(placement.Ranked[0].Points, ShouldEqual, 3)
				So(placement.Ranked[1].Points, ShouldEqual, 2)
				So(placement.Ranked[2].Points, ShouldEqual, 1)
			})
		})

		Convey("When a score references an unassigned speaker", func() {
			scores := []rank.Score{speech("ghost", 150)}
			_, err := ranker.Rank(unit, scores)
			So(err, ShouldWrap, rank.ErrUnknownSpeaker)
		})

		Convey("When there are no scores", func() {
			_, err := ranker.Rank(unit, nil)
			So(err, ShouldEqual, rank.ErrNoScores)
		})

		Convey("When ranking twice with identical input", func() {
			scores := []rank.Score{
				speech("s1", 150),
				speech("s2", 150),
				speech("s3", 150),
				speech("s4", 130),
			}
			first, err1 := ranker.Rank(unit, scores)
			second, err2 := ranker.Rank(unit, scores)

			Convey("Then the output is identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})
	})
}

func TestJuriedRanker(t *testing.T) {
	Convey("Given a juried unit", t, func() {
		unit := model.Unit{
			ID:             "unit-j",
			Kind:           model.KindJuried,
			Stage:          model.StageFinal,
			Round:          1,
			RequiredJudges: 3,
			Panel:          []string{"j1", "j2", "j3"},
			Competitor:     "perf-1",
		}
		ranker := rank.JuriedRanker{}

		Convey("When ranking consolidated rubric scores", func() {
			scores := []rank.Score{
				{ParticipantID: "perf-1", Category: "content", Value: 72},
				{ParticipantID: "perf-1", Category: "style", Value: 80},
				{ParticipantID: "perf-1", Category: "strategy", Value: 65},
			}
			placement, err := ranker.Rank(unit, scores)
			So(err, ShouldBeNil)

			Convey("Then there is a single row with the rubric sum", func() {
				So(len(placement.Ranked), ShouldEqual, 1)
				So(placement.Ranked[0].CompetitorID, ShouldEqual, "perf-1")
				So(placement.Ranked[0].Rank, ShouldEqual, 1)
				So(placement.Ranked[0].Points, ShouldEqual, 0)
				So(placement.Ranked[0].Total, ShouldEqual, 217)
			})
		})

		Convey("When there are no scores", func() {
			_, err := ranker.Rank(unit, nil)
			So(err, ShouldEqual, rank.ErrNoScores)
		})
	})
}
