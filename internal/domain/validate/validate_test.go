package validate_test

import (
	"context"
	"testing"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/validate"
	"github.com/okian/tally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func debateUnit() model.Unit {
	return model.Unit{
		ID:             "unit-1",
		Kind:           model.KindDebate,
		Stage:          model.StagePreliminary,
		Round:          1,
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

func juriedUnit() model.Unit {
	return model.Unit{
		ID:             "unit-j",
		Kind:           model.KindJuried,
		Stage:          model.StageFinal,
		Round:          1,
		RequiredJudges: 3,
		Panel:          []string{"j1", "j2", "j3"},
		Competitor:     "perf-1",
	}
}

func fullDebateSubmission() validate.Submission {
	return validate.Submission{
		UnitID:  "unit-1",
		JudgeID: "judge-1",
		Entries: []validate.Entry{
			{ParticipantID: "s1", Value: 70}, {ParticipantID: "s2", Value: 71},
			{ParticipantID: "s3", Value: 72}, {ParticipantID: "s4", Value: 73},
			{ParticipantID: "s5", Value: 74}, {ParticipantID: "s6", Value: 75},
			{ParticipantID: "s7", Value: 76}, {ParticipantID: "s8", Value: 77},
		},
	}
}

func newValidator() *validate.Validator {
	return validate.New(
		validate.WithRubric(map[string]validate.Bounds{
			"content":  {Min: 1, Max: 100},
			"style":    {Min: 1, Max: 100},
			"strategy": {Min: 1, Max: 100},
		}),
		validate.WithSpeakerBounds(validate.Bounds{Min: 50, Max: 100}),
	)
}

func TestValidator_CheckDebate(t *testing.T) {
	Convey("Given a validator and a full debate room", t, func() {
		ctx := context.Background()
		va := newValidator()
		unit := debateUnit()

		Convey("When checking a complete submission", func() {
			res, err := va.Check(ctx, unit, fullDebateSubmission())
			So(err, ShouldBeNil)

			Convey("Then every speaker gets one speech entry", func() {
				So(len(res.Entries), ShouldEqual, 8)
				for _, e := range res.Entries {
					So(e.Category, ShouldEqual, model.CategorySpeech)
					So(e.UnitID, ShouldEqual, "unit-1")
					So(e.JudgeID, ShouldEqual, "judge-1")
				}
				So(res.Warnings, ShouldBeEmpty)
			})

			Convey("And the entries come out sorted", func() {
				for i := 1; i < len(res.Entries); i++ {
					So(res.Entries[i-1].ParticipantID, ShouldBeLessThan, res.Entries[i].ParticipantID)
				}
			})
		})

		Convey("When the judge is not on the panel", func() {
			sub := fullDebateSubmission()
			sub.JudgeID = "intruder"
			_, err := va.Check(ctx, unit, sub)
			So(err, ShouldWrap, validate.ErrNotAssigned)
		})

		Convey("When the payload names a different unit", func() {
			sub := fullDebateSubmission()
			sub.UnitID = "unit-2"
			_, err := va.Check(ctx, unit, sub)

			ve, ok := validate.AsError(err)
			So(ok, ShouldBeTrue)
			So(ve.Field, ShouldEqual, "unit_id")
		})

		Convey("When a speaker score is out of range", func() {
			sub := fullDebateSubmission()
			sub.Entries[0].Value = 101
			_, err := va.Check(ctx, unit, sub)

			ve, ok := validate.AsError(err)
			So(ok, ShouldBeTrue)
			So(ve.Field, ShouldEqual, "entries")
		})

		Convey("When a scored speaker is not assigned to the room", func() {
			sub := fullDebateSubmission()
			sub.Entries[0].ParticipantID = "ghost"
			_, err := va.Check(ctx, unit, sub)
			So(err, ShouldWrap, validate.ErrNotAssigned)
		})

		Convey("When a team is missing a speaker score", func() {
			sub := fullDebateSubmission()
			sub.Entries = sub.Entries[:7]
			_, err := va.Check(ctx, unit, sub)
			So(err, ShouldNotBeNil)
		})

		Convey("When duplicate entries exist for one speaker", func() {
			sub := fullDebateSubmission()
			sub.Entries[1] = validate.Entry{ParticipantID: "s1", Value: 90}
			sub.Entries = append(sub.Entries, validate.Entry{ParticipantID: "s2", Value: 71})
			sub.Entries[0].Value = 80

			res, err := va.Check(ctx, unit, sub)
			So(err, ShouldBeNil)

			Convey("Then duplicates fold into the average with a warning", func() {
				var s1 model.ScoreEntry
				for _, e := range res.Entries {
					if e.ParticipantID == "s1" {
						s1 = e
					}
				}
				So(s1.Value, ShouldEqual, 85)
				So(len(res.Warnings), ShouldBeGreaterThanOrEqualTo, 1)
				So(res.Warnings[0], ShouldContainSubstring, "folded")
			})
		})

		Convey("When the room is incomplete", func() {
			unit.Teams = unit.Teams[:3]
			sub := fullDebateSubmission()
			sub.Entries = sub.Entries[:6]

			res, err := va.Check(ctx, unit, sub)
			So(err, ShouldBeNil)

			Convey("Then the submission passes with a warning", func() {
				So(len(res.Entries), ShouldEqual, 6)
				So(res.Warnings, ShouldContain, "incomplete room: 3 of 4 teams present")
			})
		})

		Convey("When an explicit team ranking is given", func() {
			sub := fullDebateSubmission()

			Convey("And it is a valid permutation", func() {
				sub.TeamRanks = map[string]int{"t1": 2, "t2": 1, "t3": 4, "t4": 3}
				_, err := va.Check(ctx, unit, sub)
				So(err, ShouldBeNil)
			})

			Convey("And a rank repeats", func() {
				sub.TeamRanks = map[string]int{"t1": 1, "t2": 1, "t3": 3, "t4": 4}
				_, err := va.Check(ctx, unit, sub)

				ve, ok := validate.AsError(err)
				So(ok, ShouldBeTrue)
				So(ve.Field, ShouldEqual, "team_ranks")
			})

			Convey("And a rank is out of range", func() {
				sub.TeamRanks = map[string]int{"t1": 1, "t2": 2, "t3": 3, "t4": 5}
				_, err := va.Check(ctx, unit, sub)
				So(err, ShouldNotBeNil)
			})

			Convey("And an unknown team is ranked", func() {
				sub.TeamRanks = map[string]int{"t1": 1, "t2": 2, "t3": 3, "tx": 4}
				_, err := va.Check(ctx, unit, sub)
				So(err, ShouldWrap, validate.ErrNotAssigned)
			})

			Convey("And a team is missing from the ranking", func() {
				sub.TeamRanks = map[string]int{"t1": 1, "t2": 2, "t3": 3}
				_, err := va.Check(ctx, unit, sub)
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the payload is structurally empty", func() {
			_, err := va.Check(ctx, unit, validate.Submission{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValidator_CheckJuried(t *testing.T) {
	Convey("Given a validator and a juried unit", t, func() {
		ctx := context.Background()
		va := newValidator()
		unit := juriedUnit()

		fullSub := func() validate.Submission {
			return validate.Submission{
				UnitID:  "unit-j",
				JudgeID: "j1",
				Entries: []validate.Entry{
					{ParticipantID: "perf-1", Category: "content", Value: 72},
					{ParticipantID: "perf-1", Category: "style", Value: 80},
					{ParticipantID: "perf-1", Category: "strategy", Value: 65},
				},
			}
		}

		Convey("When checking a complete rubric submission", func() {
			res, err := va.Check(ctx, unit, fullSub())
			So(err, ShouldBeNil)
			So(len(res.Entries), ShouldEqual, 3)
		})

		Convey("When a rubric category is missing", func() {
			sub := fullSub()
			sub.Entries = sub.Entries[:2]
			_, err := va.Check(ctx, unit, sub)

			ve, ok := validate.AsError(err)
			So(ok, ShouldBeTrue)
			So(ve.Reason, ShouldContainSubstring, "strategy")
		})

		Convey("When an unknown category appears", func() {
			sub := fullSub()
			sub.Entries[0].Category = "stage_presence"
			_, err := va.Check(ctx, unit, sub)
			So(err, ShouldNotBeNil)
		})

		Convey("When a category score is out of bounds", func() {
			sub := fullSub()
			sub.Entries[1].Value = 0
			_, err := va.Check(ctx, unit, sub)
			So(err, ShouldNotBeNil)
		})

		Convey("When the participant is not the unit's competitor", func() {
			sub := fullSub()
			sub.Entries[0].ParticipantID = "perf-2"
			_, err := va.Check(ctx, unit, sub)
			So(err, ShouldWrap, validate.ErrNotAssigned)
		})
	})
}
