// Package validate enforces the submission input contract before anything is
// persisted: score ranges, assignment membership, team completeness, ranking
// permutations and duplicate folding.
package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Bounds is an inclusive numeric range for a score value.
type Bounds struct {
	Min float64 `koanf:"min"`
	Max float64 `koanf:"max"`
}

// Contains reports whether v lies within the bounds.
func (b Bounds) Contains(v float64) bool { return v >= b.Min && v <= b.Max }

// Entry is one scored value within a submission payload.
type Entry struct {
	ParticipantID string  `json:"participant_id" validate:"required"`
	Category      string  `json:"category,omitempty"`
	Value         float64 `json:"value"`
}

// Submission is the raw payload a judge submits for one unit.
type Submission struct {
	UnitID    string         `json:"unit_id" validate:"required"`
	JudgeID   string         `json:"judge_id" validate:"required"`
	Entries   []Entry        `json:"entries" validate:"required,min=1,dive"`
	TeamRanks map[string]int `json:"team_ranks,omitempty"`
}

// Result is the validated, folded entry set plus non-fatal warnings.
type Result struct {
	Entries  []model.ScoreEntry
	Warnings []string
}

// Default bounds for debate speaker scores.
var defaultSpeakerBounds = Bounds{Min: 0, Max: 100}

// Validator checks submissions against a unit's assignment snapshot. It has
// no side effects beyond audit logging.
type Validator struct {
	v       *validator.Validate
	rubric  map[string]Bounds
	speaker Bounds
	log     logger.Logger
}

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithRubric sets the fixed juried rubric categories and their bounds.
func WithRubric(rubric map[string]Bounds) Option {
	return func(va *Validator) {
		if len(rubric) > 0 {
			va.rubric = rubric
		}
	}
}

// WithSpeakerBounds sets the allowed debate speaker score range.
func WithSpeakerBounds(b Bounds) Option {
	return func(va *Validator) {
		if b.Max > b.Min {
			va.speaker = b
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(va *Validator) {
		if log != nil {
			va.log = log
		}
	}
}

// New constructs a Validator with configuration options.
func New(opts ...Option) *Validator {
	va := &Validator{
		v:       validator.New(validator.WithRequiredStructEnabled()),
		rubric:  map[string]Bounds{},
		speaker: defaultSpeakerBounds,
	}
	for _, opt := range opts {
		opt(va)
	}
	if va.log == nil {
		va.log = logger.Get().Named("validate")
	}
	return va
}

// Check validates sub against the unit's assignment snapshot and returns the
// folded entry set. It is a pure function over its inputs; rejected
// submissions never reach the store.
func (va *Validator) Check(ctx context.Context, unit model.Unit, sub Submission) (Result, error) {
	if err := va.v.Struct(sub); err != nil {
		return Result{}, shapeError(err)
	}
	if sub.UnitID != unit.ID {
		return Result{}, NewError("unit_id", "payload does not match unit")
	}
	if !unit.HasJudge(sub.JudgeID) {
		return Result{}, fmt.Errorf("judge %s: %w", sub.JudgeID, ErrNotAssigned)
	}

	folded, warnings := va.fold(ctx, sub)

	switch unit.Kind {
	case model.KindDebate:
		w, err := va.checkDebate(unit, sub, folded)
		if err != nil {
			return Result{}, err
		}
		warnings = append(warnings, w...)
	case model.KindJuried:
		if err := va.checkJuried(unit, folded); err != nil {
			return Result{}, err
		}
	default:
		return Result{}, NewError("unit", fmt.Sprintf("unknown unit kind %q", unit.Kind))
	}

	entries := make([]model.ScoreEntry, 0, len(folded))
	for _, f := range folded {
		entries = append(entries, model.ScoreEntry{
			UnitID:        unit.ID,
			JudgeID:       sub.JudgeID,
			ParticipantID: f.ParticipantID,
			Category:      f.Category,
			Value:         f.Value,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ParticipantID != entries[j].ParticipantID {
			return entries[i].ParticipantID < entries[j].ParticipantID
		}
		return entries[i].Category < entries[j].Category
	})
	return Result{Entries: entries, Warnings: warnings}, nil
}

// fold collapses duplicate (participant, category) entries from the same
// judge into a single averaged value. Folding is logged for audit, never
// silently discarded.
func (va *Validator) fold(ctx context.Context, sub Submission) ([]Entry, []string) {
	type acc struct {
		sum   float64
		count int
		first int
	}
	order := make([]string, 0, len(sub.Entries))
	byKey := make(map[string]*acc, len(sub.Entries))
	cats := make(map[string]Entry, len(sub.Entries))

	for i, e := range sub.Entries {
		cat := e.Category
		if cat == "" {
			cat = model.CategorySpeech
		}
		key := e.ParticipantID + "\x00" + cat
		a, ok := byKey[key]
		if !ok {
			byKey[key] = &acc{sum: e.Value, count: 1, first: i}
			order = append(order, key)
			cats[key] = Entry{ParticipantID: e.ParticipantID, Category: cat}
			continue
		}
		a.sum += e.Value
		a.count++
	}

	var warnings []string
	foldedTotal := 0
	out := make([]Entry, 0, len(order))
	for _, key := range order {
		a := byKey[key]
		e := cats[key]
		e.Value = a.sum / float64(a.count)
		if a.count > 1 {
			foldedTotal += a.count - 1
			warnings = append(warnings, fmt.Sprintf(
				"folded %d entries for participant %s into average %.2f", a.count, e.ParticipantID, e.Value))
			va.log.Warn(ctx, "duplicate participant entries folded",
				logger.String("unit", sub.UnitID),
				logger.String("judge", sub.JudgeID),
				logger.String("participant", e.ParticipantID),
				logger.Int("entries", a.count),
				logger.Float64("average", e.Value),
			)
		}
		out = append(out, e)
	}
	if foldedTotal > 0 {
		metrics.RecordEntriesFolded(foldedTotal)
	}
	return out, warnings
}

func (va *Validator) checkDebate(unit model.Unit, sub Submission, folded []Entry) ([]string, error) {
	perTeam := make(map[string]int, len(unit.Teams))
	for _, e := range folded {
		if e.Category != model.CategorySpeech {
			return nil, NewError("entries", fmt.Sprintf("unexpected category %q for debate unit", e.Category))
		}
		if !va.speaker.Contains(e.Value) {
			return nil, NewError("entries",
				fmt.Sprintf("speaker score %.2f for %s out of range [%g,%g]", e.Value, e.ParticipantID, va.speaker.Min, va.speaker.Max))
		}
		team, ok := unit.TeamOf(e.ParticipantID)
		if !ok {
			return nil, fmt.Errorf("participant %s: %w", e.ParticipantID, ErrNotAssigned)
		}
		perTeam[team.TeamID]++
	}
	for _, t := range unit.Teams {
		if got := perTeam[t.TeamID]; got != len(t.Speakers) {
			return nil, NewError("entries",
				fmt.Sprintf("team %s has %d speaker scores, want %d", t.TeamID, got, len(t.Speakers)))
		}
	}

	var warnings []string
	if len(unit.Teams) < 4 {
		// Incomplete rooms are scoreable; surface the anomaly without failing.
		warnings = append(warnings, fmt.Sprintf("incomplete room: %d of 4 teams present", len(unit.Teams)))
	}

	if len(sub.TeamRanks) > 0 {
		if err := checkRankPermutation(unit, sub.TeamRanks); err != nil {
			return nil, err
		}
	}
	return warnings, nil
}

// checkRankPermutation requires an explicit team ranking to be a permutation
// of {1..k} over exactly the teams present in the room.
func checkRankPermutation(unit model.Unit, ranks map[string]int) error {
	k := len(unit.Teams)
	if len(ranks) != k {
		return NewError("team_ranks", fmt.Sprintf("got %d ranked teams, want %d", len(ranks), k))
	}
	seen := make(map[int]bool, k)
	for teamID, r := range ranks {
		assigned := false
		for _, t := range unit.Teams {
			if t.TeamID == teamID {
				assigned = true
				break
			}
		}
		if !assigned {
			return fmt.Errorf("team %s: %w", teamID, ErrNotAssigned)
		}
		if r < 1 || r > k {
			return NewError("team_ranks", fmt.Sprintf("rank %d for team %s outside 1..%d", r, teamID, k))
		}
		if seen[r] {
			return NewError("team_ranks", fmt.Sprintf("rank %d assigned twice", r))
		}
		seen[r] = true
	}
	return nil
}

func (va *Validator) checkJuried(unit model.Unit, folded []Entry) error {
	if len(va.rubric) == 0 {
		return NewError("entries", "no rubric configured for juried units")
	}
	covered := make(map[string]bool, len(va.rubric))
	for _, e := range folded {
		if e.ParticipantID != unit.Competitor {
			return fmt.Errorf("participant %s: %w", e.ParticipantID, ErrNotAssigned)
		}
		b, ok := va.rubric[e.Category]
		if !ok {
			return NewError("entries", fmt.Sprintf("unknown rubric category %q", e.Category))
		}
		if !b.Contains(e.Value) {
			return NewError("entries",
				fmt.Sprintf("category %s score %.2f out of range [%g,%g]", e.Category, e.Value, b.Min, b.Max))
		}
		covered[e.Category] = true
	}
	if len(covered) != len(va.rubric) {
		missing := make([]string, 0, len(va.rubric))
		for cat := range va.rubric {
			if !covered[cat] {
				missing = append(missing, cat)
			}
		}
		sort.Strings(missing)
		return NewError("entries", "missing rubric categories: "+strings.Join(missing, ", "))
	}
	return nil
}

// shapeError converts validator/v10 struct errors into the package error type.
func shapeError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		field := strings.ToLower(fe.Field())
		return NewError(field, fmt.Sprintf("failed %q constraint", fe.Tag()))
	}
	return NewError("payload", err.Error())
}
