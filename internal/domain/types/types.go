// Package types contains the read shapes returned to API callers.
package types

import (
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// SubmitAck acknowledges a judge's score submission.
type SubmitAck struct {
	Accepted       bool     `json:"accepted"`
	Duplicate      bool     `json:"duplicate"`
	Finalized      bool     `json:"finalized"`
	Refinalized    bool     `json:"refinalized,omitempty"`
	JudgesReported int      `json:"judges_reported"`
	JudgesRequired int      `json:"judges_required"`
	Warnings       []string `json:"warnings,omitempty"`
}

// UnitResult is the observable resolution state of a scoring unit.
type UnitResult struct {
	UnitID         string           `json:"unit_id"`
	Status         string           `json:"status"` // "awaiting judges" or "finalized"
	JudgesReported int              `json:"judges_reported"`
	JudgesRequired int              `json:"judges_required"`
	Placement      *model.Placement `json:"placement,omitempty"`
	FinalizedAt    *time.Time       `json:"finalized_at,omitempty"`
}

// Unit result status strings.
const (
	StatusAwaitingJudges = "awaiting judges"
	StatusFinalized      = "finalized"
)

// StandingRow is one competitor's cumulative standing within a stage.
type StandingRow struct {
	Rank            int         `json:"rank"`
	CompetitorID    string      `json:"competitor_id"`
	Points          int         `json:"points"`
	Total           float64     `json:"total"`
	Played          int         `json:"played"`
	PlacementCounts map[int]int `json:"placement_counts,omitempty"`
	AvgScore        float64     `json:"avg_score"`
	AvgPlacement    float64     `json:"avg_placement,omitempty"`
	Advancing       bool        `json:"advancing"`
}
