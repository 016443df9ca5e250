package sim

import "time"

// Config holds configuration for a simulated tournament run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Teams      int           // Number of teams (rounded up to a multiple of 4)
	Rounds     int           // Number of preliminary rounds
	Juried     int           // Number of juried units to mix in
	PanelSize  int           // Judges per unit, 1 or 3
	Workers    int           // Number of concurrent submission workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for the generated tournament
	LogFile    string        // Log file for simulation output
	Verbose    bool          // Enable verbose logging
}

// Stats holds simulation statistics.
type Stats struct {
	UnitsSeeded        int
	SubmissionsPlanned int
	SubmissionsSent    int
	SubmissionsOK      int
	SubmissionsDup     int
	SubmissionsFailed  int
	UnitsFinalized     int
	UnitsMismatched    int
	StandingsRows      int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

// unitPayload mirrors the POST /units request schema.
type unitPayload struct {
	UnitID         string        `json:"unit_id"`
	Kind           string        `json:"kind"`
	Stage          string        `json:"stage"`
	Round          int           `json:"round"`
	RequiredJudges int           `json:"required_judges"`
	Panel          []string      `json:"panel"`
	Teams          []teamPayload `json:"teams,omitempty"`
	Competitor     string        `json:"competitor,omitempty"`
}

type teamPayload struct {
	TeamID   string   `json:"team_id"`
	Position string   `json:"position"`
	Speakers []string `json:"speakers"`
}

// scorePayload mirrors the POST /scores request schema.
type scorePayload struct {
	UnitID  string         `json:"unit_id"`
	JudgeID string         `json:"judge_id"`
	Entries []entryPayload `json:"entries"`
}

type entryPayload struct {
	ParticipantID string  `json:"participant_id"`
	Category      string  `json:"category,omitempty"`
	Value         float64 `json:"value"`
}

// ackResponse mirrors the submission acknowledgement.
type ackResponse struct {
	Accepted       bool `json:"accepted"`
	Duplicate      bool `json:"duplicate"`
	Finalized      bool `json:"finalized"`
	JudgesReported int  `json:"judges_reported"`
	JudgesRequired int  `json:"judges_required"`
}

// resultResponse mirrors GET /results/{unit_id}.
type resultResponse struct {
	UnitID         string `json:"unit_id"`
	Status         string `json:"status"`
	JudgesReported int    `json:"judges_reported"`
	JudgesRequired int    `json:"judges_required"`
	Placement      *struct {
		UnitID string `json:"unit_id"`
		Ranked []struct {
			CompetitorID string  `json:"competitor_id"`
			Rank         int     `json:"rank"`
			Points       int     `json:"points"`
			Total        float64 `json:"total"`
		} `json:"ranked"`
	} `json:"placement,omitempty"`
}

// standingRow mirrors one row of GET /standings.
type standingRow struct {
	Rank         int     `json:"rank"`
	CompetitorID string  `json:"competitor_id"`
	Points       int     `json:"points"`
	Total        float64 `json:"total"`
	Played       int     `json:"played"`
	AvgScore     float64 `json:"avg_score"`
	Advancing    bool    `json:"advancing"`
}
