// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Loading layers defaults, an optional YAML file, then environment.
// - External errors are wrapped via this package's sentinel kinds.
package config

import "context"

// Bound is an inclusive score range for one rubric category.
type Bound struct {
	Min float64 `koanf:"min"`
	Max float64 `koanf:"max"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file backing the score store.
	DBPath string `koanf:"db_path"`

	// FeedSize bounds the in-memory unit-change feed.
	FeedSize int `koanf:"feed_size"`

	// ReplaySize bounds the resubmission replay cache.
	ReplaySize int `koanf:"replay_size"`

	// MaxStandingsLimit caps GET /standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// SpeakerMin and SpeakerMax bound debate speaker scores.
	SpeakerMin float64 `koanf:"speaker_min"`
	SpeakerMax float64 `koanf:"speaker_max"`

	// Rubric fixes the juried categories and their bounds.
	Rubric map[string]Bound `koanf:"rubric"`

	// Cutoffs maps a stage name to its qualification cutoff (top-K
	// advancing). Missing stages get no advancing flag.
	Cutoffs map[string]int `koanf:"cutoffs"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		DBPath:            "tally.db",
		FeedSize:          4096,
		ReplaySize:        50_000,
		MaxStandingsLimit: 500,
		SpeakerMin:        0,
		SpeakerMax:        100,
		Rubric: map[string]Bound{
			"content":  {Min: 1, Max: 100},
			"style":    {Min: 1, Max: 100},
			"strategy": {Min: 1, Max: 100},
		},
		Cutoffs: map[string]int{
			"preliminary": 8,
			"semifinal":   4,
			"final":       1,
		},
	}
}
