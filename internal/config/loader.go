package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if TALLY_CONFIG is set
//  3. env (prefix TALLY_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("TALLY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: TALLY_ADDR, TALLY_DB_PATH, ...
	// Underscores are preserved so keys match the koanf tags.
	envProvider := env.Provider("TALLY_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "tally_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.SpeakerMax <= c.SpeakerMin:
		return fmt.Errorf("%w: speaker bounds inverted", ErrInvalidConfig)
	}
	for cat, b := range c.Rubric {
		if b.Max <= b.Min {
			return fmt.Errorf("%w: rubric category %q bounds inverted", ErrInvalidConfig, cat)
		}
	}
	return nil
}
