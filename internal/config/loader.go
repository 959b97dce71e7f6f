package config

import (
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
//  1. defaults (New())
//  2. file (YAML) if ARBITER_CONFIG is set
//  3. env (prefix ARBITER_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("ARBITER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: ARBITER_ADDR, ARBITER_DB_DSN, ...
	// Map env keys like ARBITER_DB_DSN -> db_dsn (flat keys), preserving
	// underscores to match the koanf tags on the struct.
	envProvider := env.Provider("ARBITER_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "arbiter_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.DBDSN != "" && c.DBDriver != "sqlite" && c.DBDriver != "mysql" {
		return fmt.Errorf("%w: db_driver must be sqlite or mysql, got %q", ErrInvalidConfig, c.DBDriver)
	}
	if c.MinFeedbackLength < 1 {
		return fmt.Errorf("%w: min_feedback_length must be positive", ErrInvalidConfig)
	}
	for i, p := range c.RetryPenalties {
		if p <= 0 || p > 1 {
			return fmt.Errorf("%w: retry_penalties[%d] = %v outside (0,1]", ErrInvalidConfig, i, p)
		}
	}
	if c.DefaultRetryPenalty <= 0 || c.DefaultRetryPenalty > 1 {
		return fmt.Errorf("%w: default_retry_penalty %v outside (0,1]", ErrInvalidConfig, c.DefaultRetryPenalty)
	}
	for track, thresholds := range c.TierThresholds {
		if len(thresholds) != 5 {
			return fmt.Errorf("%w: tier track %q needs exactly 5 thresholds", ErrInvalidConfig, track)
		}
		for i := 1; i < len(thresholds); i++ {
			if thresholds[i] < thresholds[i-1] {
				return fmt.Errorf("%w: tier track %q thresholds must ascend", ErrInvalidConfig, track)
			}
		}
	}
	return nil
}
