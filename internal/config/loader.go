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

	"github.com/okian/rollbook/internal/domain/model"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if ROLLBOOK_CONFIG is set
//  3. env (prefix ROLLBOOK_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("ROLLBOOK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: ROLLBOOK_ADDR, ROLLBOOK_FLUSH_INTERVAL_MS, ...
	// Map keys like ROLLBOOK_DB_PATH -> db_path (flat keys, underscores
	// preserved to match koanf tags on the struct).
	envProvider := env.Provider("ROLLBOOK_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "rollbook_")
		return s
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
	case c.FlushIntervalMS <= 0:
		return fmt.Errorf("%w: flush_interval_ms must be positive", ErrInvalidConfig)
	case c.RecentLogSize <= 0:
		return fmt.Errorf("%w: recent_log_size must be positive", ErrInvalidConfig)
	case c.PageSizeMin <= 0 || c.PageSizeMax < c.PageSizeMin:
		return fmt.Errorf("%w: page size bounds are inconsistent", ErrInvalidConfig)
	case c.PageSizeDefault < c.PageSizeMin || c.PageSizeDefault > c.PageSizeMax:
		return fmt.Errorf("%w: page_size_default must fall within bounds", ErrInvalidConfig)
	case c.ManualConfidence <= 0:
		return fmt.Errorf("%w: manual_confidence must be positive", ErrInvalidConfig)
	}
	switch model.StatusPolicy(c.LatePolicy) {
	case model.StatusPolicyCollapseLate, model.StatusPolicyKeepLate:
	default:
		return fmt.Errorf("%w: late_policy must be collapse_late or keep_late", ErrInvalidConfig)
	}
	return nil
}

// StatusPolicy returns the configured late-status policy.
func (c *Config) StatusPolicy() model.StatusPolicy {
	return model.StatusPolicy(c.LatePolicy)
}
