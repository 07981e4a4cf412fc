// Package config assembles server settings from defaults, an optional YAML
// file and TRACKER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"pumpkin-tracker/apps/server/internal/store"
	"pumpkin-tracker/tally"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TRACKER_"

type Config struct {
	Addr           string        `yaml:"addr" env:"ADDR"`
	PageSize       int           `yaml:"page_size" env:"PAGE_SIZE"`
	ClearTicketTTL time.Duration `yaml:"clear_ticket_ttl" env:"CLEAR_TICKET_TTL"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	Debug          bool          `yaml:"debug" env:"DEBUG"`
	Store          store.Config  `yaml:"store" envPrefix:"STORE_"`
}

func Default() Config {
	return Config{
		Addr:           ":8080",
		PageSize:       tally.DefaultPageSize,
		ClearTicketTTL: 2 * time.Minute,
		Store: store.Config{
			Mode:         store.ModeSQLite,
			Collection:   store.DefaultCollection,
			Document:     store.DefaultDocument,
			PollInterval: store.DefaultPollInterval,
		},
	}
}

// Load reads path (when non-empty) over the defaults and then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if store.NormalizeMode(cfg.Store.Mode) == store.ModePostgres && cfg.Store.PostgresDSN == "" {
		cfg.Store.PostgresDSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	if c.ClearTicketTTL <= 0 {
		errs = append(errs, fmt.Errorf("clear_ticket_ttl must be positive, got %s", c.ClearTicketTTL))
	}
	switch store.NormalizeMode(c.Store.Mode) {
	case store.ModeMemory, store.ModeSQLite, store.ModePostgres, store.ModeFile:
	default:
		errs = append(errs, fmt.Errorf("%w %q", store.ErrInvalidMode, c.Store.Mode))
	}
	return errors.Join(errs...)
}
