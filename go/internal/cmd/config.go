package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/scatter/go/internal/game"
	"github.com/mcdev12/scatter/go/internal/orchestrator"
	"github.com/mcdev12/scatter/go/internal/scoring"
)

// Config holds the game tunables read from the YAML config file.
type Config struct {
	Orchestrator orchestrator.Config `yaml:"orchestrator"`
	Scoring      scoring.Rule        `yaml:"scoring"`
	Game         game.Config         `yaml:"game"`
	Identity     struct {
		Issuer   string        `yaml:"issuer"`
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"identity"`
}

func defaultConfig() *Config {
	cfg := &Config{
		Orchestrator: orchestrator.DefaultConfig(),
		Scoring:      scoring.DefaultRule(),
		Game:         game.DefaultConfig(),
	}
	cfg.Identity.Issuer = "scatter"
	cfg.Identity.TokenTTL = 24 * time.Hour
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig overlays the file at path onto the defaults. A missing file
// leaves the defaults in place.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Orchestrator.TickInterval <= 0 {
		return errors.New("orchestrator.tick_interval must be positive")
	}
	if c.Orchestrator.VotingTicks < 1 || c.Orchestrator.ResultTicks < 1 || c.Orchestrator.IntermissionTicks < 1 {
		return errors.New("orchestrator tick budgets must be at least 1")
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if c.Game.MaxCategories < 1 {
		return errors.New("game.max_categories must be at least 1")
	}
	if n := len(c.Game.DefaultCategories); n < 1 || n > c.Game.MaxCategories {
		return fmt.Errorf("game.default_categories must have between 1 and %d entries", c.Game.MaxCategories)
	}
	if c.Identity.TokenTTL <= 0 {
		return errors.New("identity.token_ttl must be positive")
	}
	return nil
}
