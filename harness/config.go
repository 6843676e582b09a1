package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/evanfuller/autoloop/llm"
)

// Config holds the harness settings. Values come from environment
// variables (optionally via a .env file), with CLI flags applied on top
// by the caller.
type Config struct {
	// ProjectDir is the directory the agent works in. Defaults to the
	// current working directory.
	ProjectDir string `env:"AUTOLOOP_PROJECT_DIR"`

	// MaxIterations caps how many agent sessions run before giving up.
	MaxIterations int `env:"AUTOLOOP_MAX_ITERATIONS" envDefault:"5"`

	// Model is the model identifier for agent sessions.
	Model string `env:"AUTOLOOP_MODEL"`

	// APIAddr is where the feature API listens.
	APIAddr string `env:"AUTOLOOP_API_ADDR" envDefault:"127.0.0.1:8765"`

	// WebhookURL receives progress notifications when set.
	WebhookURL string `env:"PROGRESS_N8N_WEBHOOK_URL"`
}

// LoadConfig reads configuration from a .env file (when present) and the
// environment, then fills in runtime defaults.
func LoadConfig() (Config, error) {
	// A missing .env file is fine; explicit environment wins either way.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize applies defaults and validates the configuration. It is
// called again after CLI flags are layered on.
func (c *Config) Normalize() error {
	if c.ProjectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		c.ProjectDir = wd
	}
	abs, err := filepath.Abs(c.ProjectDir)
	if err != nil {
		return fmt.Errorf("resolve project directory: %w", err)
	}
	c.ProjectDir = abs

	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}

	if c.Model == "" {
		c.Model = llm.DefaultModel
	}

	if c.APIAddr == "" {
		c.APIAddr = "127.0.0.1:8765"
	}
	return nil
}

// APIBaseURL returns the HTTP base URL of the feature API.
func (c Config) APIBaseURL() string {
	return "http://" + c.APIAddr
}
