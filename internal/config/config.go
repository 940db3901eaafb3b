package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config holds the settings shared by both bot processes.
//
// Values come from an optional yaml file, then environment variables
// override: the token variable named by the caller, plus REDIS_URL,
// MANAGER_PASSWORD and LOG_LEVEL.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Redis     RedisConfig     `yaml:"redis"`
	Manager   ManagerConfig   `yaml:"manager"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`

	// PollTimeout is a Go duration string (e.g. "10s"). Default "10s".
	PollTimeout string `yaml:"poll_timeout"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type ManagerConfig struct {
	// Password is the shared secret checked by /auth.
	Password string `yaml:"password"`
}

type BroadcastConfig struct {
	// RatePerSec caps fan-out deliveries per second. Default 10.
	RatePerSec int `yaml:"rate_per_sec"`
}

type LoggingConfig struct {
	Level   string     `yaml:"level"`
	Console *bool      `yaml:"console"`
	File    FileConfig `yaml:"file"`
}

type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads path (if non-empty) and applies environment overrides.
// tokenEnv names the per-process bot token variable (the two bots use
// different tokens).
func Load(path, tokenEnv string) (*Config, error) {
	cfg := &Config{}

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if v := os.Getenv(tokenEnv); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("MANAGER_PASSWORD"); v != "" {
		cfg.Manager.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Console == nil {
		on := true
		c.Logging.Console = &on
	}
	if c.Broadcast.RatePerSec <= 0 {
		c.Broadcast.RatePerSec = 10
	}
	if strings.TrimSpace(c.Telegram.PollTimeout) == "" {
		c.Telegram.PollTimeout = "10s"
	}
}

// PollTimeout parses telegram.poll_timeout.
func (c *Config) PollTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(c.Telegram.PollTimeout))
	if err != nil {
		return 0, fmt.Errorf("config: telegram.poll_timeout: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("config: telegram.poll_timeout must be positive")
	}
	return d, nil
}

// ValidateContent checks the settings the content bot needs to start.
func (c *Config) ValidateContent() error {
	return c.validateCommon()
}

// ValidateManager checks the settings the manager bot needs to start.
// The broadcast secret is required: without it nobody can ever authorize.
func (c *Config) ValidateManager() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Manager.Password) == "" {
		return errors.New("config: manager password is not set (MANAGER_PASSWORD)")
	}
	return nil
}

func (c *Config) validateCommon() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("config: telegram token is not set")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		return errors.New("config: redis url is not set (REDIS_URL)")
	}
	return nil
}
