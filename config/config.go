// Package config loads server configuration from YAML or JSON files with
// environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
}

// ServerConfig contains HTTP server parameters.
type ServerConfig struct {
	Port           int      `json:"port" yaml:"port"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// DatabaseConfig contains SQLite parameters.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SchedulerConfig controls the background accrual runner.
type SchedulerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Interval between accrual sweeps, e.g. "1h", "30m".
	Interval string `json:"interval" yaml:"interval"`
}

// ParseInterval converts the interval string to a time.Duration.
func (sc SchedulerConfig) ParseInterval() (time.Duration, error) {
	if sc.Interval == "" {
		return time.Hour, nil
	}
	return time.ParseDuration(sc.Interval)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database:  DatabaseConfig{Path: "./data/debts.db"},
		Scheduler: SchedulerConfig{Enabled: true, Interval: "1h"},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML based on
// extension), layered over Default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Called after file
// loading so the environment always wins.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DEBT_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SCHEDULER_INTERVAL"); v != "" {
		c.Scheduler.Interval = v
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Scheduler.Enabled = enabled
		}
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if _, err := c.Scheduler.ParseInterval(); err != nil {
		return fmt.Errorf("invalid scheduler interval %q: %w", c.Scheduler.Interval, err)
	}
	return nil
}
