// Package config loads the causalkg YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/causalkg/pkg/engine"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config is the root of the configuration file.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	MCP    MCPConfig    `yaml:"mcp"`
	Cursor CursorConfig `yaml:"cursor"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// StoreConfig selects and configures the knowledge store.
type StoreConfig struct {
	// Backend is memory (snapshot + log in Path), sqlite (file at Path)
	// or badger (directory at Path). An empty Path with the memory backend
	// keeps everything in RAM.
	Backend          string   `yaml:"backend"`
	Path             string   `yaml:"path"`
	RankCorrelations bool     `yaml:"rank_correlations"`
	Datasets         []string `yaml:"datasets"`

	// SnapshotInterval is how often the memory backend may snapshot.
	SnapshotInterval string `yaml:"snapshot_interval"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	AuthToken string `yaml:"auth_token"`
}

// MCPConfig toggles the MCP stdio server.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CursorConfig configures the correlation cursor.
type CursorConfig struct {
	// ResetWithoutSource is "all" (reset every source) or "reject".
	ResetWithoutSource string `yaml:"reset_without_source"`
}

// Default returns a configuration that runs fully in memory.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Store:  StoreConfig{Backend: BackendMemory, SnapshotInterval: "60s"},
		Server: ServerConfig{HTTPAddr: ":9191"},
		Cursor: CursorConfig{ResetWithoutSource: "all"},
	}
}

// Load reads the YAML file at path on top of Default. Environment variables
// (${VAR}) are expanded before decoding, and unknown keys are rejected.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration '%s': %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite, BackendBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if _, err := c.SnapshotInterval(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	if _, err := c.ResetScope(); err != nil {
		return fmt.Errorf("cursor.reset_without_source: %w", err)
	}
	return nil
}

// SlogLevel parses Log.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// ResetScope parses Cursor.ResetWithoutSource.
func (c Config) ResetScope() (engine.ResetScope, error) {
	return engine.ParseResetScope(c.Cursor.ResetWithoutSource)
}

// SnapshotInterval parses Store.SnapshotInterval. Zero disables snapshots.
func (c Config) SnapshotInterval() (time.Duration, error) {
	if c.Store.SnapshotInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Store.SnapshotInterval)
	if err != nil {
		return 0, fmt.Errorf("store.snapshot_interval: %w", err)
	}
	return d, nil
}
