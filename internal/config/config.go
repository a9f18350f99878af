package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkspaceRoot string `toml:"workspace_root"`
	TriggersDir   string `toml:"triggers_dir"`
	ReportDir     string `toml:"report_dir"`
	StateDir      string `toml:"state_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
}

// Agents lists the agents whose trigger folders are inventoried.
type Agents struct {
	Names []string `toml:"names"`
}

// Triggers contains trigger file inspection settings.
type Triggers struct {
	StaleAfterHours int   `toml:"stale_after_hours"`
	MaxBodyBytes    int64 `toml:"max_body_bytes"`
}

// Audit contains plan audit settings.
type Audit struct {
	Plans               []string `toml:"plans"`
	WriteReports        bool     `toml:"write_reports"`
	ReportRetentionDays int      `toml:"report_retention_days"`
	CheckSymbols        bool     `toml:"check_symbols"`
}

// Daemon contains watcher timing configuration.
type Daemon struct {
	DebounceMillis        int `toml:"debounce_ms"`
	RescanIntervalSeconds int `toml:"rescan_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reconcile.
//
// Configuration sections by subsystem:
//   - Paths: workspace root, trigger/report/state directories, API bind
//   - Agents: explicit agent list (empty means discover)
//   - Triggers: staleness threshold and body size limit
//   - Audit: daemon-watched plans, report output and retention
//   - Daemon: debounce and rescan intervals
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Agents   Agents   `toml:"agents"`
	Triggers Triggers `toml:"triggers"`
	Audit    Audit    `toml:"audit"`
	Daemon   Daemon   `toml:"daemon"`
	Logging  Logging  `toml:"logging"`
}

const (
	defaultConfigLocation = "~/.config/reconcile/config.toml"
	projectConfigName     = "reconcile.toml"
)

// DefaultConfigPath returns the per-user configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigLocation)
}

// Load reads the configuration at path, or searches the default locations
// when path is empty, then normalizes and validates it. It also returns the
// resolved file path and whether that file existed; a missing file yields
// the defaults. Variables from a .env file in the working directory are
// loaded first without overriding the environment.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	resolved, found, err := locateConfig(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if found {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, found, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// locateConfig resolves an explicit path as given. Without one it prefers
// the per-user file, then reconcile.toml in the working directory, and
// falls back to the per-user path when neither exists.
func locateConfig(explicit string) (string, bool, error) {
	if explicit != "" {
		path, err := expandPath(explicit)
		if err != nil {
			return "", false, err
		}
		found, err := isFile(path)
		return path, found, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if found, _ := isFile(candidate); found {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates the state and report directories. The triggers
// directory is never created: it belongs to the agents that write into it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.LogDir(), c.Paths.ReportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir returns the directory holding daemon log files.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.StateDir, "logs")
}

// DatabasePath returns the SQLite audit history location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "reconcile.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "reconciled.lock")
}

// StaleAfter returns the inbox staleness threshold.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Triggers.StaleAfterHours) * time.Hour
}

// Debounce returns the watcher debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Daemon.DebounceMillis) * time.Millisecond
}

// RescanInterval returns the periodic full re-audit interval.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.Daemon.RescanIntervalSeconds) * time.Second
}

// expandPath resolves a leading ~ against the home directory and makes the
// result absolute. Empty stays empty.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value[1:], "/"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the same ~ and absolute path rules used for
// configuration values.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// Encode renders the configuration as TOML, with the API token redacted.
func (c *Config) Encode() ([]byte, error) {
	clone := *c
	if clone.Paths.APIToken != "" {
		clone.Paths.APIToken = "********"
	}
	data, err := toml.Marshal(clone)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
