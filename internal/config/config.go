// Package config loads the agent configuration. Precedence: built-in
// defaults, then the yaml file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/droidrun/droidrun-portal-sub000/internal/flow"
	"github.com/droidrun/droidrun-portal-sub000/internal/heuristic"
)

// Env overrides. The database key never lives in the config file.
const (
	EnvAdbSerial = "PORTALD_ADB_SERIAL"
	EnvAdbBinary = "PORTALD_ADB_BIN"
	EnvDBKey     = "PORTALD_DB_KEY"
	EnvLogLevel  = "PORTALD_LOG_LEVEL"
)

// Config is the full agent configuration.
type Config struct {
	Log         LogConfig          `yaml:"log"`
	Adb         AdbConfig          `yaml:"adb"`
	Database    DatabaseConfig     `yaml:"database"`
	Diagnostics DiagnosticsConfig  `yaml:"diagnostics"`
	Gates       GatesConfig        `yaml:"gates"`
	Detectors   DetectorsConfig    `yaml:"detectors"`
	Timings     flow.Timings       `yaml:"timings"`
	Geometry    heuristic.Geometry `yaml:"geometry"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Path is the log file; empty logs to stderr.
	Path string `yaml:"path"`
}

// AdbConfig controls how the device bridge is reached.
type AdbConfig struct {
	// Binary is the adb executable, resolved through PATH when bare.
	Binary string `yaml:"binary"`
	// Serial selects the device; empty uses the only connected one.
	Serial string `yaml:"serial"`
	// CommandTimeout bounds every single adb invocation.
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// Locale overrides device locale detection, e.g. "en-US". Empty
	// queries the device.
	Locale string `yaml:"locale"`
}

// DatabaseConfig controls the outcome history store.
type DatabaseConfig struct {
	// Path of the SQLite database file.
	Path string `yaml:"path"`
	// Key is the hex SQLCipher key. Comes from PORTALD_DB_KEY or the
	// key file, never from the config file. Empty means plaintext.
	Key string `yaml:"-"`
}

// DiagnosticsConfig controls snapshot dump persistence.
type DiagnosticsConfig struct {
	// Dir receives the dump files.
	Dir string `yaml:"dir"`
	// MaxDumps caps the number of dump files kept on disk.
	MaxDumps int `yaml:"max_dumps"`
	// DumpsPerMinute is the sink's hard rate ceiling.
	DumpsPerMinute int `yaml:"dumps_per_minute"`
}

// GatesConfig sets the default arm windows.
type GatesConfig struct {
	InstallTTL         time.Duration `yaml:"install_ttl"`
	MediaProjectionTTL time.Duration `yaml:"media_projection_ttl"`
}

// DetectorsConfig switches individual detectors on or off.
type DetectorsConfig struct {
	MediaProjection bool `yaml:"media_projection"`
	Installer       bool `yaml:"installer"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Adb: AdbConfig{
			Binary:         "adb",
			CommandTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: defaultDataPath("history.db"),
		},
		Diagnostics: DiagnosticsConfig{
			Dir:            defaultDataPath("dumps"),
			MaxDumps:       50,
			DumpsPerMinute: 6,
		},
		Gates: GatesConfig{
			InstallTTL:         2 * time.Minute,
			MediaProjectionTTL: 2 * time.Minute,
		},
		Detectors: DetectorsConfig{
			MediaProjection: true,
			Installer:       true,
		},
		Timings:  flow.DefaultTimings(),
		Geometry: heuristic.DefaultGeometry(),
	}
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".portald", name)
	}
	return filepath.Join(home, ".portald", name)
}

// Load reads the configuration. A missing file runs on defaults; a
// present but broken file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAdbSerial); v != "" {
		cfg.Adb.Serial = v
	}
	if v := os.Getenv(EnvAdbBinary); v != "" {
		cfg.Adb.Binary = v
	}
	if v := os.Getenv(EnvDBKey); v != "" {
		cfg.Database.Key = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// Validate rejects configurations the flows cannot run with.
func (c *Config) Validate() error {
	var errs []string

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Adb.Binary == "" {
		errs = append(errs, "adb binary must be set")
	}
	if c.Adb.CommandTimeout <= 0 {
		errs = append(errs, "adb command_timeout must be positive")
	}
	if c.Diagnostics.MaxDumps < 0 {
		errs = append(errs, "diagnostics max_dumps must not be negative")
	}
	if c.Diagnostics.DumpsPerMinute <= 0 {
		errs = append(errs, "diagnostics dumps_per_minute must be positive")
	}
	if c.Gates.InstallTTL <= 0 || c.Gates.MediaProjectionTTL <= 0 {
		errs = append(errs, "gate ttls must be positive")
	}
	errs = append(errs, validateTimings(c.Timings)...)
	errs = append(errs, validateGeometry(c.Geometry)...)

	if len(errs) > 0 {
		return fmt.Errorf("config validation: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTimings(t flow.Timings) []string {
	var errs []string
	pairs := []struct {
		name              string
		timeout, interval time.Duration
	}{
		{"screen_wait", t.ScreenWaitTimeout, t.ScreenWaitInterval},
		{"dialog_persist", t.DialogPersistTimeout, t.DialogPersistInterval},
		{"confirm_click", t.ConfirmClickTimeout, t.ConfirmClickInterval},
		{"button_search", t.ButtonSearchTimeout, t.ButtonSearchInterval},
		{"direct_confirm", t.DirectConfirmTimeout, t.DirectConfirmInterval},
	}
	for _, p := range pairs {
		if p.timeout <= 0 || p.interval <= 0 {
			errs = append(errs, fmt.Sprintf("%s timings must be positive", p.name))
			continue
		}
		if p.interval > p.timeout {
			errs = append(errs, fmt.Sprintf("%s interval exceeds its timeout", p.name))
		}
	}
	if t.HomeNavTimeout <= 0 {
		errs = append(errs, "home_nav_timeout must be positive")
	}
	if t.DropdownRenderBudget <= 0 || t.AssumedSelectionTTL <= 0 {
		errs = append(errs, "detector budgets must be positive")
	}
	if t.SuccessCooldown <= 0 || t.FailureCooldown <= 0 {
		errs = append(errs, "cooldowns must be positive")
	}
	return errs
}

func validateGeometry(g heuristic.Geometry) []string {
	var errs []string
	ratios := []struct {
		name  string
		value float64
	}{
		{"button_min_width_ratio", g.ButtonMinWidthRatio},
		{"button_min_height_ratio", g.ButtonMinHeightRatio},
		{"row_tolerance_ratio", g.RowToleranceRatio},
		{"title_overlap_ratio", g.TitleOverlapRatio},
		{"dialog_min_height_ratio", g.DialogMinHeightRatio},
		{"dialog_max_height_ratio", g.DialogMaxHeightRatio},
		{"dialog_min_width_ratio", g.DialogMinWidthRatio},
		{"dialog_max_width_ratio", g.DialogMaxWidthRatio},
		{"side_margin_ratio", g.SideMarginRatio},
		{"action_row_tolerance_ratio", g.ActionRowToleranceRatio},
		{"action_row_min_span_ratio", g.ActionRowMinSpanRatio},
	}
	for _, r := range ratios {
		if r.value <= 0 || r.value >= 1 {
			errs = append(errs, fmt.Sprintf("%s must be in (0, 1)", r.name))
		}
	}
	if g.DialogMinHeightRatio >= g.DialogMaxHeightRatio {
		errs = append(errs, "dialog height ratios inverted")
	}
	if g.DialogMinWidthRatio >= g.DialogMaxWidthRatio {
		errs = append(errs, "dialog width ratios inverted")
	}
	if g.ActionRowMinMembers < 2 {
		errs = append(errs, "action_row_min_members must be at least 2")
	}
	return errs
}
