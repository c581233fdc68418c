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

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Aggregator contains connection settings for the listing aggregator.
type Aggregator struct {
	BaseURL           string  `toml:"base_url"`
	RequestTimeout    int     `toml:"request_timeout"`
	CacheTTLMinutes   int     `toml:"cache_ttl_minutes"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// Engine contains detection and matching thresholds.
type Engine struct {
	// AutoApplyConfidence is the confidence at or above which a detected
	// update is applied without review. Default: 0.8
	AutoApplyConfidence float64 `toml:"auto_apply_confidence"`
	// QueueMinConfidence is the minimum confidence required to queue a
	// pending update for human review. Default: 0.3
	QueueMinConfidence float64 `toml:"queue_min_confidence"`
	// PatternConfidence is the fixed confidence assigned to regex-based
	// detections. Default: 0.6
	PatternConfidence float64 `toml:"pattern_confidence"`
	// SimilarityThreshold is the minimum title similarity for a relation
	// candidate to be emitted. Inclusive. Default: 0.5
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	// FreshnessWindowHours bounds advisory outdated verdicts when neither
	// version nor build is verified. Default: 24
	FreshnessWindowHours int `toml:"freshness_window_hours"`
}

// Scheduler contains timing for the periodic check engine.
type Scheduler struct {
	TickIntervalSeconds   int `toml:"tick_interval_seconds"`
	DefaultCadenceMinutes int `toml:"default_cadence_minutes"`
	CacheSweepIntervalMin int `toml:"cache_sweep_interval_minutes"`
	TitleSweepIntervalMin int `toml:"title_sweep_interval_minutes"`
	StatusNextChecksLimit int `toml:"status_next_checks_limit"`
}

// Classifier contains settings for the optional external confidence
// classifier. Absence or failure always degrades to pattern-only confidence.
type Classifier struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for patchwatch.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Aggregator Aggregator `toml:"aggregator"`
	Engine     Engine     `toml:"engine"`
	Scheduler  Scheduler  `toml:"scheduler"`
	Classifier Classifier `toml:"classifier"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/patchwatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("patchwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TickInterval returns the scheduler tick as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickIntervalSeconds) * time.Second
}

// DefaultCadence returns the default per-account check cadence.
func (c *Config) DefaultCadence() time.Duration {
	return time.Duration(c.Scheduler.DefaultCadenceMinutes) * time.Minute
}

// CacheSweepInterval returns the listings cache refresh sweep period.
func (c *Config) CacheSweepInterval() time.Duration {
	return time.Duration(c.Scheduler.CacheSweepIntervalMin) * time.Minute
}

// TitleSweepInterval returns the title re-normalization sweep period.
func (c *Config) TitleSweepInterval() time.Duration {
	return time.Duration(c.Scheduler.TitleSweepIntervalMin) * time.Minute
}

// FreshnessWindow returns the advisory freshness window as a duration.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Engine.FreshnessWindowHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
