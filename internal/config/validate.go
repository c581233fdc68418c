package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAggregator(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAggregator() error {
	if c.Aggregator.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/patchwatch/config.toml"
		}
		return fmt.Errorf("aggregator.base_url is required; edit %s (create with 'patchwatch config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateEngine() error {
	for name, value := range map[string]float64{
		"engine.auto_apply_confidence": c.Engine.AutoApplyConfidence,
		"engine.queue_min_confidence":  c.Engine.QueueMinConfidence,
		"engine.pattern_confidence":    c.Engine.PatternConfidence,
		"engine.similarity_threshold":  c.Engine.SimilarityThreshold,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.Engine.QueueMinConfidence > c.Engine.AutoApplyConfidence {
		return errors.New("engine.queue_min_confidence must not exceed engine.auto_apply_confidence")
	}
	if c.Engine.FreshnessWindowHours <= 0 {
		return errors.New("engine.freshness_window_hours must be positive")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	return ensurePositiveMap(map[string]int{
		"scheduler.tick_interval_seconds":        c.Scheduler.TickIntervalSeconds,
		"scheduler.default_cadence_minutes":      c.Scheduler.DefaultCadenceMinutes,
		"scheduler.cache_sweep_interval_minutes": c.Scheduler.CacheSweepIntervalMin,
		"scheduler.title_sweep_interval_minutes": c.Scheduler.TitleSweepIntervalMin,
		"scheduler.status_next_checks_limit":     c.Scheduler.StatusNextChecksLimit,
	})
}

func (c *Config) validateClassifier() error {
	if !c.Classifier.Enabled {
		return nil
	}
	if c.Classifier.APIKey == "" {
		return errors.New("classifier.api_key must be set when classifier.enabled is true (or export PATCHWATCH_CLASSIFIER_API_KEY)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
