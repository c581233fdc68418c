package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAggregator()
	c.normalizeClassifier()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = defaultSocketPath
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeAggregator() {
	c.Aggregator.BaseURL = strings.TrimRight(strings.TrimSpace(c.Aggregator.BaseURL), "/")
	if c.Aggregator.RequestTimeout <= 0 {
		c.Aggregator.RequestTimeout = defaultAggregatorTimeout
	}
	if c.Aggregator.CacheTTLMinutes <= 0 {
		c.Aggregator.CacheTTLMinutes = defaultCacheTTLMinutes
	}
	if c.Aggregator.RequestsPerSecond <= 0 {
		c.Aggregator.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.Aggregator.Burst <= 0 {
		c.Aggregator.Burst = defaultRequestBurst
	}
}

func (c *Config) normalizeClassifier() {
	c.Classifier.APIKey = strings.TrimSpace(c.Classifier.APIKey)
	if c.Classifier.APIKey == "" {
		if value, ok := os.LookupEnv("PATCHWATCH_CLASSIFIER_API_KEY"); ok {
			c.Classifier.APIKey = strings.TrimSpace(value)
		}
	}
	c.Classifier.BaseURL = strings.TrimSpace(c.Classifier.BaseURL)
	c.Classifier.Model = strings.TrimSpace(c.Classifier.Model)
	if c.Classifier.Model == "" {
		c.Classifier.Model = defaultClassifierModel
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeoutSecs
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
