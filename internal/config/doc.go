// Package config loads, normalizes, and validates patchwatch configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PATCHWATCH_CLASSIFIER_API_KEY. The Config type centralizes every knob the
// daemon and CLI need: detection thresholds, scheduler intervals, aggregator
// connection settings, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
