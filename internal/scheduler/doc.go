// Package scheduler drives periodic update checks. It owns per-account check
// cadence, runs due cycles through the arbiter and relation matcher, and runs
// the longer-period cache-refresh and title-normalization sweeps.
package scheduler
