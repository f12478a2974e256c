// Package config loads, normalizes, and validates mediaflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the MEDIAFLOW_NTFY_TOPIC
// environment fallback. The Config type centralizes every knob the daemon and
// CLI need so the data, log, definition and workspace directories are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
