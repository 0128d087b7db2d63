// Package config loads, normalizes, and validates lala configuration.
//
// It reads TOML files (plus an optional .env file), applies defaults and
// environment fallbacks, expands user paths, and exposes helpers that other
// packages use to locate the database, artifact directories, and log files.
// The embedded sample_config.toml backs `lala config init`.
package config
