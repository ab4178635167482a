// Package config loads, normalizes, and validates skytag's TOML configuration.
//
// Configuration is read from ~/.config/skytag/config.toml or ./skytag.toml when
// present, falling back to repository defaults. Paths are expanded to absolute
// form, tool binaries may be overridden through SKYTAG_* environment
// variables, and Validate rejects values the pipeline cannot honor.
package config
