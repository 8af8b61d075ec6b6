// Package config loads, normalizes, and validates autopost configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AUTOPOST_API_TOKEN, optionally sourced from a .env file. The Config type
// centralizes every knob the daemon and CLI need: where the queue lives, how
// it is drained, and how the browser tab is driven.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical modes, and clear validation errors.
package config
