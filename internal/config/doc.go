// Package config loads, normalizes, and validates reelsmith configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REELSMITH_API_KEY. The Config type centralizes every knob the CLI and the
// render pipeline need: canvas geometry, frame and sample rates, scene layout,
// recorder arguments, and collaborator endpoints.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
