// Package config loads, normalizes, and validates Shotforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SHOTFORGE_LLM_API_KEY. The Config type centralizes every knob the pipeline
// and CLI need: state directories, the model endpoint, the asset matching
// constants, and the quality scoring mode.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
