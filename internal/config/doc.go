// Package config loads, normalizes, and validates taxid configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// NCBI_EMAIL and NCBI_API_KEY. The Config type centralizes every knob the CLI
// needs: Entrez contact details and pacing, the checkpoint cache location,
// resolver column names and policy, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
