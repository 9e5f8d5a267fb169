// Package config loads, normalizes, and validates the upres configuration
// file. Values here are defaults for a run; the CLI may override the
// per-job knobs (segment length, quality, scales, filters) per invocation.
package config
