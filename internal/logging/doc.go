// Package logging configures slog output for the pipeline. It provides a
// console handler for interactive runs, a JSON handler for machine capture,
// and helpers for standardized attribute keys.
package logging
