// Package logging builds the slog loggers used across taxid.
//
// It provides a console handler for interactive runs, a JSON handler for
// machine-readable logs, attribute helpers, standardized field keys, and
// component-scoped child loggers so every subsystem tags its output
// consistently.
package logging
