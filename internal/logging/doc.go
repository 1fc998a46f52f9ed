// Package logging provides structured slog logging with size-based file
// rotation. Pipeline runs write JSON to a file under ~/.soudok/logs and
// mirror to stderr for the operator; level and format come from
// configuration.
package logging
