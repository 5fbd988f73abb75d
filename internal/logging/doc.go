// Package logging assembles structured slog loggers for ffwatch.
//
// It owns the console and JSON handlers, level parsing, and output fan-out to
// stdout plus the daemon log file. Component code tags its logger with
// NewComponentLogger and uses the Field* keys so job lines can be correlated
// by job_id regardless of output format.
package logging
