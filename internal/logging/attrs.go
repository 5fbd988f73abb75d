package logging

import (
	"log/slog"
	"time"
)

// Structured field keys shared across components.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	// FieldEventType is a stable machine-readable name for the log line.
	FieldEventType = "event_type"
	// FieldErrorHint is the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is what a warning means for the files being processed.
	FieldImpact = "impact"
)

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Strings(key string, values []string) slog.Attr { return slog.Any(key, values) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Float(key string, value float64) slog.Attr { return slog.Float64(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

// Error attaches err under the "error" key.
func Error(err error) slog.Attr { return slog.Any("error", err) }

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger { return slog.New(slog.DiscardHandler) }

// NewComponentLogger tags logger with component. A nil logger discards.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}
