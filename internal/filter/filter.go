// Package filter decides which watch notifications denote a file that is
// ready to be transcoded.
package filter

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/arbezerra/ffwatch/internal/logging"
	"github.com/arbezerra/ffwatch/internal/watcher"
)

// Extensions is an immutable allow-set of lower-case extensions without the
// leading dot.
type Extensions struct {
	set map[string]struct{}
}

// NewExtensions builds the allow-set. Entries are trimmed, stripped of a
// leading dot, and lower-cased.
func NewExtensions(list []string) Extensions {
	set := make(map[string]struct{}, len(list))
	for _, ext := range list {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return Extensions{set: set}
}

// Contains reports whether ext is allowed. The comparison is case-sensitive.
func (e Extensions) Contains(ext string) bool {
	_, ok := e.set[ext]
	return ok
}

// Len returns the number of allowed extensions.
func (e Extensions) Len() int {
	return len(e.set)
}

// Extension returns the substring after the last dot of the file name. Names
// without a dot, and dotfiles such as ".mkv" with no other dot, have none.
func Extension(path string) (string, bool) {
	base := filepath.Base(path)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 {
		return "", false
	}
	return base[idx+1:], true
}

// Filter turns events into candidate input paths.
type Filter struct {
	allowed Extensions
	logger  *slog.Logger
}

// New constructs a Filter.
func New(allowed Extensions, logger *slog.Logger) *Filter {
	return &Filter{allowed: allowed, logger: logging.NewComponentLogger(logger, "filter")}
}

// Accept returns, in event order, every path of ev that should become a job.
// Only close-write and renamed-to events are considered. Duplicates are kept.
func (f *Filter) Accept(ev watcher.Event) []string {
	switch ev.Kind {
	case watcher.KindCloseWrite, watcher.KindRenamedTo:
	default:
		f.logger.Info("notification ignored",
			logging.String("kind", ev.Op),
			logging.Strings("paths", ev.Paths),
			logging.String(logging.FieldEventType, "notification_ignored"),
		)
		return nil
	}

	accepted := make([]string, 0, len(ev.Paths))
	for _, path := range ev.Paths {
		ext, ok := Extension(path)
		if !ok || !f.allowed.Contains(ext) {
			f.logger.Debug("file skipped",
				logging.String("path", path),
				logging.String("extension", ext),
				logging.String(logging.FieldEventType, "file_skipped"),
			)
			continue
		}
		accepted = append(accepted, path)
	}
	return accepted
}
