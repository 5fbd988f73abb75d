package config

import (
	"fmt"
	"strconv"
	"strings"
)

type lookupFunc func(key string) (string, bool)

// applyEnvironment overlays container-style environment variables on top of
// the decoded file. PUID is the user id and PGID the group id.
func (c *Config) applyEnvironment(lookup lookupFunc) error {
	stringVars := []struct {
		key    string
		target *string
	}{
		{"WATCH_DIR", &c.Paths.WatchDir},
		{"COMPLETE_DIR", &c.Paths.CompletionDir},
		{"TRANSCODING_DIR", &c.Paths.StagingDir},
		{"STATE_DIR", &c.Paths.StateDir},
		{"TRANSCODER", &c.Transcoder.Binary},
		{"HWACCEL", &c.Transcoder.HWAccel},
		{"LOG_LEVEL", &c.Logging.Level},
	}
	for _, v := range stringVars {
		if value, ok := lookup(v.key); ok && strings.TrimSpace(value) != "" {
			*v.target = strings.TrimSpace(value)
		}
	}

	if value, ok := lookup("ALLOWED_EXTENSIONS"); ok && strings.TrimSpace(value) != "" {
		c.Filter.AllowedExtensions = SplitList(value)
	}

	intVars := []struct {
		key    string
		target *int
	}{
		{"PUID", &c.Ownership.UID},
		{"PGID", &c.Ownership.GID},
	}
	for _, v := range intVars {
		value, ok := lookup(v.key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", v.key, value)
		}
		*v.target = parsed
	}
	return nil
}

// SplitList parses a comma-separated list, dropping empty entries.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Normalize expands paths and canonicalizes enumerated values. Load calls it;
// callers that mutate a loaded config (CLI flag overrides) call it again
// before Validate.
func (c *Config) Normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFilter()
	c.normalizeTranscoder()
	c.normalizeCommit()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WatchDir, err = expandPath(strings.TrimSpace(c.Paths.WatchDir)); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.CompletionDir, err = expandPath(strings.TrimSpace(c.Paths.CompletionDir)); err != nil {
		return fmt.Errorf("paths.completion_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(strings.TrimSpace(c.Paths.StagingDir)); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFilter() {
	exts := make([]string, 0, len(c.Filter.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Filter.AllowedExtensions))
	for _, ext := range c.Filter.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	c.Filter.AllowedExtensions = exts
}

func (c *Config) normalizeTranscoder() {
	c.Transcoder.Binary = strings.TrimSpace(c.Transcoder.Binary)
	c.Transcoder.HWAccel = strings.TrimSpace(c.Transcoder.HWAccel)
}

func (c *Config) normalizeCommit() {
	c.Commit.OnFailure = strings.ToLower(strings.TrimSpace(c.Commit.OnFailure))
	if c.Commit.OnFailure == "" {
		c.Commit.OnFailure = CommitAbort
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
