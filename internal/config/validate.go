package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if len(c.Filter.AllowedExtensions) == 0 {
		return errors.New("filter.allowed_extensions must include at least one extension")
	}
	if c.Transcoder.Binary == "" {
		return errors.New("transcoder.binary must be set")
	}
	if c.Ownership.UID < -1 {
		return errors.New("ownership.uid must be >= -1")
	}
	if c.Ownership.GID < -1 {
		return errors.New("ownership.gid must be >= -1")
	}
	switch c.Commit.OnFailure {
	case CommitAbort, CommitKeep:
	default:
		return fmt.Errorf("commit.on_failure must be %q or %q, got %q", CommitAbort, CommitKeep, c.Commit.OnFailure)
	}
	if c.Watcher.Buffer <= 0 {
		return errors.New("watcher.buffer must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	roots := []struct {
		key   string
		value string
	}{
		{"paths.watch_dir", c.Paths.WatchDir},
		{"paths.staging_dir", c.Paths.StagingDir},
		{"paths.completion_dir", c.Paths.CompletionDir},
	}
	for _, root := range roots {
		if strings.TrimSpace(root.value) == "" {
			return fmt.Errorf("%s must be set", root.key)
		}
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	for i := range roots {
		for j := range roots {
			if i == j {
				continue
			}
			if within(roots[i].value, roots[j].value) {
				return fmt.Errorf("%s (%s) must not be inside or equal to %s (%s)",
					roots[i].key, roots[i].value, roots[j].key, roots[j].value)
			}
		}
	}
	return nil
}

// within reports whether path equals root or lies beneath it.
func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
