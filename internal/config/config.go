package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Commit failure policies.
const (
	// CommitAbort stops the process when a finished transcode cannot be moved
	// into the completion directory or re-owned.
	CommitAbort = "abort"
	// CommitKeep logs the failure, leaves the staged output in place, and
	// continues with the next job.
	CommitKeep = "keep"
)

// Paths contains the directory roots used by the pipeline.
type Paths struct {
	WatchDir      string `toml:"watch_dir"`
	CompletionDir string `toml:"completion_dir"`
	StagingDir    string `toml:"staging_dir"`
	StateDir      string `toml:"state_dir"`
}

// Filter contains the eligibility rules for detected files.
type Filter struct {
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// Transcoder describes how the external transcoder is invoked.
type Transcoder struct {
	Binary  string   `toml:"binary"`
	HWAccel string   `toml:"hwaccel"`
	Args    []string `toml:"args"`
}

// Ownership holds the identifiers applied to completed files. A value of -1
// leaves that side of the ownership unchanged.
type Ownership struct {
	UID int `toml:"uid"`
	GID int `toml:"gid"`
}

// Commit controls what happens when the post-transcode move fails.
type Commit struct {
	OnFailure string `toml:"on_failure"`
}

// Watcher tunes the filesystem subscription.
type Watcher struct {
	Buffer int `toml:"buffer"`
}

// Staging controls housekeeping of the staging root.
type Staging struct {
	CleanupOnStart bool `toml:"cleanup_on_start"`
}

// History controls the job outcome ledger.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ffwatch.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Filter     Filter     `toml:"filter"`
	Transcoder Transcoder `toml:"transcoder"`
	Ownership  Ownership  `toml:"ownership"`
	Commit     Commit     `toml:"commit"`
	Watcher    Watcher    `toml:"watcher"`
	Staging    Staging    `toml:"staging"`
	History    History    `toml:"history"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigLocation)
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file is decoded. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvironment(os.LookupEnv); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the watch, staging, completion, and state roots
// (including parents) when absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WatchDir, c.Paths.StagingDir, c.Paths.CompletionDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the job outcome database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "ffwatch.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, "ffwatch.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
