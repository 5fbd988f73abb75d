package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arbezerra/ffwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The directories exist on return and ownership changes are disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WatchDir = filepath.Join(base, "watch")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.CompletionDir = filepath.Join(base, "complete")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Ownership.UID = -1
	cfgVal.Ownership.GID = -1
	cfgVal.Staging.CleanupOnStart = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithExtensions overrides the allowed extension list.
func WithExtensions(exts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Filter.AllowedExtensions = append([]string(nil), exts...)
	}
}

// WithCommitPolicy sets commit.on_failure.
func WithCommitPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Commit.OnFailure = policy
	}
}

// Stub transcoder behaviours.
const (
	StubSucceed = "succeed"
	StubFail    = "fail"
)

// WithStubTranscoder writes a shell script standing in for ffmpeg and points
// transcoder.binary at it. A succeeding stub writes "transcoded" to its last
// argument; a failing one writes partial output and exits 1.
func WithStubTranscoder(behaviour string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := "#!/bin/sh\nfor last; do :; done\n"
		switch behaviour {
		case StubFail:
			script += "printf partial > \"$last\"\nexit 1\n"
		default:
			script += "printf transcoded > \"$last\"\nexit 0\n"
		}
		target := filepath.Join(binDir, "ffmpeg-stub")
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write stub: %v", err)
		}
		b.cfg.Transcoder.Binary = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WatchDir)
}
