// Package daemonrun bootstraps the long-running ffwatch process: directories,
// logging, the single-instance lock, housekeeping, preflight, the history
// ledger, and finally the watch pipeline.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/arbezerra/ffwatch/internal/config"
	"github.com/arbezerra/ffwatch/internal/history"
	"github.com/arbezerra/ffwatch/internal/logging"
	"github.com/arbezerra/ffwatch/internal/pipeline"
	"github.com/arbezerra/ffwatch/internal/preflight"
	"github.com/arbezerra/ffwatch/internal/staging"
	"github.com/arbezerra/ffwatch/internal/transcode"
	"github.com/arbezerra/ffwatch/internal/watcher"
)

// ErrAlreadyRunning is returned when another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another ffwatch instance is already running")

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// LogOutputs replaces the default sinks (stdout plus the state log file).
	LogOutputs []string
	// Transcoder replaces the external command, mainly for tests.
	Transcoder transcode.Transcoder
}

// Run starts ffwatch and blocks until SIGINT/SIGTERM, cmdCtx cancellation, or
// a fatal pipeline error.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := opts.LogOutputs
	if len(outputs) == 0 {
		outputs = []string{"stdout", cfg.LogPath()}
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("run_id", uuid.NewString()))

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	pidPath := filepath.Join(cfg.Paths.StateDir, "ffwatch.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if cfg.Staging.CleanupOnStart {
		cleanStaging(signalCtx, logger, cfg.Paths.StagingDir)
	}
	logPreflight(logger, preflight.RunAll(cfg))

	var recorder transcode.Recorder
	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logger.Warn("history ledger unavailable",
				logging.Error(err),
				logging.String("path", cfg.HistoryPath()),
				logging.String(logging.FieldEventType, "history_unavailable"),
				logging.String(logging.FieldImpact, "job outcomes will only appear in logs"),
				logging.String(logging.FieldErrorHint, "check state_dir permissions or set history.enabled = false"),
			)
		} else {
			defer store.Close()
			recorder = store
			logger.Info("history ledger opened",
				logging.String("path", store.Path()),
				logging.String(logging.FieldEventType, "history_opened"),
			)
		}
	}

	// Notifications carry resolved paths, so the layout must use the same root.
	root, err := filepath.EvalSymlinks(cfg.Paths.WatchDir)
	if err != nil {
		return fmt.Errorf("resolve watch directory: %w", err)
	}
	w, err := watcher.New(root, watcher.Options{Buffer: cfg.Watcher.Buffer})
	if err != nil {
		logger.Error("watch subscription failed",
			logging.Error(err),
			logging.String("watch_dir", root),
			logging.String(logging.FieldEventType, "watch_subscribe_failed"),
		)
		return err
	}
	runCfg := *cfg
	runCfg.Paths.WatchDir = w.Root()

	tc := opts.Transcoder
	if tc == nil {
		tc = transcode.NewCommandTranscoder(cfg.Transcoder.Binary)
	}

	err = pipeline.New(&runCfg, w, tc, recorder, logger).Run(signalCtx)
	logger.Info("ffwatch shutting down", logging.String(logging.FieldEventType, "shutdown"))
	return err
}

func cleanStaging(ctx context.Context, logger *slog.Logger, dir string) {
	result := staging.CleanStale(ctx, dir, 0, logger)
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		return
	}
	logger.Info("staging cleanup complete",
		logging.Int("removed_files", len(result.Removed)),
		logging.Int("pruned_dirs", len(result.PrunedDirs)),
		logging.Int("errors", len(result.Errors)),
		logging.Float("reclaimed_mb", result.ReclaimedMB),
		logging.String(logging.FieldEventType, "staging_cleanup_summary"),
	)
}

func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("required", r.Required),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldImpact, "transcodes may fail until this is fixed"),
			logging.String(logging.FieldErrorHint, "run ffwatch check for details"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
