package daemonrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/arbezerra/ffwatch/internal/history"
	"github.com/arbezerra/ffwatch/internal/testsupport"
)

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	err = Run(context.Background(), cfg, Options{LogOutputs: []string{cfg.LogPath()}})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestRunProcessesFilesUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTranscoder(testsupport.StubSucceed))
	cfg.Staging.CleanupOnStart = true
	leftover := filepath.Join(cfg.Paths.StagingDir, "old", "crashed.mkv")
	testsupport.WriteFile(t, leftover, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, Options{LogLevel: "debug", LogOutputs: []string{cfg.LogPath()}}) }()

	pidPath := filepath.Join(cfg.Paths.StateDir, "ffwatch.pid")
	// The banner is logged once the watch subscription is live.
	waitFor(t, func() bool {
		data, err := os.ReadFile(cfg.LogPath())
		return err == nil && strings.Contains(string(data), "watching for new files")
	})
	if _, err := os.Stat(pidPath); err != nil {
		t.Fatalf("expected pid file while running: %v", err)
	}

	// New subdirectories are picked up asynchronously by the recursive watch.
	if err := os.Mkdir(filepath.Join(cfg.Paths.WatchDir, "show"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	testsupport.DropFile(t, filepath.Join(cfg.Paths.WatchDir, "show", "ep.mkv"), 64)
	final := filepath.Join(cfg.Paths.CompletionDir, "show", "ep.mkv")
	waitFor(t, func() bool {
		_, err := os.Stat(final)
		return err == nil
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Fatalf("expected stale staged file swept at startup, got %v", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}

	logData, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{"watching for new files", "file detected", "transcode succeeded"} {
		if !strings.Contains(string(logData), want) {
			t.Fatalf("log missing %q:\n%s", want, logData)
		}
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	entries, err := store.Recent(context.Background(), 5)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one ledger entry, got %+v (%v)", entries, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
