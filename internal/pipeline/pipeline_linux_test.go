//go:build linux

package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arbezerra/ffwatch/internal/logging"
	"github.com/arbezerra/ffwatch/internal/testsupport"
	"github.com/arbezerra/ffwatch/internal/transcode"
	"github.com/arbezerra/ffwatch/internal/watcher"
)

func TestPipelineEndToEndWithStubTranscoder(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubTranscoder(testsupport.StubSucceed))
	store := testsupport.MustOpenHistory(t, cfg)

	w, err := watcher.New(cfg.Paths.WatchDir, watcher.Options{Buffer: cfg.Watcher.Buffer})
	if err != nil {
		t.Fatalf("watcher.New: %v", err)
	}
	tc := transcode.NewCommandTranscoder(cfg.Transcoder.Binary)
	tc.Stdout, tc.Stderr = &bytes.Buffer{}, &bytes.Buffer{}

	p := New(cfg, w, tc, store, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	testsupport.DropFile(t, filepath.Join(cfg.Paths.WatchDir, "movie.mkv"), 1024)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WatchDir, "readme.txt"), 8)

	final := filepath.Join(cfg.Paths.CompletionDir, "movie.mkv")
	deadline := time.Now().Add(10 * time.Second)
	for {
		if data, err := os.ReadFile(final); err == nil && string(data) == "transcoded" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", final)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != "succeeded" || entries[0].Output != final {
		t.Fatalf("unexpected ledger contents %+v", entries)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.CompletionDir, "readme.txt")); !os.IsNotExist(err) {
		t.Fatalf("ineligible file must not be transcoded: %v", err)
	}
}
