package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arbezerra/ffwatch/internal/config"
	"github.com/arbezerra/ffwatch/internal/history"
)

type cliTestEnv struct {
	base       string
	watchDir   string
	stagingDir string
	completion string
	stateDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		base:       base,
		watchDir:   filepath.Join(base, "watch"),
		stagingDir: filepath.Join(base, "staging"),
		completion: filepath.Join(base, "complete"),
		stateDir:   filepath.Join(base, "state"),
	}
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Chdir(base)

	stub := filepath.Join(base, "bin", "ffmpeg")
	if err := os.MkdirAll(filepath.Dir(stub), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	for key, value := range map[string]string{
		"WATCH_DIR":          env.watchDir,
		"TRANSCODING_DIR":    env.stagingDir,
		"COMPLETE_DIR":       env.completion,
		"STATE_DIR":          env.stateDir,
		"TRANSCODER":         stub,
		"ALLOWED_EXTENSIONS": "",
		"HWACCEL":            "",
		"PUID":               "",
		"PGID":               "",
		"LOG_LEVEL":          "",
	} {
		t.Setenv(key, value)
	}
	return env
}

func (e *cliTestEnv) ensureDirs(t *testing.T) {
	t.Helper()
	for _, dir := range []string{e.watchDir, e.stagingDir, e.completion, e.stateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(env.base, "conf", "config.toml")
	out, _, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, "--config", target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+target)
	requireContains(t, out, "Watch: "+env.watchDir)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateReportsErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("TRANSCODING_DIR", filepath.Join(env.watchDir, "nested"))

	if _, _, err := runCLI(t, "config", "validate"); err == nil {
		t.Fatal("expected nested staging dir to be rejected")
	}
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.ensureDirs(t)

	out, _, err := runCLI(t, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Transcoder")
	requireContains(t, out, "Completion directory")

	t.Setenv("TRANSCODER", "clearly-not-present-binary")
	out, _, err = runCLI(t, "check")
	if err == nil {
		t.Fatalf("expected failing check, output:\n%s", out)
	}
	requireContains(t, out, "FAIL")
}

func TestHistoryCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No history recorded yet")

	store, err := history.Open(filepath.Join(env.stateDir, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	now := time.Now()
	if err := store.Record(context.Background(), history.Entry{
		JobID: "a", Input: "/w/ok.mkv", Output: "/c/ok.mkv", Status: "succeeded",
		StartedAt: now.Add(-90 * time.Second), FinishedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(context.Background(), history.Entry{
		JobID: "b", Input: "/w/bad.mkv", Status: "failed", Detail: "exit status 1",
	}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	out, _, err = runCLI(t, "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "/c/ok.mkv")
	requireContains(t, out, "exit status 1")
	requireContains(t, out, "1m30s")
}

func TestApplyRunFlags(t *testing.T) {
	env := setupCLITestEnv(t)
	base, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cmd := newRunCommand(newCommandContext(nil))
	newWatch := filepath.Join(env.base, "other-watch")
	if err := cmd.ParseFlags([]string{
		"--watch-dir", newWatch,
		"--extensions", "MKV, webm",
		"--hwaccel", "vaapi",
		"--uid", "-1",
		"--", "-c:v", "hevc_vaapi",
	}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := applyRunFlags(cmd, *base, cmd.Flags().Args())
	if err != nil {
		t.Fatalf("applyRunFlags: %v", err)
	}
	if cfg.Paths.WatchDir != newWatch {
		t.Fatalf("watch dir not overridden: %q", cfg.Paths.WatchDir)
	}
	if cfg.Paths.StagingDir != env.stagingDir {
		t.Fatalf("unset flag must keep configured staging dir, got %q", cfg.Paths.StagingDir)
	}
	if strings.Join(cfg.Filter.AllowedExtensions, ",") != "mkv,webm" {
		t.Fatalf("unexpected extensions %v", cfg.Filter.AllowedExtensions)
	}
	if cfg.Transcoder.HWAccel != "vaapi" || cfg.Ownership.UID != -1 || cfg.Ownership.GID != 1000 {
		t.Fatalf("unexpected overrides %+v %+v", cfg.Transcoder, cfg.Ownership)
	}
	if strings.Join(cfg.Transcoder.Args, " ") != "-c:v hevc_vaapi" {
		t.Fatalf("pass-through args not applied: %v", cfg.Transcoder.Args)
	}
	if base.Paths.WatchDir == newWatch {
		t.Fatal("loaded config must not be mutated")
	}
}

func TestRunRequiresSeparatorForTranscoderArgs(t *testing.T) {
	env := setupCLITestEnv(t)
	env.ensureDirs(t)

	for _, args := range [][]string{
		{"run", "-c:v", "hevc_vaapi"},
		{"run", "--hwaccel", "vaapi", "copy"},
	} {
		_, _, err := runCLI(t, args...)
		if err == nil || !strings.Contains(err.Error(), "must follow --") {
			t.Fatalf("%v: expected separator error, got %v", args, err)
		}
	}
	if _, err := os.Stat(filepath.Join(env.stateDir, "ffwatch.pid")); !os.IsNotExist(err) {
		t.Fatalf("daemon must not start without the separator, pid file: %v", err)
	}
}

func TestApplyRunFlagsRejectsInvalidLayout(t *testing.T) {
	env := setupCLITestEnv(t)
	base, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cmd := newRunCommand(newCommandContext(nil))
	if err := cmd.ParseFlags([]string{"--completion-dir", env.watchDir}); err != nil {
		t.Fatal(err)
	}
	if _, err := applyRunFlags(cmd, *base, nil); err == nil {
		t.Fatal("expected completion dir equal to watch dir to be rejected")
	}
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.ensureDirs(t)
	logPath := filepath.Join(env.stateDir, "ffwatch.log")
	if err := os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
