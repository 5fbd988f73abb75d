package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/arbezerra/ffwatch/internal/config"
	"github.com/arbezerra/ffwatch/internal/history"
	"github.com/arbezerra/ffwatch/internal/logging"
	"github.com/arbezerra/ffwatch/internal/testsupport"
	"github.com/arbezerra/ffwatch/internal/transcode"
	"github.com/arbezerra/ffwatch/internal/watcher"
)

type fakeSource struct {
	ch        chan watcher.Notification
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan watcher.Notification, 16), closed: make(chan struct{})}
}

func (s *fakeSource) Notifications() <-chan watcher.Notification { return s.ch }

func (s *fakeSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSource) emit(kind watcher.Kind, paths ...string) {
	s.ch <- watcher.Notification{Event: watcher.Event{Kind: kind, Op: kind.String(), Paths: paths}}
}

type fakeTranscoder struct {
	mu     sync.Mutex
	inputs []string
	fail   bool
	block  chan struct{}
}

func (f *fakeTranscoder) Transcode(ctx context.Context, inv transcode.Invocation) transcode.Outcome {
	f.mu.Lock()
	f.inputs = append(f.inputs, inv.Input)
	f.mu.Unlock()

	if err := os.WriteFile(inv.Output, []byte("out"), 0o644); err != nil {
		return transcode.Failure(err)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return transcode.Failure(ctx.Err())
		}
	}
	if f.fail {
		return transcode.Failure(errors.New("exit status 1"))
	}
	return transcode.Success()
}

func (f *fakeTranscoder) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

type chanRecorder chan history.Entry

func (r chanRecorder) Record(_ context.Context, entry history.Entry) error {
	r <- entry
	return nil
}

func waitEntry(t *testing.T, r chanRecorder) history.Entry {
	t.Helper()
	select {
	case entry := <-r:
		return entry
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a job outcome")
		return history.Entry{}
	}
}

func startPipeline(t *testing.T, cfg *config.Config, src *fakeSource, tc transcode.Transcoder, rec transcode.Recorder) (context.CancelFunc, <-chan error) {
	t.Helper()
	p := New(cfg, src, tc, rec, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
		return nil
	}
}

func TestPipelineTranscodesEligibleFilesInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := newFakeSource()
	tc := &fakeTranscoder{}
	rec := make(chanRecorder, 8)
	cancel, done := startPipeline(t, cfg, src, tc, rec)

	a := filepath.Join(cfg.Paths.WatchDir, "a.mkv")
	b := filepath.Join(cfg.Paths.WatchDir, "season", "b.mp4")
	testsupport.WriteFile(t, a, 16)
	testsupport.WriteFile(t, b, 16)

	src.emit(watcher.KindOther, a)
	src.emit(watcher.KindCloseWrite, a, filepath.Join(cfg.Paths.WatchDir, "notes.txt"))
	src.emit(watcher.KindRenamedTo, b)
	src.emit(watcher.KindCloseWrite, filepath.Join(cfg.Paths.WatchDir, "UPPER.MKV"))

	first := waitEntry(t, rec)
	second := waitEntry(t, rec)
	if first.Input != a || second.Input != b {
		t.Fatalf("unexpected order: %s, %s", first.Input, second.Input)
	}
	if first.Status != "succeeded" || second.Status != "succeeded" {
		t.Fatalf("unexpected statuses %s, %s", first.Status, second.Status)
	}
	for _, rel := range []string{"a.mkv", filepath.Join("season", "b.mp4")} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.CompletionDir, rel)); err != nil {
			t.Fatalf("expected %s in completion dir: %v", rel, err)
		}
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	select {
	case <-src.closed:
	default:
		t.Fatal("expected source to be closed on shutdown")
	}
	if got := tc.seen(); len(got) != 2 {
		t.Fatalf("expected exactly 2 transcodes, got %v", got)
	}
}

func TestPipelineDuplicateNotificationsRunTwice(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := newFakeSource()
	tc := &fakeTranscoder{}
	rec := make(chanRecorder, 8)
	cancel, done := startPipeline(t, cfg, src, tc, rec)

	a := filepath.Join(cfg.Paths.WatchDir, "a.mkv")
	testsupport.WriteFile(t, a, 1)
	src.emit(watcher.KindCloseWrite, a)
	waitEntry(t, rec)
	src.emit(watcher.KindCloseWrite, a)
	waitEntry(t, rec)

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got := tc.seen(); len(got) != 2 {
		t.Fatalf("expected two runs for two notifications, got %v", got)
	}
}

func TestPipelineFailedJobDoesNotStopProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := newFakeSource()
	rec := make(chanRecorder, 8)
	cancel, done := startPipeline(t, cfg, src, &fakeTranscoder{fail: true}, rec)

	for _, name := range []string{"x.mkv", "y.mkv"} {
		path := filepath.Join(cfg.Paths.WatchDir, name)
		testsupport.WriteFile(t, path, 1)
		src.emit(watcher.KindCloseWrite, path)
	}
	for range 2 {
		if entry := waitEntry(t, rec); entry.Status != "failed" {
			t.Fatalf("expected failed outcome, got %+v", entry)
		}
	}
	entries, _ := os.ReadDir(cfg.Paths.StagingDir)
	if len(entries) != 0 {
		t.Fatalf("expected staging to be empty after failures, found %d entries", len(entries))
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestPipelineWatchErrorsAreNotFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := newFakeSource()
	rec := make(chanRecorder, 8)
	cancel, done := startPipeline(t, cfg, src, &fakeTranscoder{}, rec)

	src.ch <- watcher.Notification{Err: watcher.ErrRootRemoved}
	a := filepath.Join(cfg.Paths.WatchDir, "a.mkv")
	testsupport.WriteFile(t, a, 1)
	src.emit(watcher.KindCloseWrite, a)
	if entry := waitEntry(t, rec); entry.Input != a {
		t.Fatalf("unexpected entry %+v", entry)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestPipelineCommitAbortStopsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCommitPolicy(config.CommitAbort))
	src := newFakeSource()
	rec := make(chanRecorder, 8)
	_, done := startPipeline(t, cfg, src, &fakeTranscoder{}, rec)

	if err := os.WriteFile(filepath.Join(cfg.Paths.CompletionDir, "sub"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	input := filepath.Join(cfg.Paths.WatchDir, "sub", "a.mkv")
	testsupport.WriteFile(t, input, 1)
	src.emit(watcher.KindCloseWrite, input)

	err := waitDone(t, done)
	var commitErr *transcode.CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected commit error, got %v", err)
	}
}

func TestPipelineShutdownInterruptsRunningJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := newFakeSource()
	tc := &fakeTranscoder{block: make(chan struct{})}
	rec := make(chanRecorder, 8)
	cancel, done := startPipeline(t, cfg, src, tc, rec)

	for _, name := range []string{"running.mkv", "queued.mkv"} {
		path := filepath.Join(cfg.Paths.WatchDir, name)
		testsupport.WriteFile(t, path, 1)
		src.emit(watcher.KindCloseWrite, path)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(tc.seen()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	entry := waitEntry(t, rec)
	if entry.Status != "failed" {
		t.Fatalf("interrupted job should fail, got %+v", entry)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StagingDir, "running.mkv")); !os.IsNotExist(err) {
		t.Fatalf("expected partial output removed, got %v", err)
	}
	if got := tc.seen(); len(got) != 1 {
		t.Fatalf("queued job must be dropped, transcoder saw %v", got)
	}
}

func TestPipelineSourceClosedReturnsError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := newFakeSource()
	_, done := startPipeline(t, cfg, src, &fakeTranscoder{}, nil)

	close(src.ch)
	if err := waitDone(t, done); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
}

func TestPipelinePendingCountsQueuedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := newFakeSource()
	tc := &fakeTranscoder{block: make(chan struct{})}
	p := New(cfg, src, tc, nil, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv"} {
		path := filepath.Join(cfg.Paths.WatchDir, name)
		testsupport.WriteFile(t, path, 1)
		src.emit(watcher.KindCloseWrite, path)
	}
	deadline := time.Now().Add(5 * time.Second)
	for (len(tc.seen()) == 0 || p.Pending() != 2) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := p.Pending(); got != 2 {
		t.Fatalf("expected two jobs waiting behind the running one, got %d", got)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got := p.Pending(); got != 0 {
		t.Fatalf("pending jobs should be dropped at shutdown, got %d", got)
	}
}
