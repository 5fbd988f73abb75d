package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arbezerra/ffwatch/internal/fileutil"
	"github.com/arbezerra/ffwatch/internal/history"
	"github.com/arbezerra/ffwatch/internal/jobqueue"
	"github.com/arbezerra/ffwatch/internal/logging"
)

// Commit failure policies.
const (
	OnCommitFailureAbort = "abort"
	OnCommitFailureKeep  = "keep"
)

// Queue is the receiving side of the job handoff.
type Queue interface {
	Pop(ctx context.Context) (Job, error)
}

// Recorder persists job outcomes.
type Recorder interface {
	Record(ctx context.Context, entry history.Entry) error
}

// Owner is the uid/gid applied to committed files. -1 leaves a side unchanged.
type Owner struct {
	UID int
	GID int
}

// CommitError reports a failure after a successful transcode, while moving or
// re-owning the output.
type CommitError struct {
	JobID  string
	Op     string
	Staged string
	Final  string
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s (%s -> %s): %s: %v", e.JobID, e.Staged, e.Final, e.Op, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// WorkerConfig carries the fixed inputs of a Worker.
type WorkerConfig struct {
	Layout          Layout
	HWAccel         string
	Args            []string
	Owner           Owner
	OnCommitFailure string
}

// Worker is the single consumer of the job queue.
type Worker struct {
	queue      Queue
	transcoder Transcoder
	recorder   Recorder
	cfg        WorkerConfig
	logger     *slog.Logger
	chown      func(name string, uid, gid int) error
}

// NewWorker builds a worker. recorder may be nil.
func NewWorker(cfg WorkerConfig, queue Queue, transcoder Transcoder, recorder Recorder, logger *slog.Logger) *Worker {
	if cfg.OnCommitFailure == "" {
		cfg.OnCommitFailure = OnCommitFailureAbort
	}
	cfg.Args = append([]string(nil), cfg.Args...)
	return &Worker{
		queue:      queue,
		transcoder: transcoder,
		recorder:   recorder,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "worker"),
		chown:      os.Chown,
	}
}

// Run processes jobs in FIFO order until the queue is closed or ctx ends, in
// which case it returns nil. Under the abort policy a commit failure stops the
// loop and is returned as a *CommitError.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, jobqueue.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive job: %w", err)
		}
		if err := w.Process(ctx, job); err != nil {
			return err
		}
	}
}

// Process runs one job to completion. The only error it returns is a commit
// failure under the abort policy.
func (w *Worker) Process(ctx context.Context, job Job) error {
	staged, final := w.cfg.Layout.Paths(job.Input)
	logger := w.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String("input", job.Input),
	)
	logger.Info("transcode started",
		logging.String("staged", staged),
		logging.String(logging.FieldEventType, "transcode_started"),
	)

	started := time.Now()
	outcome := w.transcode(ctx, job, staged)
	entry := history.Entry{
		JobID:     job.ID,
		Input:     job.Input,
		StartedAt: started,
	}

	if !outcome.Succeeded() {
		w.discard(logger, staged)
		logger.Warn("transcode failed",
			logging.Error(outcome.Err),
			logging.Duration("elapsed", time.Since(started)),
			logging.String(logging.FieldEventType, "transcode_failed"),
			logging.String(logging.FieldImpact, "file was not transcoded; it stays in the watch directory"),
			logging.String(logging.FieldErrorHint, "check the transcoder output above for the cause"),
		)
		entry.Status = Failed.String()
		entry.Detail = errorDetail(outcome.Err)
		w.record(ctx, logger, entry)
		return nil
	}

	if err := w.commit(job, staged, final); err != nil {
		entry.Status = Failed.String()
		entry.Detail = err.Error()
		w.record(ctx, logger, entry)
		if w.cfg.OnCommitFailure == OnCommitFailureKeep {
			logger.Error("commit failed; staged output kept",
				logging.Error(err),
				logging.String("staged", staged),
				logging.String(logging.FieldEventType, "commit_failed"),
				logging.String(logging.FieldImpact, "transcoded output remains in the staging directory"),
				logging.String(logging.FieldErrorHint, "move the staged file manually and fix directory permissions"),
			)
			return nil
		}
		return err
	}

	entry.Status = Succeeded.String()
	entry.Output = final
	logger.Info("transcode succeeded",
		logging.String("output", final),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "transcode_succeeded"),
	)
	w.record(ctx, logger, entry)
	return nil
}

func (w *Worker) transcode(ctx context.Context, job Job, staged string) Outcome {
	if err := os.MkdirAll(filepath.Dir(staged), 0o755); err != nil {
		return Failure(fmt.Errorf("create staging directory: %w", err))
	}
	return w.transcoder.Transcode(ctx, Invocation{
		HWAccel: w.cfg.HWAccel,
		Input:   job.Input,
		Args:    w.cfg.Args,
		Output:  staged,
	})
}

func (w *Worker) commit(job Job, staged, final string) error {
	fail := func(op string, err error) error {
		return &CommitError{JobID: job.ID, Op: op, Staged: staged, Final: final, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return fail("create completion directory", err)
	}
	if err := fileutil.MoveFile(staged, final); err != nil {
		return fail("move", err)
	}
	if w.cfg.Owner.UID == -1 && w.cfg.Owner.GID == -1 {
		return nil
	}
	if err := w.chown(final, w.cfg.Owner.UID, w.cfg.Owner.GID); err != nil {
		return fail("chown", err)
	}
	return nil
}

// discard removes partial output; a missing file is not an error.
func (w *Worker) discard(logger *slog.Logger, staged string) {
	if err := os.Remove(staged); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove staged output",
			logging.String("staged", staged),
			logging.Error(err),
			logging.String(logging.FieldEventType, "staged_cleanup_failed"),
			logging.String(logging.FieldImpact, "partial output left in the staging directory"),
		)
	}
}

func (w *Worker) record(ctx context.Context, logger *slog.Logger, entry history.Entry) {
	if w.recorder == nil {
		return
	}
	entry.FinishedAt = time.Now()
	if err := w.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("failed to record job outcome",
			logging.Error(err),
			logging.String(logging.FieldEventType, "history_record_failed"),
		)
	}
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
