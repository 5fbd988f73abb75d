// Package pipeline wires the watcher, filter, job queue, and transcode worker
// together and owns their lifecycle.
//
// Run drives the watch loop on the calling goroutine and the worker on a
// second goroutine. Notifications are filtered into jobs and pushed without
// blocking; the worker pops them in FIFO order and runs at most one transcode
// at a time.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arbezerra/ffwatch/internal/config"
	"github.com/arbezerra/ffwatch/internal/filter"
	"github.com/arbezerra/ffwatch/internal/jobqueue"
	"github.com/arbezerra/ffwatch/internal/logging"
	"github.com/arbezerra/ffwatch/internal/transcode"
	"github.com/arbezerra/ffwatch/internal/watcher"
)

// ErrSourceClosed is returned when the notification stream ends while the
// pipeline is still supposed to be running.
var ErrSourceClosed = errors.New("watch notification stream closed")

// Pipeline coordinates detection and execution.
type Pipeline struct {
	cfg    *config.Config
	source watcher.Source
	filter *filter.Filter
	queue  *jobqueue.Queue[transcode.Job]
	worker *transcode.Worker
	logger *slog.Logger
}

// New builds a pipeline over source. recorder may be nil.
func New(cfg *config.Config, source watcher.Source, tc transcode.Transcoder, recorder transcode.Recorder, logger *slog.Logger) *Pipeline {
	queue := jobqueue.New[transcode.Job]()
	workerCfg := transcode.WorkerConfig{
		Layout: transcode.Layout{
			WatchDir:      cfg.Paths.WatchDir,
			StagingDir:    cfg.Paths.StagingDir,
			CompletionDir: cfg.Paths.CompletionDir,
		},
		HWAccel:         cfg.Transcoder.HWAccel,
		Args:            cfg.Transcoder.Args,
		Owner:           transcode.Owner{UID: cfg.Ownership.UID, GID: cfg.Ownership.GID},
		OnCommitFailure: cfg.Commit.OnFailure,
	}
	return &Pipeline{
		cfg:    cfg,
		source: source,
		filter: filter.New(filter.NewExtensions(cfg.Filter.AllowedExtensions), logger),
		queue:  queue,
		worker: transcode.NewWorker(workerCfg, queue, tc, recorder, logger),
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Pending reports the number of jobs waiting for the worker.
func (p *Pipeline) Pending() int {
	return p.queue.Len()
}

// Run blocks until ctx is cancelled, the notification stream ends, or the
// worker stops on a commit failure. On exit it closes the source, drops any
// pending jobs, and waits for the worker. Cancellation is a clean exit.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("watching for new files",
		logging.String("watch_dir", p.cfg.Paths.WatchDir),
		logging.String("staging_dir", p.cfg.Paths.StagingDir),
		logging.String("completion_dir", p.cfg.Paths.CompletionDir),
		logging.Strings("extensions", p.cfg.Filter.AllowedExtensions),
		logging.String(logging.FieldEventType, "pipeline_started"),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerDone := make(chan error, 1)
	go func() {
		err := p.worker.Run(ctx)
		if err != nil {
			cancel()
		}
		workerDone <- err
	}()

	loopErr := p.watch(ctx)

	if err := p.source.Close(); err != nil {
		p.logger.Warn("failed to close watcher", logging.Error(err))
	}
	if dropped := p.queue.Close(); dropped > 0 {
		p.logger.Warn("pending jobs dropped at shutdown",
			logging.Int("count", dropped),
			logging.String(logging.FieldEventType, "jobs_dropped"),
			logging.String(logging.FieldImpact, "files stay in the watch directory and are not picked up again until rewritten"),
		)
	}
	workerErr := <-workerDone

	if workerErr != nil {
		p.logger.Error("worker stopped",
			logging.Error(workerErr),
			logging.String(logging.FieldEventType, "worker_stopped"),
			logging.String(logging.FieldErrorHint, "fix the completion directory and restart, or set commit.on_failure = \"keep\""),
		)
		return workerErr
	}
	if loopErr != nil {
		return loopErr
	}
	p.logger.Info("pipeline stopped", logging.String(logging.FieldEventType, "pipeline_stopped"))
	return nil
}

func (p *Pipeline) watch(ctx context.Context) error {
	notifications := p.source.Notifications()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifications:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSourceClosed
			}
			if n.Err != nil {
				p.logger.Warn("watch error",
					logging.Error(n.Err),
					logging.String(logging.FieldEventType, "watch_error"),
				)
				continue
			}
			p.enqueue(n.Event)
		}
	}
}

func (p *Pipeline) enqueue(ev watcher.Event) {
	for _, path := range p.filter.Accept(ev) {
		job := transcode.NewJob(path, time.Now())
		if err := p.queue.Push(job); err != nil {
			p.logger.Warn("job not queued",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		p.logger.Info("file detected",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("path", path),
			logging.String("trigger", ev.Kind.String()),
			logging.Int("pending", p.Pending()),
			logging.String(logging.FieldEventType, "file_detected"),
		)
	}
}
