package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/filex"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
	jobsrepo "github.com/dmitrijs2005/encounterscribe/internal/server/repositories/jobs"
	"golang.org/x/sync/errgroup"
)

var ErrQueueFull = errors.New("job queue is full")

const (
	DefaultWorkers    = 2
	DefaultQueueSize  = 64
	DefaultJobTimeout = 15 * time.Minute
)

// Opener reads a stored recording.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Config struct {
	Workers    int
	QueueSize  int
	MaxSize    int64
	JobTimeout time.Duration
}

// Pool runs queued jobs on a fixed number of workers. Job ids wait in a
// bounded channel; a full queue is reported to the caller rather than
// blocking a request.
type Pool struct {
	repo   jobsrepo.Repository
	store  Opener
	proc   Processor
	cfg    Config
	logger logging.Logger
	queue  chan string
}

func NewPool(repo jobsrepo.Repository, store Opener, proc Processor, cfg Config, logger logging.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	return &Pool{
		repo:   repo,
		store:  store,
		proc:   proc,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan string, cfg.QueueSize),
	}
}

func (p *Pool) Enqueue(ctx context.Context, jobID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the workers and requeues jobs left unfinished by a previous
// run. It returns when ctx is cancelled and every worker has finished its
// current job.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := range p.cfg.Workers {
		g.Go(func() error {
			p.work(gctx, i)
			return nil
		})
	}
	g.Go(func() error {
		p.resume(gctx)
		return nil
	})

	p.logger.Info(ctx, "job workers started", "workers", p.cfg.Workers)
	return g.Wait()
}

func (p *Pool) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			p.Process(ctx, id)
			p.logger.Debug(ctx, "worker idle", "worker", worker)
		}
	}
}

func (p *Pool) resume(ctx context.Context) {
	ids, err := p.repo.ListUnfinished(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error(ctx, "list unfinished jobs", "error", err)
		}
		return
	}
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return
		case p.queue <- id:
			p.logger.Info(ctx, "job requeued", "job_id", id)
		}
	}
}

// Process drives one job to complete or error. When ctx is cancelled by
// shutdown the job is left as it is and picked up again on the next start.
func (p *Pool) Process(ctx context.Context, jobID string) {
	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	err := p.process(jobCtx, jobID)
	switch {
	case err == nil:
		p.logger.Info(ctx, "job complete", "job_id", jobID)
	case ctx.Err() != nil:
		p.logger.Warn(ctx, "job interrupted by shutdown", "job_id", jobID)
	default:
		p.logger.Error(ctx, "job failed", "job_id", jobID, "error", err)
		if ferr := p.repo.Fail(context.WithoutCancel(ctx), jobID, failureMessage(err)); ferr != nil {
			p.logger.Error(ctx, "mark job failed", "job_id", jobID, "error", ferr)
		}
	}
}

func (p *Pool) process(ctx context.Context, jobID string) error {
	job, err := p.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.Terminal() {
		return nil
	}

	if err := p.repo.SetStatus(ctx, jobID, models.JobTranscribing); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	audio, err := p.read(ctx, job.RecordingPath)
	if err != nil {
		return err
	}
	transcript, err := p.proc.Transcribe(ctx, audio, path.Base(job.RecordingPath))
	if err != nil {
		return &stageError{stage: "transcription", err: err}
	}
	if strings.TrimSpace(transcript) == "" {
		return &stageError{stage: "transcription", err: errors.New("no speech detected in recording")}
	}

	if err := p.repo.SetStatus(ctx, jobID, models.JobGenerating); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	note, err := p.proc.GenerateNote(ctx, transcript)
	if err != nil {
		return &stageError{stage: "note generation", err: err}
	}

	soap, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	if err := p.repo.Complete(ctx, jobID, transcript, soap, note.BillingSuggestion); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (p *Pool) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.store.Open(ctx, key)
	if err != nil {
		return nil, &stageError{stage: "download", err: err}
	}
	defer rc.Close()

	r := io.Reader(rc)
	if p.cfg.MaxSize > 0 {
		r = io.LimitReader(rc, p.cfg.MaxSize+1)
	}
	audio, err := io.ReadAll(r)
	if err != nil {
		return nil, &stageError{stage: "download", err: err}
	}
	if p.cfg.MaxSize > 0 && int64(len(audio)) > p.cfg.MaxSize {
		return nil, &stageError{stage: "download", err: fmt.Errorf("recording exceeds %s", filex.SizeMB(p.cfg.MaxSize))}
	}
	if len(audio) == 0 {
		return nil, &stageError{stage: "download", err: errors.New("recording is empty")}
	}
	return audio, nil
}

// stageError names the pipeline step that failed; its text is what the
// client shows as the job's error message.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + " failed: " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func failureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "processing timed out"
	}
	var se *stageError
	if errors.As(err, &se) {
		return se.Error()
	}
	return "internal error while processing the recording"
}
