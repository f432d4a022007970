// Package jobs creates transcription jobs and drives them to a terminal
// state.
//
// Polling is strictly sequential per job. Each failed status read is
// classified: auth failures refresh once and retry immediately, network
// failures back off exponentially within an error budget, and everything
// else ends the loop.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/client/soap"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
)

const (
	DefaultInterval         = 10 * time.Second
	DefaultMaxInterval      = 60 * time.Second
	DefaultTimeout          = 10 * time.Minute
	DefaultMaxNetworkErrors = 10
)

type API interface {
	CreateJob(ctx context.Context, recordingPath string) (models.Job, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
	GetJobResult(ctx context.Context, id string) (models.RawResult, error)
}

type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Sleeper waits between polls. Sleep must return ctx.Err() as soon as ctx
// is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Config struct {
	Interval         time.Duration
	MaxInterval      time.Duration
	Timeout          time.Duration
	MaxNetworkErrors int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxInterval < c.Interval {
		c.MaxInterval = max(DefaultMaxInterval, c.Interval)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxNetworkErrors <= 0 {
		c.MaxNetworkErrors = DefaultMaxNetworkErrors
	}
	return c
}

// Result is a completed job with its payload already normalised.
// RecordingPath is empty when the backend did not report it.
type Result struct {
	JobID         string
	RecordingPath string
	Raw           models.RawResult
	Note          models.Note
}

type Poller struct {
	api       API
	refresher Refresher
	sleeper   Sleeper
	repo      metadata.Repository
	logger    logging.Logger
	cfg       Config
}

type Option func(*Poller)

func WithSleeper(s Sleeper) Option { return func(p *Poller) { p.sleeper = s } }

func WithRefresher(r Refresher) Option { return func(p *Poller) { p.refresher = r } }

func WithLogger(l logging.Logger) Option { return func(p *Poller) { p.logger = l } }

// WithRepository enables persisting the last job id and status.
func WithRepository(r metadata.Repository) Option { return func(p *Poller) { p.repo = r } }

func WithConfig(c Config) Option { return func(p *Poller) { p.cfg = c.withDefaults() } }

func NewPoller(api API, opts ...Option) *Poller {
	p := &Poller{
		api:     api,
		sleeper: timerSleeper{},
		logger:  logging.NewNop(),
		cfg:     Config{}.withDefaults(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Create starts a job for an uploaded recording.
func (p *Poller) Create(ctx context.Context, recordingPath string) (models.Job, error) {
	job, err := p.api.CreateJob(ctx, recordingPath)
	if err != nil {
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}
	if job.Status == "" {
		job.Status = models.JobPending
	}
	if job.RecordingPath == "" {
		job.RecordingPath = recordingPath
	}
	p.logger.Info(ctx, "job created", "job_id", job.ID, "recording", recordingPath)
	p.remember(ctx, job)
	return job, nil
}

type failureClass int

const (
	failTerminal failureClass = iota
	failAuth
	failNotFound
	failNetwork
	failContext
)

func classify(err error) failureClass {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failContext
	case errors.Is(err, client.ErrSessionExpired), errors.Is(err, client.ErrUnauthenticated):
		return failTerminal
	case errors.Is(err, client.ErrUnauthorized):
		return failAuth
	case errors.Is(err, client.ErrNotFound), strings.Contains(strings.ToLower(err.Error()), "job not found"):
		return failNotFound
	case client.IsNetworkError(err):
		return failNetwork
	}
	return failTerminal
}

// PollUntilTerminal reads the job status until it is complete or error.
// onStatusChange fires whenever the observed status differs from the last
// one. The whole loop is bounded by the configured timeout.
func (p *Poller) PollUntilTerminal(ctx context.Context, jobID string, onStatusChange func(models.JobStatus)) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	att := newAttempt(p.cfg.Interval)
	var (
		last          models.JobStatus
		recordingPath string
		wait          bool
		authRetried   bool
	)

	for {
		if wait {
			if err := p.sleeper.Sleep(ctx, att.CurrentInterval); err != nil {
				return Result{}, p.stopped(ctx, jobID, err)
			}
		}
		wait = true

		att.PollCount++
		job, err := p.api.GetJob(ctx, jobID)
		if err != nil {
			switch classify(err) {
			case failContext:
				return Result{}, p.stopped(ctx, jobID, err)

			case failAuth:
				if authRetried || p.refresher == nil {
					return Result{}, fmt.Errorf("%w: %w", client.ErrSessionExpired, err)
				}
				authRetried = true
				p.logger.Warn(ctx, "job poll unauthorized, refreshing", "job_id", jobID)
				if _, rerr := p.refresher.Refresh(ctx); rerr != nil {
					if ctx.Err() != nil {
						return Result{}, p.stopped(ctx, jobID, rerr)
					}
					return Result{}, fmt.Errorf("%w: %w", client.ErrSessionExpired, rerr)
				}
				wait = false
				continue

			case failNotFound:
				return Result{}, fmt.Errorf("%w: %s: %w", ErrJobNotFound, jobID, err)

			case failNetwork:
				if att.networkFailed(p.cfg.Interval, p.cfg.MaxInterval, p.cfg.MaxNetworkErrors) {
					p.logger.Error(ctx, "job polling exhausted", "job_id", jobID, "errors", att.ConsecutiveNetworkErrors, "error", err)
					return Result{}, fmt.Errorf("%w: %w", ErrPollingExhausted, err)
				}
				p.logger.Warn(ctx, "job poll failed, backing off",
					"job_id", jobID,
					"consecutive_errors", att.ConsecutiveNetworkErrors,
					"next_interval", att.CurrentInterval,
					"error", err)
				continue

			default:
				p.logger.Error(ctx, "job poll failed", "job_id", jobID, "error", err)
				return Result{}, fmt.Errorf("poll job %s: %w", jobID, err)
			}
		}

		authRetried = false
		att.succeeded(p.cfg.Interval)
		if job.RecordingPath != "" {
			recordingPath = job.RecordingPath
		}

		if job.Status != last {
			last = job.Status
			if job.ID == "" {
				job.ID = jobID
			}
			p.logger.Debug(ctx, "job status changed", "job_id", jobID, "status", job.Status, "poll", att.PollCount)
			p.remember(ctx, job)
			if onStatusChange != nil {
				onStatusChange(job.Status)
			}
		}

		switch job.Status {
		case models.JobComplete:
			res, err := p.fetchResult(ctx, jobID)
			res.RecordingPath = recordingPath
			return res, err
		case models.JobError:
			return Result{}, &JobFailedError{JobID: jobID, Message: job.ErrorMessage}
		}
	}
}

func (p *Poller) fetchResult(ctx context.Context, jobID string) (Result, error) {
	raw, err := p.api.GetJobResult(ctx, jobID)
	if err != nil {
		if classify(err) == failContext {
			return Result{}, p.stopped(ctx, jobID, err)
		}
		return Result{}, fmt.Errorf("fetch job result: %w", err)
	}

	note, err := soap.Parse(raw)
	if err != nil {
		return Result{}, err
	}
	p.logger.Info(ctx, "job complete", "job_id", jobID)
	return Result{JobID: jobID, Raw: raw, Note: note}, nil
}

// stopped reports why the loop was interrupted: the overall deadline is
// ErrTimeout, anything else is the caller's cancellation.
func (p *Poller) stopped(ctx context.Context, jobID string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.logger.Warn(ctx, "job polling timed out", "job_id", jobID, "timeout", p.cfg.Timeout)
		return fmt.Errorf("%w after %s", ErrTimeout, p.cfg.Timeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (p *Poller) remember(ctx context.Context, job models.Job) {
	if p.repo == nil {
		return
	}
	if err := SaveLastJob(ctx, p.repo, job); err != nil {
		p.logger.Warn(ctx, "persist last job", "job_id", job.ID, "error", err)
	}
}

// SaveLastJob records the last known job id, status and recording. A job
// without a recording path keeps the stored one only if it is the same job.
func SaveLastJob(ctx context.Context, repo metadata.Repository, job models.Job) error {
	if job.RecordingPath != "" {
		if err := metadata.SetText(ctx, repo, metadata.KeyLastJobRecordingPath, job.RecordingPath); err != nil {
			return err
		}
	} else {
		prev, _, err := metadata.GetText(ctx, repo, metadata.KeyLastJobID)
		if err != nil {
			return err
		}
		if prev != job.ID {
			if err := repo.Delete(ctx, metadata.KeyLastJobRecordingPath); err != nil {
				return err
			}
		}
	}
	if err := metadata.SetText(ctx, repo, metadata.KeyLastJobID, job.ID); err != nil {
		return err
	}
	return metadata.SetText(ctx, repo, metadata.KeyLastJobStatus, string(job.Status))
}

// LoadLastJob returns the persisted job, ok=false when none was recorded.
func LoadLastJob(ctx context.Context, repo metadata.Repository) (models.Job, bool, error) {
	id, ok, err := metadata.GetText(ctx, repo, metadata.KeyLastJobID)
	if err != nil || !ok {
		return models.Job{}, false, err
	}
	status, _, err := metadata.GetText(ctx, repo, metadata.KeyLastJobStatus)
	if err != nil {
		return models.Job{}, false, err
	}
	path, _, err := metadata.GetText(ctx, repo, metadata.KeyLastJobRecordingPath)
	if err != nil {
		return models.Job{}, false, err
	}
	return models.Job{ID: id, Status: models.JobStatus(status), RecordingPath: path}, true, nil
}
