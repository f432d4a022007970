package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/encounterscribe/internal/common"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
	"github.com/dmitrijs2005/encounterscribe/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ErrRecordingMissing means the job names a recording that is not in
// storage (yet).
var ErrRecordingMissing = errors.New("recording not found")

// Enqueuer hands a job id to the processing pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

type JobService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	recordings  *RecordingService
	queue       Enqueuer
	logger      logging.Logger
}

func NewJobService(db *sql.DB, m repomanager.RepositoryManager, recordings *RecordingService, queue Enqueuer, logger logging.Logger) *JobService {
	return &JobService{db: db, repomanager: m, recordings: recordings, queue: queue, logger: logger}
}

// Create records a pending job for one of the user's uploaded recordings
// and queues it. If it cannot be queued the job is marked as failed, so a
// poller never waits on a job nobody will run.
func (s *JobService) Create(ctx context.Context, userID, recordingPath string) (*models.Job, error) {
	if recordingPath == "" {
		return nil, fmt.Errorf("%w: recordingPath is required", common.ErrValidation)
	}
	ok, err := s.recordings.Exists(ctx, userID, recordingPath)
	if err != nil {
		return nil, fmt.Errorf("check recording: %w", err)
	}
	if !ok {
		return nil, ErrRecordingMissing
	}

	job := &models.Job{
		ID:            uuid.NewString(),
		UserID:        userID,
		RecordingPath: recordingPath,
		Status:        models.JobPending,
	}
	repo := s.repomanager.Jobs(s.db)
	if err := repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("error creating job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		s.logger.Error(ctx, "job not queued", "job_id", job.ID, "error", err)
		job.Status = models.JobError
		job.ErrorMessage = "processing queue unavailable, please retry"
		if ferr := repo.Fail(context.WithoutCancel(ctx), job.ID, job.ErrorMessage); ferr != nil {
			s.logger.Error(ctx, "mark unqueued job failed", "job_id", job.ID, "error", ferr)
		}
		return job, nil
	}

	s.logger.Info(ctx, "job created", "job_id", job.ID, "user_id", userID)
	return job, nil
}

// Get returns the user's job; other users' jobs are not found.
func (s *JobService) Get(ctx context.Context, userID, jobID string) (*models.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, common.ErrNotFound
	}
	return s.repomanager.Jobs(s.db).Get(ctx, jobID, userID)
}
