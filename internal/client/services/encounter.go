package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/client/encounters"
	"github.com/dmitrijs2005/encounterscribe/internal/client/jobs"
	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/client/recording"
	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/client/upload"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
	"github.com/google/uuid"
)

// FileUploader stores a local recording in backend storage.
type FileUploader interface {
	UploadFile(ctx context.Context, path string, onProgress func(upload.Progress)) (models.RecordingMetadata, error)
}

// JobRunner creates jobs and waits for them.
type JobRunner interface {
	Create(ctx context.Context, recordingPath string) (models.Job, error)
	PollUntilTerminal(ctx context.Context, jobID string, onStatusChange func(models.JobStatus)) (jobs.Result, error)
}

// Callbacks lets the caller follow a long-running flow. Nil fields are
// skipped.
type Callbacks struct {
	OnProgress func(upload.Progress)
	OnStatus   func(models.JobStatus)
	OnJob      func(models.Job)
}

// EncounterService drives the new-encounter flow: recording or file →
// upload → job → poll → draft → submit.
type EncounterService struct {
	uploader  FileUploader
	jobs      JobRunner
	drafts    *encounters.DraftStore
	submitter *encounters.Submitter
	repo      metadata.Repository
	dir       string
	logger    logging.Logger
}

// NewEncounterService wires the flow. Recordings made locally are written
// under recordingsDir before upload.
func NewEncounterService(uploader FileUploader, runner JobRunner, drafts *encounters.DraftStore,
	submitter *encounters.Submitter, repo metadata.Repository, recordingsDir string, logger logging.Logger) *EncounterService {
	return &EncounterService{
		uploader:  uploader,
		jobs:      runner,
		drafts:    drafts,
		submitter: submitter,
		repo:      repo,
		dir:       recordingsDir,
		logger:    logger,
	}
}

func (s *EncounterService) Draft() models.Draft {
	return s.drafts.Draft()
}

func (s *EncounterService) Drafts() *encounters.DraftStore {
	return s.drafts
}

// Upload sends a local file and attaches it to the draft. The new
// recording's metadata replaces any previous one.
func (s *EncounterService) Upload(ctx context.Context, path string, cb Callbacks) (models.RecordingMetadata, error) {
	meta, err := s.uploader.UploadFile(ctx, path, cb.OnProgress)
	if err != nil {
		return models.RecordingMetadata{}, err
	}
	if err := upload.SaveMetadata(ctx, s.repo, meta); err != nil {
		return models.RecordingMetadata{}, fmt.Errorf("save recording metadata: %w", err)
	}
	if err := s.drafts.AttachRecording(ctx, meta.Path); err != nil {
		return models.RecordingMetadata{}, err
	}
	return meta, nil
}

// Process runs a job on an uploaded recording and fills the draft from the
// result.
func (s *EncounterService) Process(ctx context.Context, recordingPath string, cb Callbacks) (jobs.Result, error) {
	job, err := s.jobs.Create(ctx, recordingPath)
	if err != nil {
		return jobs.Result{}, err
	}
	if cb.OnJob != nil {
		cb.OnJob(job)
	}
	return s.await(ctx, job.ID, recordingPath, cb)
}

// Resume polls a job created earlier, e.g. before a restart. The result is
// applied only if the job ran on the recording the draft holds now.
func (s *EncounterService) Resume(ctx context.Context, jobID string, cb Callbacks) (jobs.Result, error) {
	var recordingPath string
	last, ok, err := jobs.LoadLastJob(ctx, s.repo)
	if err != nil {
		s.logger.Warn(ctx, "load last job", "error", err)
	} else if ok && last.ID == jobID {
		recordingPath = last.RecordingPath
	}
	return s.await(ctx, jobID, recordingPath, cb)
}

// LastJob returns the job remembered from the previous run, if any.
func (s *EncounterService) LastJob(ctx context.Context) (models.Job, bool, error) {
	return jobs.LoadLastJob(ctx, s.repo)
}

func (s *EncounterService) await(ctx context.Context, jobID, recordingPath string, cb Callbacks) (jobs.Result, error) {
	res, err := s.jobs.PollUntilTerminal(ctx, jobID, cb.OnStatus)
	if err != nil {
		return jobs.Result{}, err
	}
	if recordingPath == "" {
		recordingPath = res.RecordingPath
	}
	if err := s.drafts.ApplyNote(ctx, recordingPath, res.Note); err != nil {
		return res, err
	}
	return res, nil
}

// UploadAndProcess is Upload followed by Process.
func (s *EncounterService) UploadAndProcess(ctx context.Context, path string, cb Callbacks) (models.RecordingMetadata, jobs.Result, error) {
	meta, err := s.Upload(ctx, path, cb)
	if err != nil {
		return models.RecordingMetadata{}, jobs.Result{}, err
	}
	res, err := s.Process(ctx, meta.Path, cb)
	return meta, res, err
}

// SaveRecording writes a finished capture to the recordings directory and
// returns its path.
func (s *EncounterService) SaveRecording(rec recording.Recording) (string, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}
	stamp := rec.StartedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	name := fmt.Sprintf("encounter-%s-%s.wav", stamp.UTC().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)
	if err := rec.WriteFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// Set edits one draft field.
func (s *EncounterService) Set(ctx context.Context, f encounters.Field, value string) error {
	return s.drafts.Set(ctx, f, value)
}

// Submit persists the current draft as an encounter.
func (s *EncounterService) Submit(ctx context.Context) (string, error) {
	return s.submitter.Submit(ctx, s.drafts.Draft())
}

// Discard throws the draft and its recording metadata away.
func (s *EncounterService) Discard(ctx context.Context) error {
	return s.drafts.Reset(ctx)
}
