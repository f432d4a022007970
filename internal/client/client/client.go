package client

import (
	"context"

	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
)

type Client interface {
	Ping(ctx context.Context) error
	CheckValidity(ctx context.Context) (Validity, error)
	Refresh(ctx context.Context) (string, error)
	CreateSignedUploadURL(ctx context.Context, filename string) (models.UploadTarget, error)
	CreateSignedURL(ctx context.Context, path string) (string, error)
	CreateJob(ctx context.Context, recordingPath string) (models.Job, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
	GetJobResult(ctx context.Context, id string) (models.RawResult, error)
	CompleteEncounter(ctx context.Context, s models.EncounterSubmission) (string, error)
}
