// Package jobs persists transcription jobs and their results.
package jobs

import (
	"context"

	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, job *models.Job) error
	// Get returns the job only if it belongs to userID; anything else is
	// common.ErrNotFound.
	Get(ctx context.Context, id, userID string) (*models.Job, error)
	// GetByID is the worker's unscoped read.
	GetByID(ctx context.Context, id string) (*models.Job, error)
	SetStatus(ctx context.Context, id string, status models.JobStatus) error
	Complete(ctx context.Context, id, transcript string, soapNote []byte, billing string) error
	Fail(ctx context.Context, id, message string) error
	// ListUnfinished returns ids of jobs not yet complete or error, oldest
	// first.
	ListUnfinished(ctx context.Context) ([]string, error)
}
