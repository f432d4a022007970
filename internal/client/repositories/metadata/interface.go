// Package metadata is the client's durable key/value store. It backs the
// credential, the encounter draft mirror, the current recording metadata and
// the last known job id/status.
package metadata

import (
	"context"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

// Keys used by the client.
const (
	KeyAccessToken       = "access_token"
	KeyRecordingMetadata = "recording_metadata"
	KeyLastJobID         = "last_job_id"
	KeyLastJobStatus     = "last_job_status"
	// KeyLastJobRecordingPath is the recording the last job was created for.
	KeyLastJobRecordingPath = "last_job_recording_path"

	// DraftPrefix namespaces the draft field mirror, e.g. "draft.plan".
	DraftPrefix = "draft."
)
