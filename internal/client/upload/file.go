package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/client/recording"
	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
)

// DurationDetector reports the playback length of a local audio file.
type DurationDetector interface {
	Detect(ctx context.Context, path string, size int64) float64
}

type sizeEstimate struct{}

func (sizeEstimate) Detect(_ context.Context, _ string, size int64) float64 {
	return recording.EstimateDuration(size)
}

// UploadFile uploads a local file and returns the metadata describing the
// stored recording.
func (u *Uploader) UploadFile(ctx context.Context, path string, onProgress func(Progress)) (models.RecordingMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.RecordingMetadata{}, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return models.RecordingMetadata{}, fmt.Errorf("stat recording: %w", err)
	}
	if st.IsDir() {
		return models.RecordingMetadata{}, fmt.Errorf("%s is a directory", path)
	}

	res, err := u.Upload(ctx, path, f, st.Size(), onProgress)
	if err != nil {
		return models.RecordingMetadata{}, err
	}

	m := models.RecordingMetadata{
		Path:            res.Path,
		Name:            filepath.Base(path),
		Size:            st.Size(),
		DurationSeconds: u.durations.Detect(ctx, path, st.Size()),
	}
	if res.PlayableURL != "" {
		playable := res.PlayableURL
		m.PlayableURL = &playable
	}
	return m, nil
}

// SaveMetadata replaces the stored recording metadata.
func SaveMetadata(ctx context.Context, repo metadata.Repository, m models.RecordingMetadata) error {
	return metadata.SetJSON(ctx, repo, metadata.KeyRecordingMetadata, m)
}

// LoadMetadata returns the stored recording metadata. A stored value that
// does not decode is logged and reported as absent.
func LoadMetadata(ctx context.Context, repo metadata.Repository, logger logging.Logger) (models.RecordingMetadata, bool, error) {
	var m models.RecordingMetadata
	ok, err := metadata.GetJSON(ctx, repo, metadata.KeyRecordingMetadata, &m)
	if errors.Is(err, metadata.ErrUndecodable) {
		logger.Warn(ctx, "ignoring unreadable recording metadata", "error", err)
		return models.RecordingMetadata{}, false, nil
	}
	if err != nil || !ok {
		return models.RecordingMetadata{}, ok, err
	}
	return m, true, nil
}

func ClearMetadata(ctx context.Context, repo metadata.Repository) error {
	return repo.Delete(ctx, metadata.KeyRecordingMetadata)
}
