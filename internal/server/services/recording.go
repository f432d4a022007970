package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/encounterscribe/internal/common"
	"github.com/google/uuid"
)

// ObjectStore is the object storage the recording service hands out URLs
// for. storage.S3Store satisfies it.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// UploadTarget is a signed write location for one recording.
type UploadTarget struct {
	URL  string
	Path string
}

// RecordingService issues signed URLs for recordings. Object keys are
// "<userID>/<uuid>-<filename>", so the owner is always the first segment.
type RecordingService struct {
	store ObjectStore
}

func NewRecordingService(store ObjectStore) *RecordingService {
	return &RecordingService{store: store}
}

func (s *RecordingService) CreateUploadURL(ctx context.Context, userID, filename string) (UploadTarget, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return UploadTarget{}, fmt.Errorf("%w: filename is required", common.ErrValidation)
	}

	key := userID + "/" + uuid.NewString() + "-" + name
	url, err := s.store.PresignPut(ctx, key, contentType(name))
	if err != nil {
		return UploadTarget{}, err
	}
	return UploadTarget{URL: url, Path: key}, nil
}

// CreateDownloadURL signs a read URL for a recording the user owns. Other
// users' paths are reported as not found.
func (s *RecordingService) CreateDownloadURL(ctx context.Context, userID, key string) (string, error) {
	if !OwnsPath(userID, key) {
		return "", common.ErrNotFound
	}
	return s.store.PresignGet(ctx, key)
}

// Exists reports whether the user's recording has landed in storage.
func (s *RecordingService) Exists(ctx context.Context, userID, key string) (bool, error) {
	if !OwnsPath(userID, key) {
		return false, nil
	}
	return s.store.Exists(ctx, key)
}

// OwnsPath reports whether key lies in userID's namespace.
func OwnsPath(userID, key string) bool {
	if userID == "" || key == "" {
		return false
	}
	if path.Clean(key) != key || strings.Contains(key, "..") {
		return false
	}
	rest, ok := strings.CutPrefix(key, userID+"/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}

// sanitizeFilename keeps the base name with letters, digits, dot, dash and
// underscore; anything else becomes an underscore.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, name)
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
