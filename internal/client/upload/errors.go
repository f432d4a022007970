package upload

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/encounterscribe/internal/filex"
)

// DestinationError: no upload target could be obtained from the backend.
// Auth failures stay matchable through Unwrap.
type DestinationError struct {
	Err error
}

func (e *DestinationError) Error() string {
	return "could not get an upload destination: " + e.Err.Error()
}

func (e *DestinationError) Unwrap() error { return e.Err }

// TransferError: the bytes did not reach storage. FileTooLarge marks the
// oversize rejection; Size is the file size in bytes when known.
type TransferError struct {
	FileTooLarge bool
	Size         int64
	StatusCode   int
	Err          error
}

func (e *TransferError) Error() string {
	if e.FileTooLarge {
		return fmt.Sprintf("file is too large to upload (%s)", filex.SizeMB(e.Size))
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// oversizeMarkers are matched against storage error bodies that do not use
// 413. Kept for storage backends that answer 400 with a text reason.
var oversizeMarkers = []string{
	"payload too large",
	"entity too large",
	"entitytoolarge",
	"file too large",
	"exceeded the maximum allowed size",
	"maximum allowed size",
	"object size",
}

func looksOversize(body string) bool {
	b := strings.ToLower(body)
	for _, m := range oversizeMarkers {
		if strings.Contains(b, m) {
			return true
		}
	}
	return false
}
