// Package models defines the client-side data shapes shared by the upload,
// job and encounter packages.
package models

// UploadTarget is a short-lived, single-use write location handed out by
// the backend for one file. It is never persisted.
type UploadTarget struct {
	DestinationURL string `json:"signedUrl"`
	Path           string `json:"path"`
}

// RecordingMetadata links an uploaded audio object to the job and encounter
// that reference it. A new upload replaces it wholesale.
type RecordingMetadata struct {
	Path                 string  `json:"path"`
	Name                 string  `json:"name"`
	Size                 int64   `json:"size"`
	DurationSeconds      float64 `json:"durationSeconds"`
	PlayableURL          *string `json:"playableUrl"`
	SourceIsExternalLink bool    `json:"sourceIsExternalLink"`
}
