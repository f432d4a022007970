package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
	"github.com/dmitrijs2005/encounterscribe/internal/client/encounters"
	"github.com/dmitrijs2005/encounterscribe/internal/client/jobs"
	"github.com/dmitrijs2005/encounterscribe/internal/client/recording"
	"github.com/dmitrijs2005/encounterscribe/internal/client/soap"
	"github.com/dmitrijs2005/encounterscribe/internal/client/upload"
	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"cancelled", fmt.Errorf("poll: %w", context.Canceled), "Cancelled."},
		{"unauthenticated", client.ErrUnauthenticated, "You are not signed in. Use 'login' first."},
		{
			"expired wins over the status it wraps",
			fmt.Errorf("%w: %w", client.ErrSessionExpired, &client.StatusError{Code: http.StatusUnauthorized}),
			"Your session has expired. Please sign in again with 'login'.",
		},
		{"bad login", fmt.Errorf("login error: %w", client.ErrInvalidCredentials), "Invalid email or password."},
		{
			"validation lists every field",
			&encounters.ValidationError{MissingFields: []string{"name", "plan"}},
			"Please fill in: name, plan.",
		},
		{"server text verbatim", &encounters.ServerError{Message: "Duplicate encounter"}, "Duplicate encounter"},
		{
			"too large",
			&upload.TransferError{FileTooLarge: true, Size: 150 << 20},
			"The file is too large to upload (150.0MB). Try a shorter recording.",
		},
		{
			"destination",
			&upload.DestinationError{Err: &client.NetworkError{Err: errors.New("refused")}},
			"Could not prepare the upload. Check your connection and try again.",
		},
		{
			"transfer",
			&upload.TransferError{StatusCode: 500, Err: errors.New("boom")},
			"Upload failed: upload failed with status 500: boom",
		},
		{
			"exhausted",
			fmt.Errorf("%w: %w", jobs.ErrPollingExhausted, &client.NetworkError{Err: errors.New("x")}),
			"Lost contact with the server while processing. Your recording is saved; use 'poll' to check again.",
		},
		{"timeout", jobs.ErrTimeout, "Processing is taking longer than expected. Use 'poll' to check again later."},
		{"not found", fmt.Errorf("%w: j1", jobs.ErrJobNotFound), "The processing job no longer exists. Process the recording again."},
		{"job failed", &jobs.JobFailedError{JobID: "j", Message: "no speech"}, "Processing failed: no speech"},
		{"job failed no text", &jobs.JobFailedError{JobID: "j"}, "Processing failed."},
		{"malformed", fmt.Errorf("%w: bad", soap.ErrMalformedResult), "The result could not be read. Try processing the recording again."},
		{"stale", encounters.ErrStaleRecording, "That result belongs to an older recording and was not applied."},
		{"mic", fmt.Errorf("%w: exec: not found", recording.ErrCaptureUnavailable), "The microphone is not available. Check that it is connected and ffmpeg is installed."},
		{"busy", recording.ErrAlreadyRecording, "A recording is already in progress. Use 'stop' to finish it."},
		{"network", &client.NetworkError{Err: errors.New("dial")}, "Cannot reach the server. Check your connection and try again."},
		{"other", errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userMessage(tt.err))
		})
	}
}
