package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
	"github.com/dmitrijs2005/encounterscribe/internal/client/encounters"
	"github.com/dmitrijs2005/encounterscribe/internal/client/jobs"
	"github.com/dmitrijs2005/encounterscribe/internal/client/recording"
	"github.com/dmitrijs2005/encounterscribe/internal/client/soap"
	"github.com/dmitrijs2005/encounterscribe/internal/client/upload"
	"github.com/dmitrijs2005/encounterscribe/internal/filex"
)

// userMessage turns any error a command can end with into one line for the
// clinician. Order matters: wrapped auth errors must win over the transport
// or status error they carry.
func userMessage(err error) string {
	var (
		validation *encounters.ValidationError
		server     *encounters.ServerError
		transfer   *upload.TransferError
		dest       *upload.DestinationError
		failed     *jobs.JobFailedError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Cancelled."

	case errors.Is(err, client.ErrUnauthenticated):
		return "You are not signed in. Use 'login' first."
	case errors.Is(err, client.ErrSessionExpired):
		return "Your session has expired. Please sign in again with 'login'."
	case errors.Is(err, client.ErrInvalidCredentials):
		return "Invalid email or password."

	case errors.As(err, &validation):
		return "Please fill in: " + strings.Join(validation.MissingFields, ", ") + "."
	case errors.As(err, &server):
		return server.Message

	case errors.As(err, &transfer) && transfer.FileTooLarge:
		return fmt.Sprintf("The file is too large to upload (%s). Try a shorter recording.", filex.SizeMB(transfer.Size))
	case errors.As(err, &dest):
		return "Could not prepare the upload. Check your connection and try again."
	case errors.As(err, &transfer):
		return "Upload failed: " + transfer.Error()

	case errors.Is(err, jobs.ErrPollingExhausted):
		return "Lost contact with the server while processing. Your recording is saved; use 'poll' to check again."
	case errors.Is(err, jobs.ErrTimeout):
		return "Processing is taking longer than expected. Use 'poll' to check again later."
	case errors.Is(err, jobs.ErrJobNotFound):
		return "The processing job no longer exists. Process the recording again."
	case errors.As(err, &failed):
		if failed.Message == "" {
			return "Processing failed."
		}
		return "Processing failed: " + failed.Message
	case errors.Is(err, soap.ErrMalformedResult):
		return "The result could not be read. Try processing the recording again."
	case errors.Is(err, encounters.ErrStaleRecording):
		return "That result belongs to an older recording and was not applied."
	case errors.Is(err, encounters.ErrUnknownField):
		return "Unknown field. Fields: " + fieldList() + "."

	case errors.Is(err, recording.ErrAlreadyRecording):
		return "A recording is already in progress. Use 'stop' to finish it."
	case errors.Is(err, recording.ErrNotRecording):
		return "Nothing is being recorded."
	case errors.Is(err, recording.ErrCaptureUnavailable):
		return "The microphone is not available. Check that it is connected and ffmpeg is installed."
	case errors.Is(err, recording.ErrCaptureFailed):
		return "The microphone stopped working during the recording."

	case client.IsNetworkError(err):
		return "Cannot reach the server. Check your connection and try again."
	}
	return err.Error()
}

func fieldList() string {
	names := make([]string, 0, len(encounters.Fields))
	for _, f := range encounters.Fields {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
