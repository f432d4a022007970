package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrPollingExhausted: too many consecutive network failures.
	ErrPollingExhausted = errors.New("lost contact with the server while waiting for the job")
	ErrJobNotFound      = errors.New("job not found")
	// ErrTimeout: the overall wall-clock budget ran out. A user cancel is
	// reported as context.Canceled instead.
	ErrTimeout = errors.New("job did not finish in time")
)

// JobFailedError is a server-reported terminal failure.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s failed", e.JobID)
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}
