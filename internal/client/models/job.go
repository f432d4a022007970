package models

import (
	"encoding/json"

	"github.com/dmitrijs2005/encounterscribe/internal/common"
)

type JobStatus string

const (
	JobPending      JobStatus = common.JobStatusPending
	JobTranscribing JobStatus = common.JobStatusTranscribing
	JobGenerating   JobStatus = common.JobStatusGenerating
	JobComplete     JobStatus = common.JobStatusComplete
	JobError        JobStatus = common.JobStatusError
)

// Terminal reports whether no further server-side progress will happen.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobError
}

// Job is a server-side unit of work turning one recording into a transcript
// and SOAP note. Status transitions are server-authoritative.
type Job struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	// RecordingPath is the recording the job runs on. Older backends omit
	// it from status responses.
	RecordingPath string `json:"recordingPath,omitempty"`
}

// RawResult is the completed job payload before normalisation. SOAPNote is
// kept raw because the backend sends either an object or a string.
type RawResult struct {
	TranscriptText    string          `json:"transcript_text"`
	SOAPNote          json.RawMessage `json:"soap_note"`
	BillingSuggestion json.RawMessage `json:"billing_suggestion,omitempty"`
}
