package models

import (
	"encoding/json"
	"time"

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

// Job turns one uploaded recording into a transcript and a SOAP note.
// Status only moves forward: pending, transcribing, generating, then
// complete or error.
type Job struct {
	ID            string
	UserID        string
	RecordingPath string
	Status        JobStatus
	ErrorMessage  string

	TranscriptText    string
	SOAPNote          json.RawMessage
	BillingSuggestion string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SOAPNote is the generated note in the shape the client expects inside
// soap_note.
type SOAPNote struct {
	Subjective        string `json:"subjective"`
	Objective         string `json:"objective"`
	Assessment        string `json:"assessment"`
	Plan              string `json:"plan"`
	BillingSuggestion string `json:"billing_suggestion,omitempty"`
}

// Terminal reports whether the job will not change any more.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobError
}
