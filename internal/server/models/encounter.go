package models

import "time"

// Encounter is a clinician-approved visit record.
type Encounter struct {
	ID                string
	UserID            string
	Name              string
	RecordingPath     string
	DurationSeconds   float64
	Transcript        string
	Subjective        string
	Objective         string
	Assessment        string
	Plan              string
	BillingSuggestion string
	CreatedAt         time.Time
}
