package models

// Note holds the normalised clinical text produced from a job result.
type Note struct {
	Transcript        string
	Subjective        string
	Objective         string
	Assessment        string
	Plan              string
	BillingSuggestion string
}

// Draft is the in-progress encounter being edited client-side.
type Draft struct {
	Name              string
	Transcript        string
	Subjective        string
	Objective         string
	Assessment        string
	Plan              string
	BillingSuggestion string
	RecordingPath     string
}

// ApplyNote copies the generated text into the draft.
func (d *Draft) ApplyNote(n Note) {
	d.Transcript = n.Transcript
	d.Subjective = n.Subjective
	d.Objective = n.Objective
	d.Assessment = n.Assessment
	d.Plan = n.Plan
	d.BillingSuggestion = n.BillingSuggestion
}

// EncounterSubmission is the body of the complete-encounter call.
type EncounterSubmission struct {
	PatientEncounter EncounterHeader `json:"patientEncounter"`
	Recording        RecordingRef    `json:"recording"`
	Transcript       TranscriptBody  `json:"transcript"`
	SOAPNoteText     SOAPNoteText    `json:"soapNote_text"`
}

type EncounterHeader struct {
	Name string `json:"name"`
}

type RecordingRef struct {
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

type TranscriptBody struct {
	Text string `json:"transcript_text"`
}

type SOAPNoteText struct {
	Subjective        string `json:"subjective"`
	Objective         string `json:"objective"`
	Assessment        string `json:"assessment"`
	Plan              string `json:"plan"`
	BillingSuggestion string `json:"billing_suggestion"`
}

// Submission builds the complete-encounter body from the draft.
func (d Draft) Submission(durationSeconds float64) EncounterSubmission {
	return EncounterSubmission{
		PatientEncounter: EncounterHeader{Name: d.Name},
		Recording:        RecordingRef{Path: d.RecordingPath, DurationSeconds: durationSeconds},
		Transcript:       TranscriptBody{Text: d.Transcript},
		SOAPNoteText: SOAPNoteText{
			Subjective:        d.Subjective,
			Objective:         d.Objective,
			Assessment:        d.Assessment,
			Plan:              d.Plan,
			BillingSuggestion: d.BillingSuggestion,
		},
	}
}
