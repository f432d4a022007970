// Package jobs runs transcription jobs: download the recording, transcribe
// it, generate the SOAP note and store the result.
package jobs

import (
	"context"

	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
)

// Processor turns audio into text and text into a note.
type Processor interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	GenerateNote(ctx context.Context, transcript string) (models.SOAPNote, error)
}
