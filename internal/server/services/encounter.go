package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/encounterscribe/internal/server/models"
	"github.com/dmitrijs2005/encounterscribe/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ValidationError lists the submission fields that were empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// EncounterInput is a clinician-approved encounter as submitted.
type EncounterInput struct {
	Name              string
	RecordingPath     string
	DurationSeconds   float64
	Transcript        string
	Subjective        string
	Objective         string
	Assessment        string
	Plan              string
	BillingSuggestion string
}

// Validate checks every required field and reports all missing ones.
func (in EncounterInput) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", in.Name},
		{"recording", in.RecordingPath},
		{"transcript", in.Transcript},
		{"subjective", in.Subjective},
		{"objective", in.Objective},
		{"assessment", in.Assessment},
		{"plan", in.Plan},
		{"billing suggestion", in.BillingSuggestion},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

type EncounterService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewEncounterService(db *sql.DB, m repomanager.RepositoryManager) *EncounterService {
	return &EncounterService{db: db, repomanager: m}
}

// Complete stores the encounter and returns its id.
func (s *EncounterService) Complete(ctx context.Context, userID string, in EncounterInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	if !OwnsPath(userID, in.RecordingPath) {
		return "", fmt.Errorf("%w: recording does not belong to this account", ErrRecordingMissing)
	}

	e := &models.Encounter{
		ID:                uuid.NewString(),
		UserID:            userID,
		Name:              strings.TrimSpace(in.Name),
		RecordingPath:     in.RecordingPath,
		DurationSeconds:   in.DurationSeconds,
		Transcript:        in.Transcript,
		Subjective:        in.Subjective,
		Objective:         in.Objective,
		Assessment:        in.Assessment,
		Plan:              in.Plan,
		BillingSuggestion: in.BillingSuggestion,
	}
	if err := s.repomanager.Encounters(s.db).Create(ctx, e); err != nil {
		return "", fmt.Errorf("error saving encounter: %w", err)
	}
	return e.ID, nil
}
