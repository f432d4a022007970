package encounters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/encounterscribe/internal/client/client"
	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/client/upload"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
)

// ValidationError lists every required field that is empty.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.MissingFields, ", ")
}

// ServerError is a rejection by the backend; Message is shown verbatim.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

var required = []struct {
	field Field
	label string
}{
	{FieldName, "name"},
	{FieldTranscript, "transcript"},
	{FieldSubjective, "subjective"},
	{FieldObjective, "objective"},
	{FieldAssessment, "assessment"},
	{FieldPlan, "plan"},
	{FieldBillingSuggestion, "billing suggestion"},
}

// Validate reports all missing fields at once.
func Validate(d models.Draft) error {
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(get(&d, r.field)) == "" {
			missing = append(missing, r.label)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}
	return nil
}

type API interface {
	CompleteEncounter(ctx context.Context, s models.EncounterSubmission) (string, error)
}

type Submitter struct {
	api    API
	drafts *DraftStore
	repo   metadata.Repository
	logger logging.Logger
}

// NewSubmitter wires the submit step. repo is read for the attached
// recording's duration and may be nil.
func NewSubmitter(api API, drafts *DraftStore, repo metadata.Repository, logger logging.Logger) *Submitter {
	return &Submitter{api: api, drafts: drafts, repo: repo, logger: logger}
}

// Submit persists the encounter. On success the draft is cleared and
// subscribers reset; on any failure the draft is left untouched.
func (s *Submitter) Submit(ctx context.Context, d models.Draft) (string, error) {
	if err := Validate(d); err != nil {
		return "", err
	}

	var duration float64
	if s.repo != nil {
		if m, ok, err := upload.LoadMetadata(ctx, s.repo, s.logger); err == nil && ok && m.Path == d.RecordingPath {
			duration = m.DurationSeconds
		}
	}

	id, err := s.api.CompleteEncounter(ctx, d.Submission(duration))
	if err != nil {
		return "", s.mapError(err)
	}
	s.logger.Info(ctx, "encounter submitted", "encounter_id", id)

	if err := s.drafts.Reset(ctx); err != nil {
		// the encounter is saved; a leftover mirror only costs a manual reset
		s.logger.Error(ctx, "clear submitted draft", "encounter_id", id, "error", err)
	}
	return id, nil
}

func (s *Submitter) mapError(err error) error {
	if errors.Is(err, client.ErrSessionExpired) || errors.Is(err, client.ErrUnauthenticated) || client.IsNetworkError(err) {
		return err
	}

	var se *client.StatusError
	if errors.As(err, &se) {
		msg := se.Message
		if msg == "" {
			msg = se.Error()
		}
		return &ServerError{Message: msg}
	}
	return fmt.Errorf("submit encounter: %w", err)
}
