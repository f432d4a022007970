// Package encounters holds the in-progress encounter draft and submits it.
//
// The draft persists itself on every mutation, so a restarted client picks
// up where the clinician left off, and is cleared only by a successful
// submit.
package encounters

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/encounterscribe/internal/client/models"
	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/dbx"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
)

type Field string

const (
	FieldName              Field = "name"
	FieldTranscript        Field = "transcript"
	FieldSubjective        Field = "subjective"
	FieldObjective         Field = "objective"
	FieldAssessment        Field = "assessment"
	FieldPlan              Field = "plan"
	FieldBillingSuggestion Field = "billing_suggestion"
	FieldRecordingPath     Field = "recording_path"
)

// Fields lists every draft field in display order.
var Fields = []Field{
	FieldName, FieldTranscript, FieldSubjective, FieldObjective,
	FieldAssessment, FieldPlan, FieldBillingSuggestion, FieldRecordingPath,
}

// generated are the fields filled from a job result.
var generated = []Field{
	FieldTranscript, FieldSubjective, FieldObjective,
	FieldAssessment, FieldPlan, FieldBillingSuggestion,
}

var (
	ErrUnknownField = errors.New("unknown draft field")
	// ErrStaleRecording: a job result was produced for a recording other
	// than the one attached to the draft.
	ErrStaleRecording = errors.New("result belongs to a different recording")
)

// ParseField accepts the stored key form and a few spellings users type.
func ParseField(s string) (Field, error) {
	switch s {
	case "billing", "billing-suggestion", "billing suggestion":
		return FieldBillingSuggestion, nil
	case "recording", "recording-path":
		return FieldRecordingPath, nil
	}
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

func (f Field) key() string { return metadata.DraftPrefix + string(f) }

func get(d *models.Draft, f Field) string {
	switch f {
	case FieldName:
		return d.Name
	case FieldTranscript:
		return d.Transcript
	case FieldSubjective:
		return d.Subjective
	case FieldObjective:
		return d.Objective
	case FieldAssessment:
		return d.Assessment
	case FieldPlan:
		return d.Plan
	case FieldBillingSuggestion:
		return d.BillingSuggestion
	case FieldRecordingPath:
		return d.RecordingPath
	}
	return ""
}

func set(d *models.Draft, f Field, v string) {
	switch f {
	case FieldName:
		d.Name = v
	case FieldTranscript:
		d.Transcript = v
	case FieldSubjective:
		d.Subjective = v
	case FieldObjective:
		d.Objective = v
	case FieldAssessment:
		d.Assessment = v
	case FieldPlan:
		d.Plan = v
	case FieldBillingSuggestion:
		d.BillingSuggestion = v
	case FieldRecordingPath:
		d.RecordingPath = v
	}
}

// DraftStore owns the draft and mirrors it to local storage.
type DraftStore struct {
	repo   metadata.Repository
	db     dbx.TxBeginner
	logger logging.Logger

	mu     sync.Mutex
	draft  models.Draft
	subs   map[int]func(models.Draft)
	nextID int
}

// NewDraftStore loads any persisted draft. When db is set, Reset clears the
// mirror in a single transaction.
func NewDraftStore(ctx context.Context, repo metadata.Repository, db dbx.TxBeginner, logger logging.Logger) (*DraftStore, error) {
	s := &DraftStore{repo: repo, db: db, logger: logger, subs: map[int]func(models.Draft){}}

	for _, f := range Fields {
		v, ok, err := metadata.GetText(ctx, repo, f.key())
		if err != nil {
			return nil, fmt.Errorf("load draft: %w", err)
		}
		if ok {
			set(&s.draft, f, v)
		}
	}
	return s, nil
}

func (s *DraftStore) Draft() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Subscribe registers fn to receive the draft after every change. The
// returned func unsubscribes.
func (s *DraftStore) Subscribe(fn func(models.Draft)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Set changes one field and persists it.
func (s *DraftStore) Set(ctx context.Context, f Field, value string) error {
	return s.update(ctx, map[Field]string{f: value})
}

// AttachRecording links a newly uploaded recording. Generated text from a
// previous recording is dropped so it cannot leak into this encounter.
func (s *DraftStore) AttachRecording(ctx context.Context, path string) error {
	s.mu.Lock()
	prev := s.draft.RecordingPath
	s.mu.Unlock()

	changes := map[Field]string{FieldRecordingPath: path}
	if prev != "" && prev != path {
		for _, f := range generated {
			changes[f] = ""
		}
	}
	return s.update(ctx, changes)
}

// ApplyNote fills the generated fields from a job that ran on
// recordingPath.
func (s *DraftStore) ApplyNote(ctx context.Context, recordingPath string, n models.Note) error {
	s.mu.Lock()
	current := s.draft.RecordingPath
	s.mu.Unlock()

	if current != "" && current != recordingPath {
		return fmt.Errorf("%w: draft has %q, result is for %q", ErrStaleRecording, current, recordingPath)
	}

	var d models.Draft
	d.ApplyNote(n)
	changes := map[Field]string{FieldRecordingPath: recordingPath}
	for _, f := range generated {
		changes[f] = get(&d, f)
	}
	return s.update(ctx, changes)
}

func (s *DraftStore) update(ctx context.Context, changes map[Field]string) error {
	for f := range changes {
		if _, err := ParseField(string(f)); err != nil {
			return err
		}
	}

	s.mu.Lock()
	for f, v := range changes {
		set(&s.draft, f, v)
	}
	snapshot := s.draft
	subs := s.subscribers()
	s.mu.Unlock()

	var errs []error
	for f, v := range changes {
		if err := metadata.SetText(ctx, s.repo, f.key(), v); err != nil {
			errs = append(errs, err)
		}
	}

	for _, fn := range subs {
		fn(snapshot)
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error(ctx, "persist draft", "error", err)
		return fmt.Errorf("persist draft: %w", err)
	}
	return nil
}

// Reset clears the draft, its mirror and the attached recording metadata.
func (s *DraftStore) Reset(ctx context.Context) error {
	if err := s.clearStorage(ctx); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}

	s.mu.Lock()
	s.draft = models.Draft{}
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(models.Draft{})
	}
	return nil
}

func (s *DraftStore) clearStorage(ctx context.Context) error {
	wipe := func(ctx context.Context, r metadata.Repository) error {
		if err := r.DeletePrefix(ctx, metadata.DraftPrefix); err != nil {
			return err
		}
		return r.Delete(ctx, metadata.KeyRecordingMetadata)
	}

	if s.db == nil {
		return wipe(ctx, s.repo)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return wipe(ctx, metadata.NewSQLiteRepository(tx))
	})
}

func (s *DraftStore) subscribers() []func(models.Draft) {
	out := make([]func(models.Draft), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
